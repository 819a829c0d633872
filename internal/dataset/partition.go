package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/okian/churn/internal/domain/customer"
	"gonum.org/v1/gonum/mat"
)

// ErrPartition is returned for malformed partition files.
var ErrPartition = errors.New("malformed partition")

// Subset returns the records and labels at idx, in idx order.
func (f *Frame) Subset(idx []int) *Frame {
	out := &Frame{
		Records: make([]customer.Record, len(idx)),
		Labels:  make([]int, len(idx)),
	}
	for k, i := range idx {
		out.Records[k] = f.Records[i]
		out.Labels[k] = f.Labels[i]
	}
	return out
}

// WritePartition stores a transformed matrix with its labels as CSV. The
// header is the column ordinals followed by Churn.
func WritePartition(path string, X mat.Matrix, y []int) error {
	rows, cols := X.Dims()
	if rows != len(y) {
		return fmt.Errorf("%w: %d rows, %d labels", ErrPartition, rows, len(y))
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create partition dir: %w", err)
	}
	f, err := os.Create(path) //nolint:gosec // path comes from configuration
	if err != nil {
		return fmt.Errorf("create partition: %w", err)
	}

	w := csv.NewWriter(f)
	record := make([]string, cols+1)
	for j := 0; j < cols; j++ {
		record[j] = strconv.Itoa(j)
	}
	record[cols] = LabelColumn
	if err := w.Write(record); err != nil {
		_ = f.Close()
		return fmt.Errorf("write partition header: %w", err)
	}
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			record[j] = strconv.FormatFloat(X.At(i, j), 'g', -1, 64)
		}
		record[cols] = strconv.Itoa(y[i])
		if err := w.Write(record); err != nil {
			_ = f.Close()
			return fmt.Errorf("write partition row %d: %w", i, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("flush partition: %w", err)
	}
	return f.Close()
}

// ReadPartition loads a file written by WritePartition. The label is taken
// from the Churn column wherever it appears.
func ReadPartition(path string) (*mat.Dense, []int, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from configuration
	if err != nil {
		return nil, nil, fmt.Errorf("open partition: %w", err)
	}
	defer func() { _ = f.Close() }()

	cr := csv.NewReader(f)
	header, err := cr.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: header: %w", ErrPartition, err)
	}
	labelAt := -1
	for i, h := range header {
		if h == LabelColumn {
			labelAt = i
		}
	}
	if labelAt < 0 || len(header) < 2 {
		return nil, nil, fmt.Errorf("%w: %s", ErrPartition, ErrNoLabel)
	}

	width := len(header) - 1
	var (
		data []float64
		y    []int
	)
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("%w: line %d: %w", ErrPartition, line, err)
		}
		for j, s := range row {
			if j == labelAt {
				label, err := strconv.Atoi(s)
				if err != nil {
					return nil, nil, fmt.Errorf("%w: line %d label %q", ErrPartition, line, s)
				}
				y = append(y, label)
				continue
			}
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, nil, fmt.Errorf("%w: line %d column %d: %q", ErrPartition, line, j, s)
			}
			data = append(data, v)
		}
	}
	if len(y) == 0 {
		return nil, nil, fmt.Errorf("%w: no rows", ErrPartition)
	}
	return mat.NewDense(len(y), width, data), y, nil
}
