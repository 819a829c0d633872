// Package dataset loads the raw churn table and reads and writes the
// transformed train/test partitions exchanged between the batch stages.
package dataset

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/okian/churn/internal/domain/customer"
)

// Raw column names outside the feature schema.
const (
	IDColumn    = "customerID"
	LabelColumn = "Churn"
)

// Sentinel errors.
var (
	ErrNoHeader    = errors.New("csv has no header")
	ErrNoLabel     = errors.New("csv has no " + LabelColumn + " column")
	ErrEmptyResult = errors.New("no usable rows")
)

var labels = map[string]int{"No": 0, "Yes": 1}

// Frame is a cleaned raw table: one label per record.
type Frame struct {
	Records []customer.Record
	Labels  []int
	// Dropped counts rows removed for missing or unmappable values.
	Dropped int
}

// LoadRaw reads the raw CSV at path, drops the identifier column, treats a
// non-numeric TotalCharges as missing, drops incomplete rows and maps the
// Churn label to 1 (Yes) / 0 (No).
func LoadRaw(ctx context.Context, path string) (*Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open raw data: %w", err)
	}
	defer func() { _ = f.Close() }()
	return ReadRaw(ctx, f)
}

// ReadRaw is LoadRaw over an arbitrary reader.
func ReadRaw(ctx context.Context, r io.Reader) (*Frame, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrNoHeader
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	labelAt := -1
	for i, h := range header {
		if h == LabelColumn {
			labelAt = i
		}
	}
	if labelAt < 0 {
		return nil, ErrNoLabel
	}

	frame := &Frame{}
	cols := make(map[string]string, len(header))
	for line := 2; ; line++ {
		if line%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", line, err)
		}
		if len(row) != len(header) {
			frame.Dropped++
			continue
		}

		clear(cols)
		for i, h := range header {
			if h != IDColumn && h != LabelColumn {
				cols[h] = row[i]
			}
		}
		rec, err := customer.FromStrings(cols)
		label, known := labels[row[labelAt]]
		if err != nil || !known {
			frame.Dropped++
			continue
		}
		frame.Records = append(frame.Records, rec)
		frame.Labels = append(frame.Labels, label)
	}

	if len(frame.Records) == 0 {
		return nil, ErrEmptyResult
	}
	return frame, nil
}
