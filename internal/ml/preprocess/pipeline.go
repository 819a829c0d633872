// Package preprocess implements the fitted column transformer that turns
// customer records into dense feature vectors: standard scaling for numeric
// columns followed by one-hot encoding for categorical columns.
package preprocess

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/okian/churn/internal/domain/customer"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Sentinel errors.
var (
	ErrNotFitted     = errors.New("transformer not fitted")
	ErrEmptyInput    = errors.New("no rows to process")
	ErrMissingColumn = errors.New("missing column")
	ErrDecode        = errors.New("decode transformer state")
)

// Pipeline is a column transformer. It is immutable after Fit and safe for
// concurrent Transform calls.
type Pipeline struct {
	numeric     []string
	categorical []string

	means      []float64
	scales     []float64
	categories [][]string

	// index[j][value] is the offset of value inside categorical block j.
	index []map[string]int
	width int
}

// New returns an unfitted pipeline over the customer schema columns.
func New() *Pipeline {
	return NewWithColumns(customer.Columns(customer.RoleNumeric), customer.Columns(customer.RoleCategorical))
}

// NewWithColumns returns an unfitted pipeline over explicit column lists.
func NewWithColumns(numeric, categorical []string) *Pipeline {
	return &Pipeline{
		numeric:     append([]string(nil), numeric...),
		categorical: append([]string(nil), categorical...),
	}
}

// Fit learns per-column scaling and the category vocabulary.
func (p *Pipeline) Fit(rows []customer.Record) error {
	if len(rows) == 0 {
		return ErrEmptyInput
	}

	numeric := make([]map[string]float64, len(rows))
	categorical := make([]map[string]string, len(rows))
	for i, r := range rows {
		numeric[i] = r.Numeric()
		categorical[i] = r.Categorical()
	}

	p.means = make([]float64, len(p.numeric))
	p.scales = make([]float64, len(p.numeric))
	col := make([]float64, len(rows))
	for j, name := range p.numeric {
		for i := range rows {
			v, ok := numeric[i][name]
			if !ok {
				return fmt.Errorf("%w: %s", ErrMissingColumn, name)
			}
			col[i] = v
		}
		p.means[j], p.scales[j] = meanScale(col)
	}

	p.categories = make([][]string, len(p.categorical))
	for j, name := range p.categorical {
		seen := make(map[string]struct{})
		for i := range rows {
			v, ok := categorical[i][name]
			if !ok {
				return fmt.Errorf("%w: %s", ErrMissingColumn, name)
			}
			seen[v] = struct{}{}
		}
		cats := make([]string, 0, len(seen))
		for v := range seen {
			cats = append(cats, v)
		}
		sort.Strings(cats)
		p.categories[j] = cats
	}

	p.buildIndex()
	return nil
}

// meanScale returns the mean and population standard deviation of x. A zero
// deviation yields scale 1 so constant columns map to 0.
func meanScale(x []float64) (float64, float64) {
	if len(x) < 2 {
		return stat.Mean(x, nil), 1
	}
	mean, variance := stat.MeanVariance(x, nil)
	n := float64(len(x))
	scale := math.Sqrt(variance * (n - 1) / n)
	if scale == 0 || math.IsNaN(scale) {
		scale = 1
	}
	return mean, scale
}

func (p *Pipeline) buildIndex() {
	p.index = make([]map[string]int, len(p.categories))
	p.width = len(p.numeric)
	for j, cats := range p.categories {
		idx := make(map[string]int, len(cats))
		for k, c := range cats {
			idx[c] = k
		}
		p.index[j] = idx
		p.width += len(cats)
	}
}

// Fitted reports whether Fit or UnmarshalBinary has run.
func (p *Pipeline) Fitted() bool { return p.index != nil }

// Width is the length of an output feature vector.
func (p *Pipeline) Width() int { return p.width }

// FeatureNames lists output columns as "num__<col>" and "cat__<col>_<value>".
func (p *Pipeline) FeatureNames() []string {
	names := make([]string, 0, p.width)
	for _, n := range p.numeric {
		names = append(names, "num__"+n)
	}
	for j, n := range p.categorical {
		for _, c := range p.categories[j] {
			names = append(names, "cat__"+n+"_"+c)
		}
	}
	return names
}

// Transform maps rows to a len(rows) x Width matrix. Categories not seen at
// fit time encode as an all-zero block.
func (p *Pipeline) Transform(rows []customer.Record) (*mat.Dense, error) {
	if !p.Fitted() {
		return nil, ErrNotFitted
	}
	if len(rows) == 0 {
		return nil, ErrEmptyInput
	}

	out := mat.NewDense(len(rows), p.width, nil)
	for i, r := range rows {
		num := r.Numeric()
		for j, name := range p.numeric {
			v, ok := num[name]
			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrMissingColumn, name)
			}
			out.Set(i, j, (v-p.means[j])/p.scales[j])
		}

		cat := r.Categorical()
		offset := len(p.numeric)
		for j, name := range p.categorical {
			v, ok := cat[name]
			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrMissingColumn, name)
			}
			if k, known := p.index[j][v]; known {
				out.Set(i, offset+k, 1)
			}
			offset += len(p.categories[j])
		}
	}
	return out, nil
}

// FitTransform runs Fit followed by Transform on the same rows.
func (p *Pipeline) FitTransform(rows []customer.Record) (*mat.Dense, error) {
	if err := p.Fit(rows); err != nil {
		return nil, err
	}
	return p.Transform(rows)
}

type pipelineState struct {
	Numeric     []string
	Categorical []string
	Means       []float64
	Scales      []float64
	Categories  [][]string
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (p *Pipeline) MarshalBinary() ([]byte, error) {
	if !p.Fitted() {
		return nil, ErrNotFitted
	}
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(pipelineState{
		Numeric:     p.numeric,
		Categorical: p.categorical,
		Means:       p.means,
		Scales:      p.scales,
		Categories:  p.categories,
	})
	if err != nil {
		return nil, fmt.Errorf("encode transformer state: %w", err)
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (p *Pipeline) UnmarshalBinary(data []byte) error {
	var st pipelineState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&st); err != nil {
		return fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if len(st.Means) != len(st.Numeric) || len(st.Scales) != len(st.Numeric) || len(st.Categories) != len(st.Categorical) {
		return fmt.Errorf("%w: inconsistent column lengths", ErrDecode)
	}
	for _, s := range st.Scales {
		if s == 0 || math.IsNaN(s) {
			return fmt.Errorf("%w: invalid scale %v", ErrDecode, s)
		}
	}
	p.numeric = st.Numeric
	p.categorical = st.Categorical
	p.means = st.Means
	p.scales = st.Scales
	p.categories = st.Categories
	p.buildIndex()
	return nil
}
