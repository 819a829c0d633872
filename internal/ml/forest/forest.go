// Package forest implements the fitted ensemble classifier: a random forest
// of CART trees grown on bootstrap samples with gini impurity.
package forest

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// Default fit configuration.
const (
	defaultEstimators     = 100
	defaultSeed           = 42
	defaultMinSamplesLeaf = 1
	minClasses            = 2
)

// Sentinel errors.
var (
	ErrNotFitted = errors.New("classifier not fitted")
	ErrDimension = errors.New("dimension mismatch")
	ErrLabel     = errors.New("invalid label")
	ErrDecode    = errors.New("decode classifier state")
)

// Option configures a Classifier before Fit.
type Option func(*Classifier)

// WithEstimators sets the number of trees.
func WithEstimators(n int) Option {
	return func(c *Classifier) {
		if n > 0 {
			c.nEstimators = n
		}
	}
}

// WithMaxDepth bounds tree depth; 0 grows until leaves are pure.
func WithMaxDepth(d int) Option {
	return func(c *Classifier) {
		if d >= 0 {
			c.maxDepth = d
		}
	}
}

// WithMaxFeatures sets the features examined per split; 0 means sqrt(n).
func WithMaxFeatures(n int) Option {
	return func(c *Classifier) {
		if n >= 0 {
			c.maxFeatures = n
		}
	}
}

// WithMinSamplesLeaf sets the minimum bootstrap samples per leaf.
func WithMinSamplesLeaf(n int) Option {
	return func(c *Classifier) {
		if n > 0 {
			c.minSamplesLeaf = n
		}
	}
}

// WithSeed sets the base random seed. Tree i uses seed+i.
func WithSeed(seed int64) Option {
	return func(c *Classifier) {
		c.seed = seed
	}
}

// WithWorkers bounds the number of trees grown concurrently.
func WithWorkers(n int) Option {
	return func(c *Classifier) {
		if n > 0 {
			c.workers = n
		}
	}
}

// Classifier is a random forest. It is immutable after Fit and safe for
// concurrent prediction.
type Classifier struct {
	nEstimators    int
	maxDepth       int
	maxFeatures    int
	minSamplesLeaf int
	seed           int64
	workers        int

	nClasses  int
	nFeatures int
	trees     []tree
}

// New returns an unfitted classifier.
func New(opts ...Option) *Classifier {
	c := &Classifier{
		nEstimators:    defaultEstimators,
		minSamplesLeaf: defaultMinSamplesLeaf,
		seed:           defaultSeed,
		workers:        runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fit grows the forest on X (samples x features) and labels y in [0, k).
// Results depend only on the seed, not on the worker count.
func (c *Classifier) Fit(ctx context.Context, X mat.Matrix, y []int) error {
	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return fmt.Errorf("%w: empty training matrix", ErrDimension)
	}
	if rows != len(y) {
		return fmt.Errorf("%w: %d rows, %d labels", ErrDimension, rows, len(y))
	}

	nClasses := minClasses
	for i, label := range y {
		if label < 0 {
			return fmt.Errorf("%w: %d at row %d", ErrLabel, label, i)
		}
		if label+1 > nClasses {
			nClasses = label + 1
		}
	}

	data := make([][]float64, rows)
	for i := range data {
		data[i] = mat.Row(nil, i, X)
	}

	maxFeatures := c.maxFeatures
	if maxFeatures == 0 || maxFeatures > cols {
		maxFeatures = int(math.Max(1, math.Floor(math.Sqrt(float64(cols)))))
	}
	params := treeParams{
		nClasses:       nClasses,
		maxFeatures:    maxFeatures,
		maxDepth:       c.maxDepth,
		minSamplesLeaf: c.minSamplesLeaf,
	}

	trees := make([]tree, c.nEstimators)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for i := range trees {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewSource(c.seed + int64(i))) //nolint:gosec // reproducible fits
			sample := make([]int, rows)
			for k := range sample {
				sample[k] = rng.Intn(rows)
			}
			trees[i] = grow(data, y, sample, params, rng)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("fit forest: %w", err)
	}

	c.nClasses = nClasses
	c.nFeatures = cols
	c.trees = trees
	return nil
}

// Fitted reports whether the classifier can predict.
func (c *Classifier) Fitted() bool { return len(c.trees) > 0 }

// NFeatures is the expected feature vector width.
func (c *Classifier) NFeatures() int { return c.nFeatures }

// NClasses is the number of classes the forest was fitted on.
func (c *Classifier) NClasses() int { return c.nClasses }

// NEstimators is the number of fitted trees.
func (c *Classifier) NEstimators() int { return len(c.trees) }

// PredictProba returns the mean leaf class distribution per row.
func (c *Classifier) PredictProba(X mat.Matrix) (*mat.Dense, error) {
	if !c.Fitted() {
		return nil, ErrNotFitted
	}
	rows, cols := X.Dims()
	if cols != c.nFeatures {
		return nil, fmt.Errorf("%w: expected %d features, got %d", ErrDimension, c.nFeatures, cols)
	}

	out := mat.NewDense(rows, c.nClasses, nil)
	x := make([]float64, cols)
	acc := make([]float64, c.nClasses)
	for i := 0; i < rows; i++ {
		mat.Row(x, i, X)
		for k := range acc {
			acc[k] = 0
		}
		for _, t := range c.trees {
			for k, p := range t.leafProba(x) {
				acc[k] += p
			}
		}
		for k := range acc {
			out.Set(i, k, acc[k]/float64(len(c.trees)))
		}
	}
	return out, nil
}

// Predict returns the most probable class per row; ties go to the lower class.
func (c *Classifier) Predict(X mat.Matrix) ([]int, error) {
	proba, err := c.PredictProba(X)
	if err != nil {
		return nil, err
	}
	rows, _ := proba.Dims()
	out := make([]int, rows)
	for i := range out {
		out[i] = Argmax(proba.RawRowView(i))
	}
	return out, nil
}

// Argmax returns the index of the first maximum of p.
func Argmax(p []float64) int {
	best := 0
	for k := 1; k < len(p); k++ {
		if p[k] > p[best] {
			best = k
		}
	}
	return best
}

type classifierState struct {
	NClasses  int
	NFeatures int
	Trees     []tree
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (c *Classifier) MarshalBinary() ([]byte, error) {
	if !c.Fitted() {
		return nil, ErrNotFitted
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(classifierState{NClasses: c.nClasses, NFeatures: c.nFeatures, Trees: c.trees}); err != nil {
		return nil, fmt.Errorf("encode classifier state: %w", err)
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler. The tree structure
// is checked so that prediction cannot index out of range.
func (c *Classifier) UnmarshalBinary(data []byte) error {
	var st classifierState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&st); err != nil {
		return fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if st.NClasses < minClasses || st.NFeatures < 1 || len(st.Trees) == 0 {
		return fmt.Errorf("%w: empty or degenerate forest", ErrDecode)
	}
	for ti, t := range st.Trees {
		if err := t.check(st.NClasses, st.NFeatures); err != nil {
			return fmt.Errorf("%w: tree %d: %w", ErrDecode, ti, err)
		}
	}
	c.nClasses = st.NClasses
	c.nFeatures = st.NFeatures
	c.trees = st.Trees
	return nil
}

func (t tree) check(nClasses, nFeatures int) error {
	if len(t.Nodes) == 0 {
		return errors.New("no nodes")
	}
	for i, n := range t.Nodes {
		if n.Feature == leaf {
			if len(n.Proba) != nClasses {
				return fmt.Errorf("leaf %d has %d classes", i, len(n.Proba))
			}
			continue
		}
		// Children are always appended after their parent.
		if n.Feature < 0 || n.Feature >= nFeatures || n.Left <= i || n.Right <= i ||
			n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) {
			return fmt.Errorf("node %d out of range", i)
		}
	}
	return nil
}
