package artifact

import (
	"context"
	"encoding"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/churn/internal/ml/forest"
	"github.com/okian/churn/internal/ml/preprocess"
	"github.com/okian/churn/pkg/logger"
	"github.com/okian/churn/pkg/metrics"
)

// ErrBundleMismatch is returned when the model was not fitted on the
// transformer's output width.
var ErrBundleMismatch = errors.New("artifact bundle mismatch")

// Bundle is the pair of artifacts the service serves from. Both are
// read-only once loaded.
type Bundle struct {
	Transformer     *preprocess.Pipeline
	Model           *forest.Classifier
	TransformerInfo Info
	ModelInfo       Info
}

// Loader resolves and loads the serving artifacts.
type Loader struct {
	transformerPath string
	modelPath       string
	logger          logger.Logger
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithLogger sets the logger used for load diagnostics.
func WithLogger(l logger.Logger) LoaderOption {
	return func(ld *Loader) {
		if l != nil {
			ld.logger = l
		}
	}
}

// NewLoader returns a Loader for the given artifact paths.
func NewLoader(transformerPath, modelPath string, opts ...LoaderOption) *Loader {
	ld := &Loader{transformerPath: transformerPath, modelPath: modelPath}
	for _, opt := range opts {
		opt(ld)
	}
	if ld.logger == nil {
		ld.logger = logger.Get().Named("artifact")
	}
	return ld
}

// LoadBundle loads the transformer and then the model. The first failure
// is returned and names the artifact that could not be loaded.
func (ld *Loader) LoadBundle(ctx context.Context) (*Bundle, error) {
	b := &Bundle{Transformer: &preprocess.Pipeline{}, Model: &forest.Classifier{}}

	info, err := ld.load(ctx, ld.transformerPath, KindTransformer, b.Transformer)
	if err != nil {
		return nil, err
	}
	b.TransformerInfo = info

	info, err = ld.load(ctx, ld.modelPath, KindModel, b.Model)
	if err != nil {
		return nil, err
	}
	b.ModelInfo = info

	if w, n := b.Transformer.Width(), b.Model.NFeatures(); w != n {
		err := fmt.Errorf("%w: transformer yields %d features, model expects %d", ErrBundleMismatch, w, n)
		ld.logger.Error(ctx, "artifact bundle mismatch", logger.Error(err))
		return nil, err
	}
	return b, nil
}

func (ld *Loader) load(ctx context.Context, path string, kind Kind, into encoding.BinaryUnmarshaler) (Info, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	_, statErr := os.Stat(abs)
	ld.logger.Info(ctx, "loading artifact",
		logger.String("kind", string(kind)),
		logger.String("path", abs),
		logger.Bool("exists", statErr == nil),
	)

	info, err := Load(ctx, abs, kind, into)
	if err != nil {
		metrics.SetArtifactLoaded(string(kind), false)
		ld.logger.Error(ctx, "artifact load failed",
			logger.String("kind", string(kind)),
			logger.String("path", abs),
			logger.Error(err),
		)
		return Info{}, err
	}
	metrics.SetArtifactLoaded(string(kind), true)
	ld.logger.Info(ctx, "artifact loaded",
		logger.String("kind", string(kind)),
		logger.String("path", abs),
		logger.String("id", info.ID.String()),
		logger.String("createdAt", info.CreatedAt.Format(time.RFC3339)),
	)
	return info, nil
}
