// Package service provides the inference service that backs the HTTP API.
package service

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/churn/internal/adapters/cache"
	"github.com/okian/churn/internal/artifact"
	"github.com/okian/churn/internal/domain/customer"
	"github.com/okian/churn/internal/domain/prediction"
	"github.com/okian/churn/pkg/logger"
	"github.com/okian/churn/pkg/metrics"
	"github.com/okian/churn/pkg/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gonum.org/v1/gonum/mat"
)

// Transformer maps records to feature rows.
type Transformer interface {
	Transform(rows []customer.Record) (*mat.Dense, error)
}

// Classifier maps feature rows to class labels and class probabilities.
type Classifier interface {
	Predict(X mat.Matrix) ([]int, error)
	PredictProba(X mat.Matrix) (*mat.Dense, error)
}

// Service serves predictions from a loaded transformer and classifier.
// Both are read-only after construction, so Predict needs no locking.
type Service struct {
	mu sync.RWMutex

	transformer     Transformer
	classifier      Classifier
	cache           cache.Cache
	transformerInfo artifact.Info
	modelInfo       artifact.Info

	started   atomic.Bool
	served    atomic.Int64
	cacheHits atomic.Int64
	failures  atomic.Int64

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithTransformer sets the fitted transformer.
func WithTransformer(t Transformer) Option {
	return func(s *Service) {
		s.transformer = t
	}
}

// WithClassifier sets the fitted classifier.
func WithClassifier(c Classifier) Option {
	return func(s *Service) {
		s.classifier = c
	}
}

// WithCache enables result caching.
func WithCache(c cache.Cache) Option {
	return func(s *Service) {
		s.cache = c
	}
}

// WithArtifactInfo records where the artifacts came from. The model ID
// scopes cache keys.
func WithArtifactInfo(transformer, model artifact.Info) Option {
	return func(s *Service) {
		s.transformerInfo = transformer
		s.modelInfo = model
	}
}

// WithBundle sets transformer, classifier and their info from a loaded bundle.
func WithBundle(b *artifact.Bundle) Option {
	return func(s *Service) {
		if b == nil {
			return
		}
		for _, opt := range []Option{
			WithTransformer(b.Transformer),
			WithClassifier(b.Model),
			WithArtifactInfo(b.TransformerInfo, b.ModelInfo),
		} {
			opt(s)
		}
	}
}

// New constructs a new Service.
func New(opts ...Option) *Service {
	s := &Service{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start checks that both artifacts are present and marks the service ready.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started.Load() {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	if s.transformer == nil {
		return fmt.Errorf("%w: transformer", ErrMissingArtifact)
	}
	if s.classifier == nil {
		return fmt.Errorf("%w: model", ErrMissingArtifact)
	}

	s.started.Store(true)
	s.logger.Info(ctx, "inference service started",
		logger.String("transformerID", s.transformerInfo.ID.String()),
		logger.String("modelID", s.modelInfo.ID.String()),
		logger.Bool("cache", s.cache != nil),
	)
	return nil
}

// Stop marks the service as not ready.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started.Load() {
		return
	}
	s.started.Store(false)
	s.logger.Info(context.Background(), "inference service stopped")
}

// Ready reports whether Start succeeded and Stop has not been called.
func (s *Service) Ready() bool {
	return s.started.Load()
}

// Predict runs one record through the transformer and classifier. Any
// failure after validation, including a panic, is returned as
// ErrProcessing; the cause is logged but carries no client-facing detail.
func (s *Service) Predict(ctx context.Context, rec customer.Record) (prediction.Result, error) {
	if !s.started.Load() {
		return prediction.Result{}, ErrNotStarted
	}

	ctx, span := tracing.Tracer().Start(ctx, "predict")
	defer span.End()

	start := time.Now()
	s.logger.Info(ctx, "prediction request", logger.Any("input", rec))

	var key string
	if s.cache != nil {
		key = cache.Key(s.modelInfo.ID.String(), rec)
		res, ok, err := s.cache.Get(ctx, key)
		switch {
		case err != nil:
			// A cache outage never fails a prediction.
			metrics.RecordCacheLookup(metrics.CacheError)
			s.logger.Warn(ctx, "cache lookup failed", logger.Error(err))
		case ok:
			metrics.RecordCacheLookup(metrics.CacheHit)
			s.cacheHits.Add(1)
			s.served.Add(1)
			span.SetAttributes(attribute.Bool("cache.hit", true), attribute.String("prediction", res.Prediction))
			s.logger.Info(ctx, "prediction result",
				logger.Any("result", res),
				logger.Bool("cached", true),
				logger.Duration("elapsed", time.Since(start)),
			)
			return res, nil
		default:
			metrics.RecordCacheLookup(metrics.CacheMiss)
		}
	}

	res, err := s.infer(ctx, rec)
	elapsed := time.Since(start)
	if err != nil {
		s.failures.Add(1)
		metrics.RecordProcessingFailure()
		span.RecordError(err)
		span.SetStatus(codes.Error, "prediction failed")
		s.logger.Error(ctx, "prediction failed",
			logger.Any("input", rec),
			logger.Error(err),
			logger.Duration("elapsed", elapsed),
		)
		return prediction.Result{}, fmt.Errorf("%w: %w", ErrProcessing, err)
	}

	if s.cache != nil {
		s.cache.Set(ctx, key, res)
	}
	s.served.Add(1)
	metrics.RecordPrediction(res.Prediction)
	metrics.RecordPredictionLatency(float64(elapsed.Microseconds()) / 1000)
	span.SetAttributes(attribute.Bool("cache.hit", false), attribute.String("prediction", res.Prediction))
	s.logger.Info(ctx, "prediction result",
		logger.Any("result", res),
		logger.Duration("elapsed", elapsed),
	)
	return res, nil
}

func (s *Service) infer(ctx context.Context, rec customer.Record) (res prediction.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error(ctx, "prediction panicked",
				logger.Any("panic", r),
				logger.String("stack", string(debug.Stack())),
			)
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	X, err := s.transformer.Transform([]customer.Record{rec})
	if err != nil {
		return prediction.Result{}, fmt.Errorf("transform: %w", err)
	}
	labels, err := s.classifier.Predict(X)
	if err != nil {
		return prediction.Result{}, fmt.Errorf("predict: %w", err)
	}
	proba, err := s.classifier.PredictProba(X)
	if err != nil {
		return prediction.Result{}, fmt.Errorf("predict proba: %w", err)
	}
	if len(labels) != 1 {
		return prediction.Result{}, fmt.Errorf("predict: %d labels for one row", len(labels))
	}
	return prediction.FromClassifier(labels[0], proba.RawRowView(0))
}

// Artifacts returns the transformer and model descriptors.
func (s *Service) Artifacts() (artifact.Info, artifact.Info) {
	return s.transformerInfo, s.modelInfo
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":       s.started.Load(),
		"served":        s.served.Load(),
		"cacheHits":     s.cacheHits.Load(),
		"failures":      s.failures.Load(),
		"cacheEnabled":  s.cache != nil,
		"transformerID": s.transformerInfo.ID.String(),
		"modelID":       s.modelInfo.ID.String(),
	}
	if sized, ok := s.cache.(interface{ Size() int64 }); ok {
		stats["cacheSize"] = sized.Size()
	}
	if f, ok := s.classifier.(interface{ NEstimators() int }); ok {
		stats["estimators"] = f.NEstimators()
	}
	if w, ok := s.transformer.(interface{ Width() int }); ok {
		stats["features"] = w.Width()
	}
	return stats
}
