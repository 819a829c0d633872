// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) initializer to build a Config with defaults.
// - All functions accept context.Context as the first parameter.
// - Validation failures wrap ErrInvalidConfig, loader failures ErrLoadConfig.
package config

import (
	"context"
	"path/filepath"
	"runtime"
	"strings"
)

// Default artifact file names inside ProcessedDir.
const (
	TransformerFile = "preprocessor.gob"
	ModelFile       = "model.gob"
	TrainFile       = "train.csv"
	TestFile        = "test.csv"
)

// Config contains process configuration shared by the API server and the
// batch entry points.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFile, when set, receives an append-only copy of the log stream.
	LogFile string `koanf:"log_file"`

	// Addr configures the HTTP listen address, e.g. ":8000".
	Addr string `koanf:"addr"`

	// TransformerPath and ModelPath locate the fitted artifacts.
	TransformerPath string `koanf:"transformer_path"`
	ModelPath       string `koanf:"model_path"`

	// CORSAllowedOrigins is a comma-separated origin list; "*" allows all.
	CORSAllowedOrigins string `koanf:"cors_allowed_origins"`

	// CacheSize bounds the in-memory prediction cache; 0 disables it.
	CacheSize int `koanf:"cache_size"`

	// RedisURL switches the prediction cache to Redis (redis://... or host:port).
	RedisURL string `koanf:"redis_url"`

	// CacheTTLSeconds is the Redis entry lifetime.
	CacheTTLSeconds int `koanf:"cache_ttl_seconds"`

	// RedisPrefix namespaces cache keys when several deployments share Redis.
	RedisPrefix string `koanf:"redis_prefix"`

	// OTLPEndpoint enables trace export (host:port of an OTLP/HTTP collector).
	OTLPEndpoint string `koanf:"otlp_endpoint"`

	// TraceSampleRate is the ratio of requests traced when export is enabled.
	TraceSampleRate float64 `koanf:"trace_sample_rate"`

	// OTLPServiceName is the service.name resource attribute on spans.
	OTLPServiceName string `koanf:"otlp_service_name"`

	// OTLPInsecure disables TLS towards the collector.
	OTLPInsecure bool `koanf:"otlp_insecure"`

	// MetricsEnabled toggles Prometheus recording; /metrics stays mounted.
	MetricsEnabled bool `koanf:"metrics_enabled"`

	// MetricsNamespace prefixes every series, e.g. churn_inference_predictions_total.
	MetricsNamespace string `koanf:"metrics_namespace"`

	// MetricsRefreshSeconds is the runtime statistics sampling interval.
	MetricsRefreshSeconds int `koanf:"metrics_refresh_seconds"`

	// RawDataPath is the churn CSV consumed by the preparation stage.
	RawDataPath string `koanf:"raw_data_path"`

	// ProcessedDir holds transformed partitions and the default artifacts.
	ProcessedDir string `koanf:"processed_dir"`

	// TestSize is the held-out fraction for the stratified split.
	TestSize float64 `koanf:"test_size"`

	// RandomSeed drives the split and the forest.
	RandomSeed int64 `koanf:"random_seed"`

	// NEstimators, MaxDepth and TrainWorkers configure model fitting.
	NEstimators  int `koanf:"n_estimators"`
	MaxDepth     int `koanf:"max_depth"`
	TrainWorkers int `koanf:"train_workers"`

	// MaxFeatures is the number of features tried per split; 0 means sqrt.
	MaxFeatures int `koanf:"max_features"`

	// MinSamplesLeaf is the smallest leaf a split may produce.
	MinSamplesLeaf int `koanf:"min_samples_leaf"`
}

// New creates a Config populated with defaults.
func New(_ context.Context) *Config {
	processed := filepath.Join("data", "processed")
	return &Config{
		LogLevel:              "info",
		Addr:                  ":8000",
		TransformerPath:       filepath.Join(processed, TransformerFile),
		ModelPath:             filepath.Join(processed, ModelFile),
		CORSAllowedOrigins:    "*",
		CacheSize:             10_000,
		CacheTTLSeconds:       3600,
		RedisPrefix:           "churn:prediction:",
		OTLPServiceName:       "churn-api",
		TraceSampleRate:       0.1,
		OTLPInsecure:          true,
		MetricsEnabled:        true,
		MetricsNamespace:      "churn",
		MetricsRefreshSeconds: 10,
		RawDataPath:           filepath.Join("data", "raw", "customer_churn.csv"),
		ProcessedDir:          processed,
		TestSize:              0.2,
		RandomSeed:            42,
		NEstimators:           100,
		MaxDepth:              0,
		TrainWorkers:          runtime.NumCPU(),
		MaxFeatures:           0,
		MinSamplesLeaf:        1,
	}
}

// AllowedOrigins splits CORSAllowedOrigins into trimmed, non-empty entries.
func (c *Config) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// TrainPath is the transformed training partition.
func (c *Config) TrainPath() string { return filepath.Join(c.ProcessedDir, TrainFile) }

// TestPath is the transformed held-out partition.
func (c *Config) TestPath() string { return filepath.Join(c.ProcessedDir, TestFile) }
