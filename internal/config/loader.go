package config

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// metricName matches a Prometheus metric name component.
var metricName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Environment variable names and prefix.
const (
	envPrefix     = "CHURN_"
	envConfigFile = "CHURN_CONFIG"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New(ctx))
//  2. file (YAML) if CHURN_CONFIG is set
//  3. env (prefix CHURN_)
func Load(ctx context.Context) (*Config, error) {
	base := New(ctx)

	k := koanf.New(".")

	if path := os.Getenv(envConfigFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: read %s: %w", ErrLoadConfig, path, err)
		}
	}

	// Map env keys like CHURN_MODEL_PATH -> model_path (flat keys).
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, strings.ToLower(envPrefix))
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(ctx); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks invariants the entry points rely on.
func (c *Config) Validate(_ context.Context) error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case strings.TrimSpace(c.TransformerPath) == "":
		return fmt.Errorf("%w: transformer_path must not be empty", ErrInvalidConfig)
	case strings.TrimSpace(c.ModelPath) == "":
		return fmt.Errorf("%w: model_path must not be empty", ErrInvalidConfig)
	case c.TestSize <= 0 || c.TestSize >= 1:
		return fmt.Errorf("%w: test_size must be in (0,1), got %v", ErrInvalidConfig, c.TestSize)
	case c.NEstimators < 1:
		return fmt.Errorf("%w: n_estimators must be positive, got %d", ErrInvalidConfig, c.NEstimators)
	case c.TraceSampleRate < 0 || c.TraceSampleRate > 1:
		return fmt.Errorf("%w: trace_sample_rate must be in [0,1], got %v", ErrInvalidConfig, c.TraceSampleRate)
	case c.MaxFeatures < 0:
		return fmt.Errorf("%w: max_features must not be negative, got %d", ErrInvalidConfig, c.MaxFeatures)
	case c.MinSamplesLeaf < 1:
		return fmt.Errorf("%w: min_samples_leaf must be positive, got %d", ErrInvalidConfig, c.MinSamplesLeaf)
	case !metricName.MatchString(c.MetricsNamespace):
		return fmt.Errorf("%w: metrics_namespace %q is not a valid metric name", ErrInvalidConfig, c.MetricsNamespace)
	case c.MetricsRefreshSeconds < 1:
		return fmt.Errorf("%w: metrics_refresh_seconds must be positive, got %d", ErrInvalidConfig, c.MetricsRefreshSeconds)
	}
	return nil
}
