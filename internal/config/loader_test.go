package config_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/okian/churn/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8000")
				convey.So(cfg.NEstimators, convey.ShouldEqual, 100)
				convey.So(cfg.CacheSize, convey.ShouldEqual, 10_000)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("CHURN_ADDR", ":8080")
			_ = os.Setenv("CHURN_MODEL_PATH", "/srv/artifacts/model.gob")
			_ = os.Setenv("CHURN_TRANSFORMER_PATH", "/srv/artifacts/preprocessor.gob")
			_ = os.Setenv("CHURN_N_ESTIMATORS", "25")
			_ = os.Setenv("CHURN_TEST_SIZE", "0.25")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.ModelPath, convey.ShouldEqual, "/srv/artifacts/model.gob")
				convey.So(cfg.TransformerPath, convey.ShouldEqual, "/srv/artifacts/preprocessor.gob")
				convey.So(cfg.NEstimators, convey.ShouldEqual, 25)
				convey.So(cfg.TestSize, convey.ShouldEqual, 0.25)
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			yamlContent := `
addr: ":9090"
log_level: debug
cors_allowed_origins: "http://localhost:3000"
n_estimators: 50
max_depth: 12
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("CHURN_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from YAML file and keep other defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.LogLevel, convey.ShouldEqual, "debug")
				convey.So(cfg.AllowedOrigins(), convey.ShouldResemble, []string{"http://localhost:3000"})
				convey.So(cfg.NEstimators, convey.ShouldEqual, 50)
				convey.So(cfg.MaxDepth, convey.ShouldEqual, 12)
				convey.So(cfg.RandomSeed, convey.ShouldEqual, 42)
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			yamlContent := `
addr: ":9090"
n_estimators: 50
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("CHURN_CONFIG", tmpFile)
			_ = os.Setenv("CHURN_ADDR", ":8080")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.NEstimators, convey.ShouldEqual, 50)
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("CHURN_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("CHURN_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with empty addr", func() {
			_ = os.Setenv("CHURN_ADDR", "")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with an out-of-range test size", func() {
			_ = os.Setenv("CHURN_TEST_SIZE", "1.5")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "test_size")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading metrics, tracing and forest settings from the environment", func() {
			_ = os.Setenv("CHURN_METRICS_ENABLED", "false")
			_ = os.Setenv("CHURN_METRICS_NAMESPACE", "retention")
			_ = os.Setenv("CHURN_METRICS_REFRESH_SECONDS", "30")
			_ = os.Setenv("CHURN_OTLP_INSECURE", "false")
			_ = os.Setenv("CHURN_MAX_FEATURES", "4")
			_ = os.Setenv("CHURN_MIN_SAMPLES_LEAF", "5")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then every key should reach the config", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.MetricsEnabled, convey.ShouldBeFalse)
				convey.So(cfg.MetricsNamespace, convey.ShouldEqual, "retention")
				convey.So(cfg.MetricsRefreshSeconds, convey.ShouldEqual, 30)
				convey.So(cfg.OTLPInsecure, convey.ShouldBeFalse)
				convey.So(cfg.MaxFeatures, convey.ShouldEqual, 4)
				convey.So(cfg.MinSamplesLeaf, convey.ShouldEqual, 5)
			})
		})

		convey.Convey("When the metrics namespace is not a valid metric name", func() {
			_ = os.Setenv("CHURN_METRICS_NAMESPACE", "churn-api")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "metrics_namespace")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When min_samples_leaf is zero", func() {
			_ = os.Setenv("CHURN_MIN_SAMPLES_LEAF", "0")
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "min_samples_leaf")
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("CHURN_N_ESTIMATORS", "not_a_number")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	envVars := []string{
		"CHURN_CONFIG",
		"CHURN_ADDR",
		"CHURN_MODEL_PATH",
		"CHURN_TRANSFORMER_PATH",
		"CHURN_N_ESTIMATORS",
		"CHURN_TEST_SIZE",
		"CHURN_METRICS_ENABLED",
		"CHURN_METRICS_NAMESPACE",
		"CHURN_METRICS_REFRESH_SECONDS",
		"CHURN_OTLP_INSECURE",
		"CHURN_MAX_FEATURES",
		"CHURN_MIN_SAMPLES_LEAF",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "churn-config-*.yaml")
	if err != nil {
		panic(err)
	}

	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}

	if err := tmpFile.Close(); err != nil {
		panic(err)
	}

	return tmpFile.Name()
}
