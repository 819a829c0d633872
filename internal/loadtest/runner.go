// Package loadtest drives a running churn API with random customers and
// checks the response guarantees from the client side.
package loadtest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/churn/internal/domain/customer"
	"github.com/okian/churn/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
)

// Run executes the complete load test and returns the collected statistics.
// The error is non-nil when the service is unreachable or any check failed.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}
	if config.Workers < 1 {
		config.Workers = 1
	}

	logger.Get().Info(ctx, "starting churn load test",
		logger.String("baseURL", config.BaseURL),
		logger.Int("records", config.NumRecords),
		logger.Int("workers", config.Workers),
		logger.String("timeout", config.Timeout.String()),
		logger.Bool("verbose", config.Verbose))

	client := newHTTPClient(config.Timeout)

	// Step 1: Check service readiness
	if err := checkServiceHealth(ctx, client, config); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Generate records
	records := generateRecords(ctx, config.NumRecords, config.Seed)
	stats.RecordsGenerated = len(records)

	// Step 3: Submit concurrently and check every response
	first := submitRecords(ctx, config, client, records, stats)

	// Step 4: Resubmit a sample and compare bodies
	verifyDeterminism(ctx, config, client, records, first, stats)

	// Step 5: A wrong-typed record must be rejected
	if err := verifyRejection(ctx, config, client); err != nil {
		logger.Get().Warn(ctx, "rejection check failed", logger.Error(err))
	} else {
		stats.RejectedBroken = true
	}

	// Step 6: Save records to file
	if config.OutputFile != "" {
		if err := saveRecordsToFile(ctx, config.OutputFile, records); err != nil {
			logger.Get().Warn(ctx, "failed to save records to file", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(stats)

	if err := verdict(stats); err != nil {
		return stats, err
	}
	logger.Get().Info(ctx, "test completed successfully")
	return stats, nil
}

// checkServiceHealth verifies the service reports ready.
func checkServiceHealth(ctx context.Context, client *HTTPClient, config *Config) error {
	logger.Get().Info(ctx, "checking service health")

	resp, err := client.Get(ctx, config.BaseURL+"/healthz")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	if _, err := readResponseBody(resp); err != nil {
		return fmt.Errorf("read health response: %w", err)
	}
	if resp.StatusCode != StatusOK {
		return fmt.Errorf("service health check failed with status: %d", resp.StatusCode)
	}

	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// saveRecordsToFile writes the generated records as one JSON array.
func saveRecordsToFile(ctx context.Context, filename string, records []customer.Record) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := marshalJSON(records)
	if err != nil {
		return fmt.Errorf("failed to marshal records: %w", err)
	}
	if err := os.WriteFile(filename, data, 0o600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	logger.Get().Info(ctx, "records saved to file", logger.String("filename", filename))
	return nil
}

// displayFinalStats logs the final test statistics.
func displayFinalStats(stats *Stats) {
	var successRate, requestsPerSecond float64

	if stats.Submitted > 0 {
		successRate = float64(stats.Successful) / float64(stats.Submitted) * PercentageMultiplier
	}
	if stats.Duration > 0 {
		requestsPerSecond = float64(stats.Submitted+stats.Resubmitted) / stats.Duration.Seconds()
	}

	logger.Get().Info(context.Background(), "final statistics",
		logger.Int("recordsGenerated", stats.RecordsGenerated),
		logger.Int("submitted", stats.Submitted),
		logger.Int("successful", stats.Successful),
		logger.Int("failed", stats.Failed),
		logger.Int("violations", stats.Violations),
		logger.Int("predictedChurn", stats.PredictedChurn),
		logger.Int("resubmitted", stats.Resubmitted),
		logger.Int("mismatched", stats.Mismatched),
		logger.Bool("rejectedBroken", stats.RejectedBroken),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("successRate", successRate),
		logger.Float64("requestsPerSecond", requestsPerSecond))
}
