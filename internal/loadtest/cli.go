package loadtest

import (
	"os"

	"github.com/okian/churn/pkg/logger"
)

// SetupLogging sends logs to stderr, keeping stdout for help text, and
// when logFile is set also to that file.
func SetupLogging(logFile string, verbose bool) error {
	if err := logger.Init(logger.WithWriter(os.Stderr), logger.WithFile(logFile)); err != nil {
		return err
	}
	if verbose {
		return logger.SetLevelString("debug")
	}
	return nil
}

// ShowHelp prints usage information for the load test tool.
func ShowHelp() {
	os.Stdout.WriteString(`Churn API Load Test
===================

Submits random customer records to a running churn API concurrently and
checks every response: status 200, a Yes/No label, probabilities rounded
to four decimals that sum to one, identical answers on resubmission, and
422 for a wrong-typed record.

Usage:
  go run ./cmd/loadtest [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:8000")
  -records int
        Number of records to generate and submit (default 1000)
  -workers int
        Number of concurrent workers (default CPU cores * 2)
  -resubmit int
        Records sent twice to check determinism (default 100)
  -seed int
        Generator seed (default 42)
  -timeout duration
        HTTP request timeout (default 10s)
  -output string
        Optional JSON file receiving the generated records
  -log string
        Optional log file
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  go run ./cmd/loadtest -records 5000 -workers 16
  go run ./cmd/loadtest -url http://churn.internal:8000 -verbose
`)
}
