package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/churn/internal/loadtest"
)

// Default configuration constants.
const (
	defaultNumRecords  = 1000
	defaultResubmit    = 100
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultTimeout     = 10 * time.Second
	defaultTestTimeout = 10 * time.Minute
	defaultSeed        = 42
)

func main() {
	var (
		baseURL    = flag.String("url", "http://localhost:8000", "Base URL of the service")
		numRecords = flag.Int("records", defaultNumRecords, "Number of records to generate and submit")
		workers    = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		resubmit   = flag.Int("resubmit", defaultResubmit, "Records sent twice to check determinism")
		seed       = flag.Int64("seed", defaultSeed, "Generator seed")
		timeout    = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		outputFile = flag.String("output", "", "Optional JSON file receiving the generated records")
		logFile    = flag.String("log", "", "Optional log file")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		loadtest.ShowHelp()
		return
	}

	if err := loadtest.SetupLogging(*logFile, *verbose); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
	defer cancel()

	config := &loadtest.Config{
		BaseURL:    *baseURL,
		NumRecords: *numRecords,
		Workers:    *workers,
		Resubmit:   *resubmit,
		Timeout:    *timeout,
		Seed:       *seed,
		OutputFile: *outputFile,
		LogFile:    *logFile,
		Verbose:    *verbose,
	}

	if _, err := loadtest.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Test failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
