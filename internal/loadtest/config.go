package loadtest

import "time"

// Config holds configuration for a load test run.
type Config struct {
	BaseURL     string        // Base URL of the service
	NumRecords  int           // Number of records to generate
	Workers     int           // Number of concurrent workers
	Resubmit    int           // Records sent a second time to check determinism
	Timeout     time.Duration // HTTP request timeout
	Seed        int64         // Seed for the record generator
	OutputFile  string        // Optional JSON dump of generated records
	LogFile     string        // Log file for test output
	Verbose     bool          // Enable verbose logging
}

// Stats holds test statistics.
type Stats struct {
	RecordsGenerated int
	Submitted        int
	Successful       int
	Failed           int
	Violations       int
	PredictedChurn   int
	Resubmitted      int
	Mismatched       int
	RejectedBroken   bool
	StartTime        time.Time
	EndTime          time.Time
	Duration         time.Duration
}
