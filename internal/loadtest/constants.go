package loadtest

import "time"

// HTTP status code constants.
const (
	StatusOK                  = 200
	StatusUnprocessableEntity = 422
)

// Worker configuration constants.
const (
	WorkerChannelMultiplier = 2
)

// Verification constants.
const (
	ProbabilityTolerance = 1e-3
	PercentageMultiplier = 100
	progressInterval     = time.Second
)
