package service

import "errors"

// Sentinel errors.
var (
	ErrProcessing      = errors.New("prediction processing failed")
	ErrNotStarted      = errors.New("service not started")
	ErrMissingArtifact = errors.New("artifact not provided")
)
