// Package prediction contains the PredictionResult returned to clients.
package prediction

import (
	"errors"
	"fmt"
	"math"
)

// Labels as presented to clients.
const (
	LabelChurn   = "Yes"
	LabelNoChurn = "No"
)

// Class indices produced by the classifier.
const (
	ClassNoChurn = 0
	ClassChurn   = 1
)

const roundingScale = 1e4

// ErrInvalidOutput is returned when classifier output cannot be presented.
var ErrInvalidOutput = errors.New("invalid classifier output")

// Probability is the presented class distribution.
type Probability struct {
	Churn   float64 `json:"Churn"`
	NoChurn float64 `json:"No Churn"`
}

// Result is the body of a successful POST /predict.
type Result struct {
	Prediction  string      `json:"prediction"`
	Probability Probability `json:"probability"`
}

// FromClassifier maps a class label and a [no-churn, churn] distribution to
// a Result, rounding each probability to four decimals.
func FromClassifier(label int, proba []float64) (Result, error) {
	if len(proba) != 2 {
		return Result{}, fmt.Errorf("%w: expected 2 probabilities, got %d", ErrInvalidOutput, len(proba))
	}
	for _, p := range proba {
		if math.IsNaN(p) || p < 0 || p > 1 {
			return Result{}, fmt.Errorf("%w: probability %v out of range", ErrInvalidOutput, p)
		}
	}

	var name string
	switch label {
	case ClassChurn:
		name = LabelChurn
	case ClassNoChurn:
		name = LabelNoChurn
	default:
		return Result{}, fmt.Errorf("%w: unknown class %d", ErrInvalidOutput, label)
	}

	return Result{
		Prediction: name,
		Probability: Probability{
			Churn:   Round4(proba[ClassChurn]),
			NoChurn: Round4(proba[ClassNoChurn]),
		},
	}, nil
}

// Round4 rounds to four decimal places, ties to even, so 0.28125 becomes
// 0.2812.
func Round4(v float64) float64 {
	return math.RoundToEven(v*roundingScale) / roundingScale
}
