// Package mltest builds small fitted artifacts for tests in other packages.
package mltest

import (
	"context"
	"math/rand"

	"github.com/okian/churn/internal/domain/customer"
	"github.com/okian/churn/internal/ml/forest"
	"github.com/okian/churn/internal/ml/preprocess"
)

// Records draws n synthetic customers. Short month-to-month contracts on
// fibre churn; a tenth of the labels are flipped.
func Records(n int, seed int64) ([]customer.Record, []int) {
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // test data
	rows := make([]customer.Record, n)
	labels := make([]int, n)
	for i := range rows {
		r := customer.Random(rng)
		rows[i] = r
		churn := r.Contract == "Month-to-month" && (r.Tenure < 24 || r.InternetService == "Fiber optic")
		if rng.Float64() < 0.1 {
			churn = !churn
		}
		if churn {
			labels[i] = 1
		}
	}
	return rows, labels
}

// Fit returns a transformer and a small forest fitted on Records(n, seed).
func Fit(ctx context.Context, n int, seed int64) (*preprocess.Pipeline, *forest.Classifier, error) {
	rows, labels := Records(n, seed)
	p := preprocess.New()
	X, err := p.FitTransform(rows)
	if err != nil {
		return nil, nil, err
	}
	clf := forest.New(forest.WithEstimators(10), forest.WithSeed(seed), forest.WithWorkers(2))
	if err := clf.Fit(ctx, X, labels); err != nil {
		return nil, nil, err
	}
	return p, clf, nil
}
