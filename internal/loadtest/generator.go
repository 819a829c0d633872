package loadtest

import (
	"context"
	"math/rand"

	"github.com/okian/churn/internal/domain/customer"
	"github.com/okian/churn/pkg/logger"
)

// generateRecords draws n valid customers from a seeded source so a run can
// be replayed exactly.
func generateRecords(ctx context.Context, n int, seed int64) []customer.Record {
	logger.Get().Info(ctx, "generating customer records", logger.Int("records", n), logger.Int("seed", int(seed)))

	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // reproducible test data
	out := make([]customer.Record, n)
	for i := range out {
		out[i] = customer.Random(rng)
	}
	return out
}

// brokenBody is a record with SeniorCitizen sent as a string; the service
// must reject it with 422.
func brokenBody() ([]byte, error) {
	raw, err := marshalJSON(customer.Sample())
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := unmarshalJSON(raw, &m); err != nil {
		return nil, err
	}
	m["SeniorCitizen"] = "no"
	return marshalJSON(m)
}
