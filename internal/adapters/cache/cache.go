// Package cache stores prediction results keyed by model and record so
// repeated submissions of the same customer skip the model.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/okian/churn/internal/domain/customer"
	"github.com/okian/churn/internal/domain/prediction"
)

// Cache is a prediction result store. Implementations are safe for
// concurrent use. Get reports a backend failure as an error with ok false;
// callers treat it as a miss.
type Cache interface {
	Get(ctx context.Context, key string) (prediction.Result, bool, error)
	Set(ctx context.Context, key string, r prediction.Result)
}

// Key derives the cache key for rec under the model identified by modelID.
// Records that serialise identically share a key.
func Key(modelID string, rec customer.Record) string {
	h := sha256.New()
	h.Write([]byte(modelID))
	h.Write([]byte{0})
	// Record has only scalar fields; Marshal cannot fail.
	b, _ := json.Marshal(rec)
	h.Write(b)
	return hex.EncodeToString(h.Sum(nil))
}
