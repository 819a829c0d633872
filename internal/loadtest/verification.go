package loadtest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/okian/churn/internal/domain/customer"
	"github.com/okian/churn/internal/domain/prediction"
	"github.com/okian/churn/pkg/logger"
)

// ErrVerification is returned when any observed response breaks a service
// guarantee.
var ErrVerification = errors.New("verification failed")

// checkResult validates one /predict response: status 200, a known label,
// probabilities in [0,1] rounded to four decimals and summing to one.
func checkResult(status int, body []byte) (prediction.Result, error) {
	if status != StatusOK {
		return prediction.Result{}, fmt.Errorf("unexpected status %d: %s", status, bytes.TrimSpace(body))
	}
	var res prediction.Result
	if err := unmarshalJSON(body, &res); err != nil {
		return prediction.Result{}, fmt.Errorf("undecodable result: %w", err)
	}
	if res.Prediction != prediction.LabelChurn && res.Prediction != prediction.LabelNoChurn {
		return res, fmt.Errorf("unknown prediction %q", res.Prediction)
	}
	for _, p := range []float64{res.Probability.Churn, res.Probability.NoChurn} {
		if p < 0 || p > 1 {
			return res, fmt.Errorf("probability %v out of range", p)
		}
		if math.Abs(math.Round(p*1e4)/1e4-p) > 1e-12 {
			return res, fmt.Errorf("probability %v not rounded to 4 decimals", p)
		}
	}
	if sum := res.Probability.Churn + res.Probability.NoChurn; math.Abs(sum-1) > ProbabilityTolerance {
		return res, fmt.Errorf("probabilities sum to %v", sum)
	}
	return res, nil
}

// verifyDeterminism resends up to n successfully scored records and counts
// responses that differ from the first answer byte for byte.
func verifyDeterminism(ctx context.Context, config *Config, client *HTTPClient, records []customer.Record, first []outcome, stats *Stats) {
	url := config.BaseURL + "/predict"
	for i := range records {
		if stats.Resubmitted >= config.Resubmit || ctx.Err() != nil {
			break
		}
		if first[i].err != nil || first[i].body == nil {
			continue
		}
		again := submitSingle(ctx, client, url, records[i])
		stats.Resubmitted++
		if !bytes.Equal(again.body, first[i].body) {
			stats.Mismatched++
			logger.Get().Warn(ctx, "non-deterministic response",
				logger.Int("record", i),
				logger.String("first", string(bytes.TrimSpace(first[i].body))),
				logger.String("second", string(bytes.TrimSpace(again.body))),
			)
		}
	}
}

// verifyRejection posts a wrong-typed record and expects 422.
func verifyRejection(ctx context.Context, config *Config, client *HTTPClient) error {
	body, err := brokenBody()
	if err != nil {
		return err
	}
	resp, err := client.PostRaw(ctx, config.BaseURL+"/predict", body)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	if _, err := readResponseBody(resp); err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != StatusUnprocessableEntity {
		return fmt.Errorf("broken record answered with %d, want %d", resp.StatusCode, StatusUnprocessableEntity)
	}
	return nil
}

// verdict folds the collected statistics into a single error.
func verdict(stats *Stats) error {
	var errs []error
	if stats.Failed > 0 {
		errs = append(errs, fmt.Errorf("%d requests got no response", stats.Failed))
	}
	if stats.Violations > 0 {
		errs = append(errs, fmt.Errorf("%d responses violated the contract", stats.Violations))
	}
	if stats.Mismatched > 0 {
		errs = append(errs, fmt.Errorf("%d of %d resubmissions differed", stats.Mismatched, stats.Resubmitted))
	}
	if !stats.RejectedBroken {
		errs = append(errs, errors.New("wrong-typed record was not rejected"))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrVerification, errors.Join(errs...))
}
