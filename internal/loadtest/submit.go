package loadtest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/churn/internal/domain/customer"
	"github.com/okian/churn/internal/domain/prediction"
	"github.com/okian/churn/pkg/logger"
)

// outcome is the verified response to one record.
type outcome struct {
	body   []byte
	result prediction.Result
	err    error
}

// submitRecords posts records concurrently using a worker pool and checks
// every response. outcomes[i] belongs to records[i].
func submitRecords(ctx context.Context, config *Config, client *HTTPClient, records []customer.Record, stats *Stats) []outcome {
	log := logger.Get()
	log.Info(ctx, "submitting records", logger.Int("records", len(records)), logger.Int("workers", config.Workers))

	url := config.BaseURL + "/predict"
	outcomes := make([]outcome, len(records))

	var (
		submitted  int64
		successful int64
		failed     int64
		violations int64
		lastReport atomic.Int64
	)

	jobs := make(chan int, config.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup

	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				if ctx.Err() != nil {
					return
				}
				o := submitSingle(ctx, client, url, records[idx])
				outcomes[idx] = o

				atomic.AddInt64(&submitted, 1)
				switch {
				case o.body == nil:
					atomic.AddInt64(&failed, 1)
				case o.err != nil:
					atomic.AddInt64(&violations, 1)
				default:
					atomic.AddInt64(&successful, 1)
				}

				now := time.Now().UnixNano()
				last := lastReport.Load()
				if now-last >= int64(progressInterval) && lastReport.CompareAndSwap(last, now) {
					if config.Verbose {
						log.Info(ctx, "progress",
							logger.Int("submitted", int(atomic.LoadInt64(&submitted))),
							logger.Int("total", len(records)),
							logger.Int("failed", int(atomic.LoadInt64(&failed))),
							logger.Int("violations", int(atomic.LoadInt64(&violations))),
						)
					}
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := range records {
			select {
			case <-ctx.Done():
				return
			case jobs <- i:
			}
		}
	}()

	wg.Wait()

	stats.Submitted = int(atomic.LoadInt64(&submitted))
	stats.Successful = int(atomic.LoadInt64(&successful))
	stats.Failed = int(atomic.LoadInt64(&failed))
	stats.Violations = int(atomic.LoadInt64(&violations))
	for _, o := range outcomes {
		if o.err == nil && o.result.Prediction == prediction.LabelChurn {
			stats.PredictedChurn++
		}
	}

	log.Info(ctx, "record submission completed",
		logger.Int("successful", stats.Successful),
		logger.Int("failed", stats.Failed),
		logger.Int("violations", stats.Violations),
	)
	return outcomes
}

// submitSingle posts one record. A nil body means the request never got a
// response; err reports a property violation.
func submitSingle(ctx context.Context, client *HTTPClient, url string, rec customer.Record) outcome {
	resp, err := client.Post(ctx, url, rec)
	if err != nil {
		return outcome{err: fmt.Errorf("request failed: %w", err)}
	}
	body, err := readResponseBody(resp)
	if err != nil {
		return outcome{err: fmt.Errorf("read response: %w", err)}
	}
	res, err := checkResult(resp.StatusCode, body)
	return outcome{body: body, result: res, err: err}
}
