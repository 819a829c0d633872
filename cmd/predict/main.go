// Command predict loads the serving artifacts and scores one customer: the
// built-in sample record, or the JSON object in the file named by -input.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	app "github.com/okian/churn/internal/app"
	"github.com/okian/churn/internal/artifact"
	"github.com/okian/churn/internal/config"
	"github.com/okian/churn/internal/domain/customer"
	"github.com/okian/churn/pkg/logger"
)

func main() {
	input := flag.String("input", "", "JSON file holding one customer record (default: built-in sample)")
	flag.Parse()

	ctx := context.Background()
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}
	if err := logger.Init(logger.WithFile(cfg.LogFile)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	_ = logger.SetLevelString(cfg.LogLevel)

	if err := run(ctx, cfg, *input); err != nil {
		logger.Get().Error(ctx, "prediction failed", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, input string) error {
	rec := customer.Sample()
	if input != "" {
		body, err := os.ReadFile(input) //nolint:gosec // operator-supplied path
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
		if rec, err = customer.Decode(body); err != nil {
			return err
		}
	}

	bundle, err := artifact.NewLoader(cfg.TransformerPath, cfg.ModelPath).LoadBundle(ctx)
	if err != nil {
		return err
	}
	svc := app.New(app.WithBundle(bundle))
	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer svc.Stop()

	res, err := svc.Predict(ctx, rec)
	if err != nil {
		return err
	}
	fmt.Printf("Prediction: %s\n", res.Prediction)
	fmt.Printf("Probability: Churn=%.4f No Churn=%.4f\n", res.Probability.Churn, res.Probability.NoChurn)
	return nil
}
