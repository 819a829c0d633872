// Command train fits the churn classifier on the prepared partitions,
// prints its held-out accuracy and per-class report, and saves the model.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/okian/churn/internal/config"
	"github.com/okian/churn/internal/pipeline"
	"github.com/okian/churn/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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
	log := logger.Named("train")

	res, err := pipeline.Train(ctx, cfg, log)
	if err != nil {
		log.Error(ctx, "training failed", logger.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	fmt.Printf("Accuracy: %.4f\n\n", res.Accuracy)
	fmt.Println(res.Report.String())
	fmt.Printf("model saved to %s (id %s)\n", res.Model.Path, res.Model.ID)
	_ = logger.Sync()
}
