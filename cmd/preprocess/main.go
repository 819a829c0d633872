// Command preprocess cleans the raw churn CSV, writes the transformed
// train/test partitions and persists the fitted transformer.
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
	log := logger.Named("preprocess")

	res, err := pipeline.Prepare(ctx, cfg, log)
	if err != nil {
		log.Error(ctx, "data preparation failed", logger.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	fmt.Printf("rows=%d dropped=%d train=%d test=%d features=%d\n",
		res.Rows, res.Dropped, res.TrainRows, res.TestRows, res.Features)
	fmt.Printf("transformer saved to %s (id %s)\n", res.Transformer.Path, res.Transformer.ID)
	_ = logger.Sync()
}
