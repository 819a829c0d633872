// Package pipeline runs the offline stages that produce the serving
// artifacts: data preparation and model fitting.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/churn/internal/artifact"
	"github.com/okian/churn/internal/config"
	"github.com/okian/churn/internal/dataset"
	"github.com/okian/churn/internal/ml/preprocess"
	"github.com/okian/churn/pkg/logger"
)

// PrepareResult summarizes one data preparation run.
type PrepareResult struct {
	Rows        int
	Dropped     int
	TrainRows   int
	TestRows    int
	Features    int
	Transformer artifact.Info
}

// Prepare cleans the raw CSV, splits it with stratification, fits the
// transformer on the training partition only, writes both transformed
// partitions and persists the transformer.
func Prepare(ctx context.Context, cfg *config.Config, log logger.Logger) (PrepareResult, error) {
	start := time.Now()

	frame, err := dataset.LoadRaw(ctx, cfg.RawDataPath)
	if err != nil {
		return PrepareResult{}, fmt.Errorf("load raw data: %w", err)
	}
	log.Info(ctx, "raw data loaded",
		logger.String("path", cfg.RawDataPath),
		logger.Int("rows", len(frame.Records)),
		logger.Int("dropped", frame.Dropped),
	)

	trainIdx, testIdx, err := dataset.StratifiedSplit(frame.Labels, cfg.TestSize, cfg.RandomSeed)
	if err != nil {
		return PrepareResult{}, fmt.Errorf("split: %w", err)
	}
	train, test := frame.Subset(trainIdx), frame.Subset(testIdx)

	p := preprocess.New()
	Xtrain, err := p.FitTransform(train.Records)
	if err != nil {
		return PrepareResult{}, fmt.Errorf("fit transformer: %w", err)
	}
	Xtest, err := p.Transform(test.Records)
	if err != nil {
		return PrepareResult{}, fmt.Errorf("transform test partition: %w", err)
	}

	if err := dataset.WritePartition(cfg.TrainPath(), Xtrain, train.Labels); err != nil {
		return PrepareResult{}, err
	}
	if err := dataset.WritePartition(cfg.TestPath(), Xtest, test.Labels); err != nil {
		return PrepareResult{}, err
	}

	info, err := artifact.Save(ctx, cfg.TransformerPath, artifact.KindTransformer, p)
	if err != nil {
		return PrepareResult{}, err
	}

	res := PrepareResult{
		Rows:        len(frame.Records),
		Dropped:     frame.Dropped,
		TrainRows:   len(trainIdx),
		TestRows:    len(testIdx),
		Features:    p.Width(),
		Transformer: info,
	}
	log.Info(ctx, "data preparation complete",
		logger.Int("train", res.TrainRows),
		logger.Int("test", res.TestRows),
		logger.Int("features", res.Features),
		logger.String("transformer", info.Path),
		logger.Duration("elapsed", time.Since(start)),
	)
	return res, nil
}
