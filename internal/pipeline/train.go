package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/churn/internal/artifact"
	"github.com/okian/churn/internal/config"
	"github.com/okian/churn/internal/dataset"
	"github.com/okian/churn/internal/ml/evaluate"
	"github.com/okian/churn/internal/ml/forest"
	"github.com/okian/churn/pkg/logger"
)

// TrainResult summarizes one model fitting run.
type TrainResult struct {
	Accuracy float64
	Report   *evaluate.Report
	Model    artifact.Info
}

// Train fits the forest on the transformed training partition, scores it
// on the held-out partition and persists the model.
func Train(ctx context.Context, cfg *config.Config, log logger.Logger) (TrainResult, error) {
	start := time.Now()

	Xtrain, ytrain, err := dataset.ReadPartition(cfg.TrainPath())
	if err != nil {
		return TrainResult{}, fmt.Errorf("read train partition: %w", err)
	}
	Xtest, ytest, err := dataset.ReadPartition(cfg.TestPath())
	if err != nil {
		return TrainResult{}, fmt.Errorf("read test partition: %w", err)
	}

	clf := forest.New(
		forest.WithEstimators(cfg.NEstimators),
		forest.WithMaxDepth(cfg.MaxDepth),
		forest.WithMaxFeatures(cfg.MaxFeatures),
		forest.WithMinSamplesLeaf(cfg.MinSamplesLeaf),
		forest.WithWorkers(cfg.TrainWorkers),
		forest.WithSeed(cfg.RandomSeed),
	)
	if err := clf.Fit(ctx, Xtrain, ytrain); err != nil {
		return TrainResult{}, fmt.Errorf("fit model: %w", err)
	}
	log.Info(ctx, "model fitted",
		logger.Int("estimators", clf.NEstimators()),
		logger.Int("features", clf.NFeatures()),
		logger.Duration("elapsed", time.Since(start)),
	)

	pred, err := clf.Predict(Xtest)
	if err != nil {
		return TrainResult{}, fmt.Errorf("score test partition: %w", err)
	}
	report, err := evaluate.NewReport(ytest, pred)
	if err != nil {
		return TrainResult{}, err
	}

	info, err := artifact.Save(ctx, cfg.ModelPath, artifact.KindModel, clf)
	if err != nil {
		return TrainResult{}, err
	}
	log.Info(ctx, "model saved",
		logger.String("path", info.Path),
		logger.String("id", info.ID.String()),
		logger.Float64("accuracy", report.Accuracy),
	)
	return TrainResult{Accuracy: report.Accuracy, Report: report, Model: info}, nil
}
