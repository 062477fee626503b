package main

import (
	"fmt"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"heartrisk/db"
	"heartrisk/ml"
)

var (
	dataFlag = &cli.StringFlag{
		Name:  "data",
		Usage: "Training CSV with a HeartDisease label column (overrides training.data_path)",
	}
	modelFlag = &cli.StringFlag{
		Name:  "model",
		Usage: "Model artifact output path (overrides model.path)",
	}
	schemaFlag = &cli.StringFlag{
		Name:  "schema",
		Usage: "Column schema output path (overrides model.schema_path)",
	}
	maxDepthFlag = &cli.IntFlag{
		Name:  "max-depth",
		Usage: "Maximum tree depth, 0 for unbounded",
	}
	minLeafFlag = &cli.IntFlag{
		Name:  "min-samples-leaf",
		Usage: "Minimum samples per leaf",
	}
	testRatioFlag = &cli.Float64Flag{
		Name:  "test-ratio",
		Usage: "Share of rows held out for evaluation",
	}
	seedFlag = &cli.Int64Flag{
		Name:  "seed",
		Usage: "Shuffle seed for the train/test split",
	}

	trainCmd = &cli.Command{
		Name:    "train",
		Aliases: []string{"t"},
		Usage:   "Fit the decision tree and write the model and schema artifacts",
		Action:  cmdTrain,
		Flags: []cli.Flag{
			dataFlag,
			modelFlag,
			schemaFlag,
			maxDepthFlag,
			minLeafFlag,
			testRatioFlag,
			seedFlag,
		},
	}
)

func cmdTrain(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	defer logger.Close()

	tc := ml.TrainingConfig{
		DataPath:       cfg.Training.DataPath,
		ModelPath:      cfg.Model.Path,
		SchemaPath:     cfg.Model.SchemaPath,
		MaxDepth:       cfg.Training.MaxDepth,
		MinSamplesLeaf: cfg.Training.MinSamplesLeaf,
		TestRatio:      cfg.Training.TestRatio,
		Seed:           cfg.Training.Seed,
	}
	if c.IsSet(dataFlag.Name) {
		tc.DataPath = c.String(dataFlag.Name)
	}
	if c.IsSet(modelFlag.Name) {
		tc.ModelPath = c.String(modelFlag.Name)
	}
	if c.IsSet(schemaFlag.Name) {
		tc.SchemaPath = c.String(schemaFlag.Name)
	}
	if c.IsSet(maxDepthFlag.Name) {
		tc.MaxDepth = c.Int(maxDepthFlag.Name)
	}
	if c.IsSet(minLeafFlag.Name) {
		tc.MinSamplesLeaf = c.Int(minLeafFlag.Name)
	}
	if c.IsSet(testRatioFlag.Name) {
		tc.TestRatio = c.Float64(testRatioFlag.Name)
	}
	if c.IsSet(seedFlag.Name) {
		tc.Seed = c.Int64(seedFlag.Name)
	}

	result, err := ml.Train(tc, logger.Logger)
	if err != nil {
		return fmt.Errorf("train: %w", err)
	}

	store, err := db.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	err = store.SaveTrainingLog(c.Context, db.TrainingLog{
		ModelName:  tc.ModelPath,
		Accuracy:   result.Metrics.Accuracy,
		Precision:  result.Metrics.Precision,
		Recall:     result.Metrics.Recall,
		F1:         result.Metrics.F1,
		Depth:      result.Depth,
		Leaves:     result.Leaves,
		TrainedAt:  result.TrainedAt,
		DataPoints: result.DataPoints,
	})
	if err != nil {
		// The artifacts are already written; a missing log entry is not fatal.
		logger.Warn("record training log failed", zap.Error(err))
	}

	fmt.Printf("model saved to %s (%d columns, depth %d, %d leaves)\n",
		tc.ModelPath, len(result.Columns), result.Depth, result.Leaves)
	fmt.Printf("accuracy=%.3f precision=%.3f recall=%.3f f1=%.3f on %d held-out rows\n",
		result.Metrics.Accuracy, result.Metrics.Precision, result.Metrics.Recall,
		result.Metrics.F1, result.Metrics.Samples)
	return nil
}
