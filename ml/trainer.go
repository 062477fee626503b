package ml

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// TrainingConfig drives one offline training run.
type TrainingConfig struct {
	DataPath       string
	ModelPath      string
	SchemaPath     string
	MaxDepth       int
	MinSamplesLeaf int
	TestRatio      float64
	Seed           int64
}

// TrainingResult describes a finished run.
type TrainingResult struct {
	Columns    []string
	DataPoints int
	TrainRows  int
	Metrics    Metrics
	Depth      int
	Leaves     int
	TrainedAt  time.Time
}

// Train reads the dataset, derives the column schema, fits a decision
// tree on the training split, scores it on the held-out split and writes
// both artifacts.
func Train(config TrainingConfig, logger *zap.Logger) (*TrainingResult, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.DataPath == "" {
		return nil, errors.New("data path is required")
	}
	if config.ModelPath == "" || config.SchemaPath == "" {
		return nil, errors.New("model and schema paths are required")
	}

	samples, err := LoadDataset(config.DataPath)
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	logger.Info("dataset loaded", zap.String("path", config.DataPath), zap.Int("rows", len(samples)))

	schema := BuildSchema(Records(samples))
	encoder, err := NewEncoder(schema)
	if err != nil {
		return nil, err
	}
	features, labels, err := EncodeDataset(encoder, samples)
	if err != nil {
		return nil, err
	}

	trainX, trainY, testX, testY := SplitDataset(features, labels, config.TestRatio, config.Seed)

	model := NewDecisionTree(config.MaxDepth)
	if config.MinSamplesLeaf > 0 {
		model.MinSamplesLeaf = config.MinSamplesLeaf
	}
	model.SetFeatureNames(schema.Columns)
	if err := model.Train(trainX, trainY); err != nil {
		return nil, fmt.Errorf("train model: %w", err)
	}

	metrics := Evaluate(model, testX, testY)
	logger.Info("model evaluated",
		zap.Int("test_rows", metrics.Samples),
		zap.Float64("accuracy", metrics.Accuracy),
		zap.Float64("precision", metrics.Precision),
		zap.Float64("recall", metrics.Recall),
		zap.Float64("f1", metrics.F1),
	)

	for _, path := range []string{config.ModelPath, config.SchemaPath} {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create artifact dir: %w", err)
		}
	}
	if err := model.Save(config.ModelPath); err != nil {
		return nil, fmt.Errorf("save model: %w", err)
	}
	if err := schema.Save(config.SchemaPath); err != nil {
		return nil, fmt.Errorf("save schema: %w", err)
	}
	logger.Info("artifacts written", zap.String("model", config.ModelPath), zap.String("schema", config.SchemaPath))

	return &TrainingResult{
		Columns:    schema.Columns,
		DataPoints: len(samples),
		TrainRows:  len(trainX),
		Metrics:    metrics,
		Depth:      model.Depth(),
		Leaves:     model.Leaves(),
		TrainedAt:  time.Now().UTC(),
	}, nil
}
