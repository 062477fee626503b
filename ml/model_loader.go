package ml

import (
	"errors"
	"fmt"
	"slices"
)

// ModelTypeDecisionTree is the only model type the service knows.
const ModelTypeDecisionTree = "decision_tree"

// LoadModel reads a persisted model of the given type.
func LoadModel(modelType, path string) (MLModel, error) {
	switch modelType {
	case ModelTypeDecisionTree, "":
		model := &DecisionTree{}
		if err := model.Load(path); err != nil {
			return nil, err
		}
		return model, nil
	default:
		return nil, errors.New("unsupported model type")
	}
}

// LoadArtifacts reads the model and its column schema and checks that
// they describe the same vector.
func LoadArtifacts(modelType, modelPath, schemaPath string) (MLModel, Schema, error) {
	model, err := LoadModel(modelType, modelPath)
	if err != nil {
		return nil, Schema{}, fmt.Errorf("load model: %w", err)
	}
	schema, err := LoadSchema(schemaPath)
	if err != nil {
		return nil, Schema{}, fmt.Errorf("load schema: %w", err)
	}
	if !slices.Equal(model.Features(), schema.Columns) {
		return nil, Schema{}, fmt.Errorf("%w: model trained on %v, schema has %v", ErrSchemaMismatch, model.Features(), schema.Columns)
	}
	return model, schema, nil
}
