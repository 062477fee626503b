package http

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"strings"
	"testing"

	"heartrisk/ml"
	"heartrisk/patient"
)

func newTreePredictor(t *testing.T, strict bool) *ml.Predictor {
	t.Helper()
	samples, err := ml.LoadDataset(filepath.Join("..", "ml", "testdata", "heart_sample.csv"))
	if err != nil {
		t.Fatalf("load dataset: %v", err)
	}
	schema := ml.BuildSchema(ml.Records(samples))
	encoder, err := ml.NewEncoder(schema, ml.WithStrict(strict))
	if err != nil {
		t.Fatalf("build encoder: %v", err)
	}
	features, labels, err := ml.EncodeDataset(encoder, samples)
	if err != nil {
		t.Fatalf("encode dataset: %v", err)
	}
	tree := ml.NewDecisionTree(4)
	tree.SetFeatureNames(schema.Columns)
	if err := tree.Train(features, labels); err != nil {
		t.Fatalf("train: %v", err)
	}
	predictor, err := ml.NewPredictor(encoder, tree, 16, nil)
	if err != nil {
		t.Fatalf("build predictor: %v", err)
	}
	return predictor
}

func TestAPIPredictWithTrainedTree(t *testing.T) {
	h := newTestHandler(t, newTreePredictor(t, false), nil)

	record := patient.Default()
	record.ExerciseAngina = "N"
	body, _ := json.Marshal(record)
	w := postJSON(h, body)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var prediction ml.Prediction
	if err := json.Unmarshal(w.Body.Bytes(), &prediction); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if prediction.Label != ml.LabelLowRisk && prediction.Label != ml.LabelHighRisk {
		t.Fatalf("unexpected label %d", prediction.Label)
	}
	if prediction.Confidence < 0 || prediction.Confidence > 1 {
		t.Fatalf("confidence %f outside [0,1]", prediction.Confidence)
	}
	if len(prediction.Probabilities) != 2 || prediction.Probabilities[prediction.Label] != prediction.Confidence {
		t.Fatalf("unexpected probabilities %v for confidence %f", prediction.Probabilities, prediction.Confidence)
	}
}

func TestAPIPredictUnknownCategoryWithTrainedTree(t *testing.T) {
	record := patient.Default()
	record.ChestPainType = "XYZ"
	body, _ := json.Marshal(record)

	lenient := newTestHandler(t, newTreePredictor(t, false), nil)
	if w := postJSON(lenient, body); w.Code != http.StatusOK {
		t.Fatalf("lenient mode: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	strict := newTestHandler(t, newTreePredictor(t, true), nil)
	w := postJSON(strict, body)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("strict mode: expected 422, got %d: %s", w.Code, w.Body.String())
	}
	if msg, _ := decodeBody(t, w)["error"].(string); !strings.Contains(msg, patient.FieldChestPainType) {
		t.Errorf("error %q should name the field", msg)
	}
}
