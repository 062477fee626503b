package ml

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestDecisionTreeTrainPredict(t *testing.T) {
	features := [][]float64{
		{0.1, 0.2},
		{0.2, 0.1},
		{0.9, 0.8},
		{0.8, 0.9},
	}
	labels := []int{0, 0, 1, 1}

	model := NewDecisionTree(2)
	if err := model.Train(features, labels); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	label, confidence, err := model.Predict([]float64{0.15, 0.15})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if label != 0 {
		t.Fatalf("expected label 0, got %d", label)
	}
	if confidence != 1 {
		t.Fatalf("expected confidence 1, got %f", confidence)
	}

	label, _, err = model.Predict([]float64{0.85, 0.85})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if label != 1 {
		t.Fatalf("expected label 1, got %d", label)
	}
	if model.Depth() != 1 || model.Leaves() != 2 {
		t.Fatalf("expected a single split, got depth=%d leaves=%d", model.Depth(), model.Leaves())
	}
}

func TestDecisionTreeLeafProbabilities(t *testing.T) {
	model := NewDecisionTree(1)
	if err := model.Train([][]float64{{0}, {0}, {0}, {1}}, []int{0, 0, 1, 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	label, confidence, err := model.Predict([]float64{0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if label != 0 || confidence != 2.0/3.0 {
		t.Fatalf("expected label 0 with 2/3, got %d with %f", label, confidence)
	}

	proba, err := model.PredictProba([]float64{0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(proba) != 2 || math.Abs(proba[0]+proba[1]-1) > 1e-9 {
		t.Fatalf("unexpected distribution: %v", proba)
	}

	label, confidence, _ = model.Predict([]float64{1})
	if label != 1 || confidence != 1 {
		t.Fatalf("expected label 1 with 1.0, got %d with %f", label, confidence)
	}
}

func TestDecisionTreeTieGoesToLowestLabel(t *testing.T) {
	model := NewDecisionTree(3)
	if err := model.Train([][]float64{{5}, {5}}, []int{1, 0}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	label, confidence, err := model.Predict([]float64{5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if label != 0 || confidence != 0.5 {
		t.Fatalf("expected label 0 with 0.5, got %d with %f", label, confidence)
	}
}

func TestDecisionTreeShapeMismatch(t *testing.T) {
	model := NewDecisionTree(2)
	if _, _, err := model.Predict([]float64{1}); !errors.Is(err, ErrNotTrained) {
		t.Fatalf("expected ErrNotTrained, got %v", err)
	}
	if err := model.Train([][]float64{{1, 2}, {3, 4}}, []int{0, 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, _, err := model.Predict([]float64{1, 2, 3}); !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("expected ErrShapeMismatch, got %v", err)
	}
	if err := model.Train([][]float64{{1, 2}, {3}}, []int{0, 1}); !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("expected ErrShapeMismatch for ragged rows, got %v", err)
	}
}

func TestDecisionTreeRejectsBadInput(t *testing.T) {
	model := NewDecisionTree(2)
	if err := model.Train(nil, nil); err == nil {
		t.Fatal("expected error for empty input")
	}
	if err := model.Train([][]float64{{1}}, []int{0, 1}); err == nil {
		t.Fatal("expected error for size mismatch")
	}
	if err := model.Train([][]float64{{1}}, []int{-1}); err == nil {
		t.Fatal("expected error for negative label")
	}
	model.SetFeatureNames([]string{"a", "b"})
	if err := model.Train([][]float64{{1}}, []int{0}); !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("expected ErrShapeMismatch for names, got %v", err)
	}
}

func TestDecisionTreeMaxDepth(t *testing.T) {
	features := make([][]float64, 0, 16)
	labels := make([]int, 0, 16)
	for i := 0; i < 16; i++ {
		features = append(features, []float64{float64(i)})
		labels = append(labels, i%2)
	}

	model := NewDecisionTree(2)
	if err := model.Train(features, labels); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if model.Depth() > 2 {
		t.Fatalf("expected depth <= 2, got %d", model.Depth())
	}

	unbounded := NewDecisionTree(0)
	if err := unbounded.Train(features, labels); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, feature := range features {
		label, _, err := unbounded.Predict(feature)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if label != labels[i] {
			t.Fatalf("unbounded tree should fit row %d", i)
		}
	}
}

func TestDecisionTreeSaveLoad(t *testing.T) {
	samples, err := LoadDataset(filepath.Join("testdata", "heart_sample.csv"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	schema := BuildSchema(Records(samples))
	encoder, err := NewEncoder(schema)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	features, labels, err := EncodeDataset(encoder, samples)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	model := NewDecisionTree(4)
	model.SetFeatureNames(schema.Columns)
	if err := model.Train(features, labels); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	path := filepath.Join(t.TempDir(), "tree.json")
	if err := model.Save(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	loaded := &DecisionTree{}
	if err := loaded.Load(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i, feature := range features {
		wantLabel, wantConf, _ := model.Predict(feature)
		gotLabel, gotConf, err := loaded.Predict(feature)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if wantLabel != gotLabel || wantConf != gotConf {
			t.Fatalf("row %d: loaded model predicts %d/%f, want %d/%f", i, gotLabel, gotConf, wantLabel, wantConf)
		}
	}
	if len(loaded.Features()) != len(schema.Columns) {
		t.Fatalf("expected %d feature names, got %d", len(schema.Columns), len(loaded.Features()))
	}

	if err := (&DecisionTree{}).Save(path); !errors.Is(err, ErrNotTrained) {
		t.Fatalf("expected ErrNotTrained, got %v", err)
	}
}

func TestDecisionTreeTrainingIsDeterministic(t *testing.T) {
	features := [][]float64{{1, 5}, {2, 4}, {3, 3}, {4, 2}, {5, 1}, {6, 0}}
	labels := []int{0, 1, 0, 1, 1, 1}

	a := NewDecisionTree(3)
	b := NewDecisionTree(3)
	if err := a.Train(features, labels); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := b.Train(features, labels); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(a.nodes) != len(b.nodes) {
		t.Fatalf("node counts differ: %d vs %d", len(a.nodes), len(b.nodes))
	}
	for i := range a.nodes {
		if a.nodes[i].FeatureIdx != b.nodes[i].FeatureIdx || a.nodes[i].Threshold != b.nodes[i].Threshold {
			t.Fatalf("node %d differs", i)
		}
	}
}

func TestDecisionTreeLoadRejectsCorruptNodes(t *testing.T) {
	const leaf = `{"feature_idx":-1,"left_child":-1,"right_child":-1,"counts":[1,1],"is_leaf":true}`
	tests := map[string]string{
		"child out of range":    `[{"feature_idx":0,"threshold":0.5,"left_child":7,"right_child":8,"counts":[1,1]}]`,
		"child cycles to root":  `[{"feature_idx":0,"threshold":0.5,"left_child":0,"right_child":0,"counts":[1,1]}]`,
		"children out of order": `[{"feature_idx":0,"threshold":0.5,"left_child":2,"right_child":1,"counts":[1,1]},` + leaf + `,` + leaf + `]`,
		"feature out of range":  `[{"feature_idx":3,"threshold":0.5,"left_child":1,"right_child":2,"counts":[1,1]},` + leaf + `,` + leaf + `]`,
		"count width":           `[{"feature_idx":-1,"left_child":-1,"right_child":-1,"counts":[1],"is_leaf":true}]`,
		"empty leaf":            `[{"feature_idx":-1,"left_child":-1,"right_child":-1,"counts":[0,0],"is_leaf":true}]`,
	}

	for name, nodes := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "tree.json")
			artifact := `{"version":1,"features":["a"],"classes":2,"nodes":` + nodes + `}`
			if err := os.WriteFile(path, []byte(artifact), 0o600); err != nil {
				t.Fatal(err)
			}
			if err := (&DecisionTree{}).Load(path); err == nil {
				t.Fatal("expected corrupt tree to be rejected")
			}
		})
	}

	path := filepath.Join(t.TempDir(), "tree.json")
	valid := `{"version":1,"features":["a"],"classes":2,"nodes":[{"feature_idx":0,"threshold":0.5,"left_child":1,"right_child":2,"counts":[2,2]},` + leaf + `,` + leaf + `]}`
	if err := os.WriteFile(path, []byte(valid), 0o600); err != nil {
		t.Fatal(err)
	}
	model := &DecisionTree{}
	if err := model.Load(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if model.Depth() != 1 || model.Leaves() != 2 {
		t.Fatalf("unexpected shape: depth=%d leaves=%d", model.Depth(), model.Leaves())
	}
}
