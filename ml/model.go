package ml

// Classifier predicts a class label and its probability for one vector.
type Classifier interface {
	Predict(features []float64) (int, float64, error)
}

// ProbabilityClassifier also reports the distribution over every class.
type ProbabilityClassifier interface {
	Classifier
	PredictProba(features []float64) ([]float64, error)
}

// MLModel is a trainable, persistable classifier.
type MLModel interface {
	Classifier
	Train(features [][]float64, labels []int) error
	Features() []string
	Save(path string) error
	Load(path string) error
}

var (
	_ MLModel               = (*DecisionTree)(nil)
	_ ProbabilityClassifier = (*DecisionTree)(nil)
)
