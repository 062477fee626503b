package ml

// Metrics summarises a classifier on a labelled set, with class 1 (high
// risk) as the positive class.
type Metrics struct {
	Samples   int     `json:"samples"`
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
}

// Evaluate scores the model on testX/testY. Rows the model rejects count
// as misclassified.
func Evaluate(model Classifier, testX [][]float64, testY []int) Metrics {
	m := Metrics{Samples: len(testX)}
	if len(testX) == 0 {
		return m
	}

	var correct, truePositive, predictedPositive, actualPositive int
	for i, feature := range testX {
		if testY[i] == LabelHighRisk {
			actualPositive++
		}
		label, _, err := model.Predict(feature)
		if err != nil {
			continue
		}
		if label == testY[i] {
			correct++
		}
		if label == LabelHighRisk {
			predictedPositive++
			if testY[i] == LabelHighRisk {
				truePositive++
			}
		}
	}

	m.Accuracy = float64(correct) / float64(len(testX))
	if predictedPositive > 0 {
		m.Precision = float64(truePositive) / float64(predictedPositive)
	}
	if actualPositive > 0 {
		m.Recall = float64(truePositive) / float64(actualPositive)
	}
	if m.Precision+m.Recall > 0 {
		m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}
	return m
}
