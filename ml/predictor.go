package ml

import (
	"context"
	"encoding/binary"
	"math"
	"slices"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"heartrisk/patient"
)

// Risk labels for the two classes.
const (
	LabelLowRisk  = 0
	LabelHighRisk = 1

	RiskLow  = "low"
	RiskHigh = "high"
)

// Prediction is the outcome for one patient.
type Prediction struct {
	Label      int     `json:"label"`
	Risk       string  `json:"risk"`
	Confidence float64 `json:"confidence"`

	// Probabilities is indexed by label; empty when the model cannot
	// report a distribution.
	Probabilities []float64 `json:"probabilities,omitempty"`
}

// Predictor encodes records and classifies them with a fixed model.
type Predictor struct {
	encoder *Encoder
	model   Classifier
	cache   *lru.Cache[string, Prediction]
	logger  *zap.Logger
}

// NewPredictor wires an encoder to a model. A positive cacheSize keeps
// the most recent results keyed by encoded vector.
func NewPredictor(encoder *Encoder, model Classifier, cacheSize int, logger *zap.Logger) (*Predictor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Predictor{
		encoder: encoder,
		model:   model,
		logger:  logger,
	}
	if cacheSize > 0 {
		cache, err := lru.New[string, Prediction](cacheSize)
		if err != nil {
			return nil, err
		}
		p.cache = cache
	}
	return p, nil
}

// Predict classifies one record.
func (p *Predictor) Predict(ctx context.Context, record patient.Record) (Prediction, error) {
	if err := ctx.Err(); err != nil {
		return Prediction{}, err
	}

	vector, err := p.encoder.Encode(record)
	if err != nil {
		return Prediction{}, err
	}

	key := vectorKey(vector)
	if p.cache != nil {
		if cached, ok := p.cache.Get(key); ok {
			p.logger.Debug("prediction cache hit", zap.Int("label", cached.Label))
			cached.Probabilities = slices.Clone(cached.Probabilities)
			return cached, nil
		}
	}

	label, confidence, err := p.model.Predict(vector)
	if err != nil {
		return Prediction{}, err
	}

	prediction := Prediction{
		Label:      label,
		Risk:       RiskLow,
		Confidence: confidence,
	}
	if label == LabelHighRisk {
		prediction.Risk = RiskHigh
	}
	if pc, ok := p.model.(ProbabilityClassifier); ok {
		proba, err := pc.PredictProba(vector)
		if err != nil {
			return Prediction{}, err
		}
		prediction.Probabilities = proba
	}
	if p.cache != nil {
		p.cache.Add(key, prediction)
		prediction.Probabilities = slices.Clone(prediction.Probabilities)
	}
	return prediction, nil
}

// CacheLen returns the number of cached predictions.
func (p *Predictor) CacheLen() int {
	if p.cache == nil {
		return 0
	}
	return p.cache.Len()
}

func vectorKey(vector []float64) string {
	buf := make([]byte, 8*len(vector))
	for i, v := range vector {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return string(buf)
}
