package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"heartrisk/db"
	"heartrisk/ml"
	"heartrisk/patient"
)

// Prediction sources recorded in the history.
const (
	SourceForm      = "form"
	SourceAPI       = "api"
	SourceWebSocket = "ws"
)

// RiskPredictor classifies one patient.
type RiskPredictor interface {
	Predict(ctx context.Context, record patient.Record) (ml.Prediction, error)
}

// HistoryStore records served predictions.
type HistoryStore interface {
	SavePrediction(ctx context.Context, p db.PredictionRecord) (int64, error)
	RecentPredictions(ctx context.Context, limit int) ([]db.PredictionRecord, error)
}

// ModelInfo describes the loaded model for /api/model.
type ModelInfo struct {
	Type    string   `json:"type"`
	Columns []string `json:"columns"`
	Depth   int      `json:"depth"`
	Leaves  int      `json:"leaves"`
	Strict  bool     `json:"strict"`
}

// Options are the dependencies of Handlers. Store may be nil, in which
// case nothing is recorded and the history endpoint reports 503.
type Options struct {
	Predictor RiskPredictor
	Store     HistoryStore
	Model     ModelInfo
	Title     string
	Locale    string
	Logger    *zap.Logger
}

// Handlers serves every route of the service.
type Handlers struct {
	predictor RiskPredictor
	store     HistoryStore
	model     ModelInfo
	page      *pageRenderer
	validator *recordValidator
	logger    *zap.Logger
	started   time.Time
}

// NewHandlers prepares the templates and the request schema.
func NewHandlers(opts Options) (*Handlers, error) {
	if opts.Predictor == nil {
		return nil, errors.New("predictor is required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	page, err := newPageRenderer(opts.Title, opts.Locale)
	if err != nil {
		return nil, err
	}
	validator, err := newRecordValidator()
	if err != nil {
		return nil, err
	}
	return &Handlers{
		predictor: opts.Predictor,
		store:     opts.Store,
		model:     opts.Model,
		page:      page,
		validator: validator,
		logger:    opts.Logger,
		started:   time.Now(),
	}, nil
}

// Register mounts the routes on mux.
func (h *Handlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.handleForm)
	mux.HandleFunc("POST /predict", h.handleFormPredict)
	mux.HandleFunc("POST /api/predict", h.handleAPIPredict)
	mux.HandleFunc("GET /api/ws/predict", h.handleWebSocket)
	mux.HandleFunc("GET /api/health", h.handleHealth)
	mux.HandleFunc("GET /api/model", h.handleModel)
	mux.HandleFunc("GET /api/predictions", h.handlePredictions)
}

func (h *Handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(h.started).Round(time.Second).String(),
	})
}

func (h *Handlers) handleModel(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.model)
}

func (h *Handlers) handlePredictions(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		respondError(w, http.StatusServiceUnavailable, "history store not configured")
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil || l <= 0 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(l, 500)
	}

	predictions, err := h.store.RecentPredictions(r.Context(), limit)
	if err != nil {
		h.logger.Error("load predictions failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to load predictions")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"predictions": predictions,
		"count":       len(predictions),
	})
}

// predict runs the model and records the outcome. Recording is best
// effort and never changes the result.
func (h *Handlers) predict(ctx context.Context, record patient.Record, source string) (ml.Prediction, error) {
	prediction, err := h.predictor.Predict(ctx, record)
	if err != nil {
		return ml.Prediction{}, err
	}

	h.logger.Info("prediction served",
		zap.String("request_id", GetRequestID(ctx)),
		zap.String("source", source),
		zap.Int("label", prediction.Label),
		zap.Float64("confidence", prediction.Confidence),
	)

	if h.store != nil {
		_, err := h.store.SavePrediction(ctx, db.PredictionRecord{
			Record:     record,
			Label:      prediction.Label,
			Confidence: prediction.Confidence,
			Source:     source,
		})
		if err != nil {
			h.logger.Warn("record prediction failed", zap.Error(err))
		}
	}
	return prediction, nil
}

// statusFor maps prediction errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, patient.ErrInvalidRecord):
		return http.StatusBadRequest
	case errors.Is(err, ml.ErrUnknownCategory):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
