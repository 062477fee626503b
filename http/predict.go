package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"heartrisk/patient"
)

func (h *Handlers) handleForm(w http.ResponseWriter, r *http.Request) {
	h.page.render(w, http.StatusOK, pageData{Record: patient.Default()}, h.logger)
}

func (h *Handlers) handleFormPredict(w http.ResponseWriter, r *http.Request) {
	record, err := parseForm(r)
	if err == nil {
		err = patient.Validate(record)
	}
	if err != nil {
		h.page.render(w, http.StatusBadRequest, pageData{Record: record, Error: err.Error()}, h.logger)
		return
	}

	prediction, err := h.predict(r.Context(), record, SourceForm)
	if err != nil {
		h.logger.Error("form prediction failed", zap.Error(err))
		h.page.render(w, statusFor(err), pageData{Record: record, Error: "Prediction failed: " + err.Error()}, h.logger)
		return
	}
	h.page.render(w, http.StatusOK, pageData{Record: record, Prediction: &prediction}, h.logger)
}

func parseForm(r *http.Request) (patient.Record, error) {
	record := patient.Default()
	if err := r.ParseForm(); err != nil {
		return record, fmt.Errorf("%w: %v", patient.ErrInvalidRecord, err)
	}
	for _, f := range patient.Fields() {
		value := r.PostForm.Get(f.Name)
		if value == "" {
			return record, fmt.Errorf("%w: %s is required", patient.ErrInvalidRecord, f.Name)
		}
		if err := record.Set(f.Name, value); err != nil {
			return record, fmt.Errorf("%w: %v", patient.ErrInvalidRecord, err)
		}
	}
	return record, nil
}

func (h *Handlers) handleAPIPredict(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		respondError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	record, err := h.validator.decode(payload)
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}

	prediction, err := h.predict(r.Context(), record, SourceAPI)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("api prediction failed", zap.Error(err))
		}
		respondError(w, status, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, prediction)
}
