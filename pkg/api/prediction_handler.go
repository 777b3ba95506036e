package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/charterintel/charterintel/pkg/insights"
	"github.com/charterintel/charterintel/pkg/metadatastore"
	"github.com/charterintel/charterintel/pkg/runs"
)

// PredictionHandler handles empty-leg prediction HTTP requests
type PredictionHandler struct {
	service        *runs.Service
	maxUploadBytes int64
}

// NewPredictionHandler creates a new prediction handler
func NewPredictionHandler(service *runs.Service, maxUploadBytes int64) *PredictionHandler {
	return &PredictionHandler{
		service:        service,
		maxUploadBytes: maxUploadBytes,
	}
}

// Register mounts the prediction routes
func (h *PredictionHandler) Register(s *Server) {
	s.RegisterHandler("/api/predictions", h.HandleCreatePrediction, http.MethodPost)
	s.RegisterHandler("/api/predictions", h.HandleListPredictions, http.MethodGet)
	s.RegisterHandler("/api/predictions/{id}", h.HandleGetPrediction, http.MethodGet)
	s.RegisterHandler("/api/predictions/{id}/download", h.HandleDownloadPrediction, http.MethodGet)
	s.RegisterHandler("/api/predictions/{id}/insights", h.HandlePredictionInsights, http.MethodGet)
}

// HandleCreatePrediction handles POST /api/predictions (multipart field "file")
func (h *PredictionHandler) HandleCreatePrediction(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid upload: %v", err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	result, err := h.service.Score(r.Context(), header.Filename, file)
	if err != nil {
		switch {
		case runs.IsUserError(err):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, context.DeadlineExceeded):
			writeError(w, http.StatusServiceUnavailable, "Scoring timed out, try a smaller file")
		default:
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to score upload: %v", err))
		}
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// HandleListPredictions handles GET /api/predictions
func (h *PredictionHandler) HandleListPredictions(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", 50, 1, 500)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	list, err := h.service.List(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to list runs: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// HandleGetPrediction handles GET /api/predictions/{id}
func (h *PredictionHandler) HandleGetPrediction(w http.ResponseWriter, r *http.Request) {
	run, err := h.service.Get(mux.Vars(r)["id"])
	if err != nil {
		writeRunError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// HandleDownloadPrediction handles GET /api/predictions/{id}/download
func (h *PredictionHandler) HandleDownloadPrediction(w http.ResponseWriter, r *http.Request) {
	data, err := h.service.Download(mux.Vars(r)["id"])
	if err != nil {
		writeRunError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="empty_leg_predictions.csv"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		log.Printf("Error writing predictions download: %v", err)
	}
}

// HandlePredictionInsights handles GET /api/predictions/{id}/insights
func (h *PredictionHandler) HandlePredictionInsights(w http.ResponseWriter, r *http.Request) {
	threshold, err := floatParam(r, "threshold", h.service.Threshold(), 0, 1)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := intParam(r, "limit", insights.DefaultLimit, 1, 100)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.service.Insights(mux.Vars(r)["id"], threshold, limit)
	if err != nil {
		writeRunError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func writeRunError(w http.ResponseWriter, err error) {
	if errors.Is(err, metadatastore.ErrRunNotFound) {
		writeError(w, http.StatusNotFound, "Prediction run not found")
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

// intParam reads an optional integer query parameter within [min, max]
func intParam(r *http.Request, name string, def, min, max int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	if v < min || v > max {
		return 0, fmt.Errorf("%s must be between %d and %d", name, min, max)
	}
	return v, nil
}

// floatParam reads an optional float query parameter within [min, max]
func floatParam(r *http.Request, name string, def, min, max float64) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number", name)
	}
	if v < min || v > max {
		return 0, fmt.Errorf("%s must be between %g and %g", name, min, max)
	}
	return v, nil
}
