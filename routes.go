package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/attractor-labs/discovery-engine/pkg/apperrors"
	"github.com/attractor-labs/discovery-engine/pkg/config"
	"github.com/attractor-labs/discovery-engine/pkg/repositories"
	"github.com/attractor-labs/discovery-engine/pkg/services"
)

// registerRoutes exposes the discovery flow. Input validation here is
// deliberately thin: the models are the gate, and their violation lists are
// surfaced verbatim.
func registerRoutes(mux *http.ServeMux, discovery *services.DiscoveryService, correlations *repositories.CorrelationRepository, cfg *config.Config) {
	mux.HandleFunc("POST /v1/correlations/discover", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			SourceDatasetID uuid.UUID `json:"source_dataset_id"`
			TargetDatasetID uuid.UUID `json:"target_dataset_id"`
			Type            string    `json:"type"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
			return
		}
		created, err := discovery.Discover(r.Context(), req.SourceDatasetID, req.TargetDatasetID, req.Type)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created.Public())
	})

	mux.HandleFunc("POST /v1/correlations/{id}/validate", func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_id", err.Error())
			return
		}
		var req struct {
			Method string `json:"method"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
			return
		}
		record, err := discovery.Validate(r.Context(), id, req.Method)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, record.Public())
	})

	mux.HandleFunc("GET /v1/correlations/validated", func(w http.ResponseWriter, r *http.Request) {
		found, err := correlations.FindValidated(r.Context(), cfg.Discovery.MinConfidence)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		out := make([]map[string]any, len(found))
		for i, c := range found {
			out[i] = c.Public()
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": out})
	})
}

func writeDomainError(w http.ResponseWriter, err error) {
	var verr *apperrors.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":      "validation_failed",
			"violations": verr.Violations,
		})
	case errors.Is(err, apperrors.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, apperrors.ErrSameDataset):
		writeError(w, http.StatusBadRequest, "same_dataset", err.Error())
	case errors.Is(err, apperrors.ErrConflict), errors.Is(err, apperrors.ErrVersionStale):
		writeError(w, http.StatusConflict, "conflict", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"error": code, "message": message})
}
