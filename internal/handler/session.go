package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/actuallystonmai/measurement-service/internal/domain"
	"github.com/go-chi/chi/v5"
)

// GET /measurements/sessions/{sessionID}
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		writeEnvelope(w, domain.NewError(domain.ValidationError, "invalid_parameter",
			"Invalid session_id parameter",
			domain.ErrorDetail{Field: "session_id", Message: "session_id is required"}))
		return
	}

	record, err := h.service.GetSession(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			writeEnvelope(w, domain.NewError(domain.ValidationError, "session_not_found",
				fmt.Sprintf("Session %s has no normalized measurement", sessionID),
			).WithSession(sessionID).WithStatus(http.StatusNotFound))
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// GET /measurements/review-flags
func (h *Handler) ListReviewFlags(w http.ResponseWriter, r *http.Request) {
	flags, total, err := h.service.ReviewFlags(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ReviewFlagsResponse{Flags: flags, Count: len(flags), Total: total})
}

// GET /measurements/landmarks/{landmarkID}
func (h *Handler) GetLandmarkSet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "landmarkID")

	set, err := h.service.GetLandmarkSet(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrLandmarksMissing) {
			writeEnvelope(w, domain.NewError(domain.ValidationError, "landmarks_not_found",
				fmt.Sprintf("Landmark set %s does not exist", id),
				domain.ErrorDetail{Field: "landmark_id", Message: "no stored landmark set has this id"},
			).WithStatus(http.StatusNotFound))
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, set)
}

// GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Checks: map[string]string{}}
	status := http.StatusOK

	for name, err := range h.service.Health(r.Context()) {
		if err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	writeJSON(w, status, resp)
}
