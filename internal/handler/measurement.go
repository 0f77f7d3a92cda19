package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/actuallystonmai/measurement-service/internal/domain"
	"github.com/actuallystonmai/measurement-service/internal/normalize"
)

// POST /measurements/validate
func (h *Handler) ValidateMeasurements(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}

	result, err := h.service.Validate(r.Context(), body)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// POST /measurements/validate/batch
func (h *Handler) ValidateBatch(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}

	var req BatchRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeEnvelope(w, malformed(err))
		return
	}
	if len(req.Items) == 0 {
		writeEnvelope(w, domain.NewError(domain.ValidationError, normalize.CodeInvalidValue,
			"A batch needs at least one item",
			domain.ErrorDetail{Field: "items", Message: "items must not be empty"}))
		return
	}

	result, err := h.service.ValidateBatch(r.Context(), req.Items)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// POST /measurements/recommend
func (h *Handler) RecommendSizes(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}

	var m domain.NormalizedMeasurement
	if err := json.Unmarshal(body, &m); err != nil {
		writeEnvelope(w, malformed(err))
		return
	}

	result, err := h.service.Recommend(r.Context(), &m)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeEnvelope(w, domain.NewError(domain.ValidationError, normalize.CodeMalformedBody,
				fmt.Sprintf("Request body exceeds %d bytes", tooLarge.Limit),
			).WithStatus(http.StatusRequestEntityTooLarge))
			return nil, false
		}
		writeEnvelope(w, malformed(err))
		return nil, false
	}
	return body, true
}

func malformed(err error) *domain.ErrorEnvelope {
	return domain.NewError(domain.ValidationError, normalize.CodeMalformedBody,
		"Request body must be a valid JSON object",
		domain.ErrorDetail{Message: err.Error()})
}
