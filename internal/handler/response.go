package handler

import (
	"encoding/json"

	"github.com/actuallystonmai/measurement-service/internal/domain"
)

type ErrorResponse struct {
	Detail *domain.ErrorEnvelope `json:"detail"`
}

type BatchRequest struct {
	Items []json.RawMessage `json:"items"`
}

type ReviewFlagsResponse struct {
	Flags []domain.ReviewFlag `json:"flags"`
	Count int                 `json:"count"`
	Total int                 `json:"total"`
}

type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
