package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/actuallystonmai/measurement-service/internal/domain"
	"github.com/actuallystonmai/measurement-service/internal/service"
)

const maxBodyBytes = 4 << 20

type Handler struct {
	service *service.Service
}

func NewHandler(svc *service.Service) *Handler {
	return &Handler{service: svc}
}

// write JSON response
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("[handler] failed to encode response", "status", status, "error", err)
	}
}

// writes an error envelope under "detail"
func writeEnvelope(w http.ResponseWriter, env *domain.ErrorEnvelope) {
	status := env.StatusCode
	if status == 0 {
		status = statusFor(env.Type)
	}
	writeJSON(w, status, ErrorResponse{Detail: env})
}

func writeError(w http.ResponseWriter, err error) {
	writeEnvelope(w, service.CategorizeError(err))
}

func statusFor(t domain.ErrorType) int {
	switch t {
	case domain.ValidationError:
		return http.StatusUnprocessableEntity
	case domain.AuthenticationError:
		return http.StatusUnauthorized
	case domain.RateLimitError:
		return http.StatusTooManyRequests
	case domain.TimeoutError:
		return http.StatusGatewayTimeout
	case domain.CircuitBreakerError:
		return http.StatusServiceUnavailable
	case domain.ConnectionError, domain.UnexpectedError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
