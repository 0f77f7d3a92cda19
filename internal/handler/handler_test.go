package handler

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/actuallystonmai/measurement-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusForEveryErrorType(t *testing.T) {
	cases := map[domain.ErrorType]int{
		domain.ValidationError:     http.StatusUnprocessableEntity,
		domain.AuthenticationError: http.StatusUnauthorized,
		domain.ServerError:         http.StatusInternalServerError,
		domain.TimeoutError:        http.StatusGatewayTimeout,
		domain.RateLimitError:      http.StatusTooManyRequests,
		domain.CircuitBreakerError: http.StatusServiceUnavailable,
		domain.ConnectionError:     http.StatusBadGateway,
		domain.UnexpectedError:     http.StatusBadGateway,
	}
	for typ, status := range cases {
		assert.Equal(t, status, statusFor(typ), string(typ))
	}
}

func TestWriteEnvelopePrefersExplicitStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	writeEnvelope(rec, domain.NewError(domain.ValidationError, "session_not_found", "gone").WithStatus(http.StatusNotFound))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var body map[string]map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "session_not_found", body["detail"]["code"])
	assert.Equal(t, []any{}, body["detail"]["errors"])
}

func TestRequireAPIKey(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	h := RequireAPIKey("secret")(next)

	for _, key := range []string{"", "wrong", "secret-but-longer"} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/measurements/validate", nil)
		if key != "" {
			req.Header.Set("X-API-Key", key)
		}
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		var body ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, domain.AuthenticationError, body.Detail.Type)
		assert.Equal(t, "invalid_key", body.Detail.Code)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/measurements/validate", nil)
	req.Header.Set("X-API-Key", "secret")
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestWriteJSONLogsEncodeFailure(t *testing.T) {
	var logs bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&logs, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	rec := httptest.NewRecorder()
	writeJSON(rec, http.StatusOK, map[string]float64{"height_cm": math.Inf(1)})

	assert.Contains(t, logs.String(), "failed to encode response")
	assert.Contains(t, logs.String(), "unsupported value")
}
