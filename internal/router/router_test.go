package router_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/actuallystonmai/measurement-service/internal/cache"
	"github.com/actuallystonmai/measurement-service/internal/domain"
	"github.com/actuallystonmai/measurement-service/internal/handler"
	"github.com/actuallystonmai/measurement-service/internal/invoker"
	"github.com/actuallystonmai/measurement-service/internal/model"
	"github.com/actuallystonmai/measurement-service/internal/normalize"
	"github.com/actuallystonmai/measurement-service/internal/repository"
	"github.com/actuallystonmai/measurement-service/internal/router"
	"github.com/actuallystonmai/measurement-service/internal/service"
	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const apiKey = "test-key"

type stack struct {
	http.Handler
	mock pgxmock.PgxPoolIface
	mr   *miniredis.Miniredis
}

func newStack(t *testing.T) *stack {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	svc := service.NewService(
		normalize.NewEngine(),
		repository.NewRepository(mock),
		cache.NewCache(client, time.Minute),
		model.NewClient(),
		service.Options{},
	)
	return &stack{Handler: router.Setup(handler.NewHandler(svc), apiKey), mock: mock, mr: mr}
}

func (s *stack) do(t *testing.T, method, path, body string, key string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decodeDetail(t *testing.T, rec *httptest.ResponseRecorder) domain.ErrorEnvelope {
	t.Helper()
	var body handler.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotNil(t, body.Detail)
	return *body.Detail
}

func TestValidateEndpoint(t *testing.T) {
	s := newStack(t)

	rec := s.do(t, http.MethodPost, "/measurements/validate", `{"waist_natural": 32, "unit": "in"}`, apiKey)
	require.Equal(t, http.StatusOK, rec.Code)

	var out domain.NormalizedMeasurement
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, 81.28, out.WaistNaturalCM)
	assert.Equal(t, domain.SourceUserInput, out.Source)
	assert.Equal(t, 1.0, out.Confidence)
}

func TestValidateEndpointUnknownField(t *testing.T) {
	s := newStack(t)

	rec := s.do(t, http.MethodPost, "/measurements/validate", `{"waist_circ": 32, "unit": "in"}`, apiKey)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	env := decodeDetail(t, rec)
	assert.Equal(t, domain.ValidationError, env.Type)
	assert.Equal(t, "unknown_field", env.Code)
	require.Len(t, env.Errors, 1)
	assert.Equal(t, "waist_circ", env.Errors[0].Field)
}

func TestAPIKeyIsRequired(t *testing.T) {
	s := newStack(t)

	for _, key := range []string{"", "nope"} {
		rec := s.do(t, http.MethodPost, "/measurements/validate", `{"chest": 100}`, key)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		env := decodeDetail(t, rec)
		assert.Equal(t, domain.AuthenticationError, env.Type)
		assert.Equal(t, "invalid_key", env.Code)
	}
}

func TestMalformedBody(t *testing.T) {
	s := newStack(t)

	rec := s.do(t, http.MethodPost, "/measurements/recommend", `{"chest_cm": `, apiKey)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, normalize.CodeMalformedBody, decodeDetail(t, rec).Code)
}

func TestBatchEndpoint(t *testing.T) {
	s := newStack(t)

	rec := s.do(t, http.MethodPost, "/measurements/validate/batch",
		`{"items": [{"chest": 100}, {"chest": -2}, {"hips": 40}]}`, apiKey)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp domain.BatchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 3)
	assert.Equal(t, domain.StatusSuccess, resp.Results[0].Status)
	assert.Equal(t, normalize.CodeInvalidValue, resp.Results[1].Error.Code)
	assert.Equal(t, normalize.CodeUnknownField, resp.Results[2].Error.Code)
	assert.Equal(t, 1, resp.Summary.SuccessCount)
	assert.Equal(t, 2, resp.Summary.FailedCount)

	rec = s.do(t, http.MethodPost, "/measurements/validate/batch", `{"items": []}`, apiKey)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestRecommendEndpoint(t *testing.T) {
	s := newStack(t)

	rec := s.do(t, http.MethodPost, "/measurements/recommend",
		`{"chest_cm": 101.6, "waist_natural_cm": 81.28, "inseam_cm": 81.28, "confidence": 1, "session_id": "r-1"}`, apiKey)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp domain.RecommendationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Recommendations, 2)
	assert.Equal(t, "M", resp.Recommendations[0].Size)
	assert.Equal(t, "32x32", resp.Recommendations[1].Size)
	assert.Equal(t, "r-1", resp.SessionID)
	assert.Equal(t, 101.6, resp.ProcessedMeasurements.ChestCM)

	rec = s.do(t, http.MethodPost, "/measurements/recommend", `{"height_cm": 170}`, apiKey)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, service.CodeInsufficientMeasurements, decodeDetail(t, rec).Code)
}

func TestSessionEndpoint(t *testing.T) {
	s := newStack(t)

	rec := s.do(t, http.MethodGet, "/measurements/sessions/none", "", apiKey)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "session_not_found", decodeDetail(t, rec).Code)

	rec = s.do(t, http.MethodPost, "/measurements/validate", `{"chest": 100, "session_id": "sess-1"}`, apiKey)
	require.Equal(t, http.StatusOK, rec.Code)

	s.mock.ExpectQuery("FROM landmark_sets").
		WithArgs("sess-1").
		WillReturnRows(s.mock.NewRows([]string{"id", "session_id", "view", "landmarks", "image_width", "image_height", "captured_at", "created_at"}))

	rec = s.do(t, http.MethodGet, "/measurements/sessions/sess-1", "", apiKey)
	require.Equal(t, http.StatusOK, rec.Code)

	var record domain.SessionRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &record))
	assert.Equal(t, 100.0, record.Measurement.ChestCM)
}

func TestLandmarkAndReviewFlagEndpoints(t *testing.T) {
	s := newStack(t)

	s.mock.ExpectQuery("WHERE id = \\$1").
		WithArgs("nope").
		WillReturnError(pgx.ErrNoRows)

	rec := s.do(t, http.MethodGet, "/measurements/landmarks/nope", "", apiKey)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "landmarks_not_found", decodeDetail(t, rec).Code)

	s.mock.ExpectQuery("FROM review_flags").
		WithArgs(50).
		WillReturnRows(s.mock.NewRows([]string{"id", "session_id", "accuracy_estimate", "source", "created_at"}).
			AddRow(int64(4), "lm-9", 0.1, "landmark_derived", time.Now()))
	s.mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(s.mock.NewRows([]string{"count"}).AddRow(12))

	rec = s.do(t, http.MethodGet, "/measurements/review-flags", "", apiKey)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp handler.ReviewFlagsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, 12, resp.Total)
	assert.NoError(t, s.mock.ExpectationsWereMet())
}

func TestHealthIsOpen(t *testing.T) {
	s := newStack(t)

	rec := s.do(t, http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp handler.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "ok", resp.Checks["redis"])

	s.mr.Close()
	rec = s.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestInvokerAgainstRouter(t *testing.T) {
	s := newStack(t)
	srv := httptest.NewServer(s)
	t.Cleanup(srv.Close)

	cfg := invoker.DefaultConfig()
	cfg.BaseURL = srv.URL
	cfg.APIKey = apiKey
	inv := invoker.New(cfg)
	ctx := context.Background()

	m, err := inv.Validate(ctx, json.RawMessage(`{"waist_natural": 32, "inseam": 30, "chest": 38, "unit": "in", "session_id": "e2e"}`))
	require.NoError(t, err)
	assert.Equal(t, 81.28, m.WaistNaturalCM)

	recs, err := inv.Recommend(ctx, m)
	require.NoError(t, err)
	assert.Equal(t, "e2e", recs.SessionID)
	assert.Len(t, recs.Recommendations, 2)

	_, err = inv.Validate(ctx, json.RawMessage(`{"waist_circ": 32}`))
	assert.True(t, domain.IsErrorType(err, domain.ValidationError))
	assert.Equal(t, invoker.BreakerState{}, inv.Breakers().Breaker("validate").State())

	wrongKey := invoker.DefaultConfig()
	wrongKey.BaseURL = srv.URL
	wrongKey.APIKey = "stale"
	_, err = invoker.New(wrongKey).Validate(ctx, json.RawMessage(`{"chest": 100}`))
	assert.True(t, domain.IsErrorType(err, domain.UnexpectedError))
}
