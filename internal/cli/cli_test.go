package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/actuallystonmai/measurement-service/internal/domain"
	"github.com/actuallystonmai/measurement-service/internal/invoker"
	"github.com/actuallystonmai/measurement-service/internal/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeService(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var validateHits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/measurements/validate", func(w http.ResponseWriter, r *http.Request) {
		validateHits.Add(1)
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if _, ok := body["waist_circ"]; ok {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"detail": {"type": "validation_error", "code": "unknown_field", "message": "Unknown field",
				"errors": [{"field": "waist_circ", "message": "Unknown field: waist_circ"}]}}`))
			return
		}
		_, _ = w.Write([]byte(`{"chest_cm": 96.52, "source": "user_input", "confidence": 1, "session_id": "cli-1"}`))
	})
	mux.HandleFunc("/measurements/recommend", func(w http.ResponseWriter, r *http.Request) {
		var m domain.NormalizedMeasurement
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&m))
		_ = json.NewEncoder(w).Encode(domain.RecommendationResponse{
			Recommendations:       []domain.SizeRecommendation{{Category: "tops", Size: "M", Confidence: 0.7}},
			ProcessedMeasurements: m,
			SessionID:             m.SessionID,
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &validateHits
}

func run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestValidateFromStdin(t *testing.T) {
	srv, hits := fakeService(t)

	out, _, err := run(t, `{"chest": 38, "unit": "in"}`, "--base-url", srv.URL, "validate")
	require.NoError(t, err)

	var m domain.NormalizedMeasurement
	require.NoError(t, json.Unmarshal([]byte(out), &m))
	assert.Equal(t, 96.52, m.ChestCM)
	assert.Equal(t, int32(1), hits.Load())
}

func TestValidateReportsEnvelope(t *testing.T) {
	srv, _ := fakeService(t)

	_, stderr, err := run(t, `{"waist_circ": 32}`, "--base-url", srv.URL, "validate", "-")
	require.Error(t, err)
	assert.True(t, domain.IsErrorType(err, domain.ValidationError))
	assert.Contains(t, stderr, `"unknown_field"`)
	assert.Contains(t, stderr, `"detail"`)
}

func TestRecommendFromFile(t *testing.T) {
	srv, _ := fakeService(t)
	path := filepath.Join(t.TempDir(), "m.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"chest_cm": 100, "session_id": "f-1"}`), 0o600))

	out, _, err := run(t, "", "--base-url", srv.URL, "recommend", path)
	require.NoError(t, err)

	var resp domain.RecommendationResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "f-1", resp.SessionID)
	assert.Equal(t, 100.0, resp.ProcessedMeasurements.ChestCM)
}

func TestPipeline(t *testing.T) {
	srv, hits := fakeService(t)

	out, _, err := run(t, `{"chest": 38, "unit": "in"}`, "--base-url", srv.URL, "pipeline")
	require.NoError(t, err)

	var resp domain.RecommendationResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "cli-1", resp.SessionID)
	assert.Equal(t, "M", resp.Recommendations[0].Size)
	assert.Equal(t, int32(1), hits.Load())
}

func TestPipelineStopsOnValidationError(t *testing.T) {
	srv, _ := fakeService(t)

	out, _, err := run(t, `{"waist_circ": 32}`, "--base-url", srv.URL, "pipeline")
	require.Error(t, err)
	assert.Empty(t, out)
}

func TestSettingsFromEnvironment(t *testing.T) {
	srv, hits := fakeService(t)
	t.Setenv("MEASURECTL_BASE_URL", srv.URL)
	t.Setenv("MEASURECTL_MAX_RETRIES", "0")

	_, _, err := run(t, `{"chest": 38}`, "validate")
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestSettingsFromConfigFile(t *testing.T) {
	srv, hits := fakeService(t)
	path := filepath.Join(t.TempDir(), "measurectl.yaml")
	require.NoError(t, os.WriteFile(path, []byte("base-url: "+srv.URL+"\nmax-retries: 0\n"), 0o600))

	_, _, err := run(t, `{"chest": 38}`, "--config", path, "validate")
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestFlagOverridesEnvironment(t *testing.T) {
	srv, hits := fakeService(t)
	t.Setenv("MEASURECTL_BASE_URL", "http://127.0.0.1:1")

	_, _, err := run(t, `{"chest": 38}`, "--base-url", srv.URL, "validate")
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestToolsList(t *testing.T) {
	out, _, err := run(t, "", "tools", "list")
	require.NoError(t, err)
	assert.Equal(t, []string{tools.ToolBreakerStatus, tools.ToolRecommendSizes, tools.ToolValidateMeasurements},
		strings.Fields(out))
}

func TestToolsRouter(t *testing.T) {
	srv, _ := fakeService(t)
	cfg := invoker.DefaultConfig()
	cfg.BaseURL = srv.URL
	h := toolsRouter(tools.NewServer(invoker.New(cfg)))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tools", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), tools.ToolValidateMeasurements)

	body := strings.NewReader(`{"name": "validate_measurements", "arguments": {"chest": 38}}`)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/tools/call", body))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "chest_cm")
}
