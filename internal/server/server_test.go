package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lamim/grporeward/internal/config"
	"github.com/lamim/grporeward/internal/orchestrator"
	"github.com/lamim/grporeward/pkg/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeScorer struct {
	calls int
	err   error
}

func (f *fakeScorer) Compute(_ context.Context, batch *models.Batch) (*models.RewardResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	tensor := models.NewRewardTensor(len(batch.Samples), 2)
	for i := range batch.Samples {
		_ = tensor.Set(i, 1, 0.5)
	}
	return &models.RewardResult{
		RewardTensor:    tensor,
		RewardExtraInfo: models.ExtraInfo{"acc": {1}},
	}, nil
}

const batchBody = `{"samples":[{"messages":[{"role":"user","content":"q"}],"prompts":[1],"responses":[5,6],"attention_mask":[1,1,1],"data_task":"math","ground_truth":"1"}]}`

func newTestServer(scorer BatchScorer) *Server {
	cfg := config.Default().Server
	cfg.MaxBodyBytes = 4096
	return New(scorer, cfg, testLogger())
}

func TestRewards_Tensor(t *testing.T) {
	scorer := &fakeScorer{}
	srv := newTestServer(scorer)

	req := httptest.NewRequest(http.MethodPost, "/v1/rewards", strings.NewReader(batchBody))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var rows [][]float64
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	assert.Equal(t, [][]float64{{0, 0.5}}, rows)
	assert.Equal(t, 1, scorer.calls)
}

func TestRewards_ReturnDict(t *testing.T) {
	srv := newTestServer(&fakeScorer{})

	req := httptest.NewRequest(http.MethodPost, "/v1/rewards?return_dict=true", strings.NewReader(batchBody))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		RewardTensor    [][]float64          `json:"reward_tensor"`
		RewardExtraInfo map[string][]float64 `json:"reward_extra_info"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, [][]float64{{0, 0.5}}, body.RewardTensor)
	assert.Equal(t, []float64{1}, body.RewardExtraInfo["acc"])
}

func TestRewards_Errors(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		body   string
		err    error
		status int
	}{
		{"malformed json", "/v1/rewards", "{", nil, http.StatusBadRequest},
		{"bad return_dict", "/v1/rewards?return_dict=maybe", batchBody, nil, http.StatusBadRequest},
		{"invalid batch", "/v1/rewards", batchBody, fmt.Errorf("%w: ragged", orchestrator.ErrInvalidBatch), http.StatusBadRequest},
		{"internal failure", "/v1/rewards", batchBody, fmt.Errorf("create scoring pool: boom"), http.StatusInternalServerError},
		{"body too large", "/v1/rewards", `{"samples":[` + strings.Repeat(`{},`, 3000) + `{}]}`, nil, http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(&fakeScorer{err: tt.err})
			req := httptest.NewRequest(http.MethodPost, tt.url, strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestRewards_MethodNotAllowed(t *testing.T) {
	srv := newTestServer(&fakeScorer{})
	req := httptest.NewRequest(http.MethodGet, "/v1/rewards", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(&fakeScorer{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(&fakeScorer{})
	req := httptest.NewRequest(http.MethodOptions, "/v1/rewards", nil)
	req.Header.Set("Origin", "http://dashboard.local")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
