package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manohar-125/ThalAI-App/internal/common"
	"github.com/manohar-125/ThalAI-App/internal/model"
	"github.com/manohar-125/ThalAI-App/internal/serving"
	"github.com/manohar-125/ThalAI-App/internal/testutil"
)

type fakePredictor struct {
	predictErr error
	reloadErr  error
	lastReq    model.RawRecord
	status     serving.Status
	result     model.PredictionResult
	panicMsg   string
	reloads    int
}

func (f *fakePredictor) Predict(req model.RawRecord) (model.PredictionResult, error) {
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	f.lastReq = req
	return f.result, f.predictErr
}

func (f *fakePredictor) Reload(_ context.Context) error {
	f.reloads++
	return f.reloadErr
}

func (f *fakePredictor) Status() serving.Status { return f.status }

func loadedPredictor() *fakePredictor {
	score := 0.75
	return &fakePredictor{
		status: serving.Status{
			State:       serving.StateLoaded,
			Fingerprint: "fp-1",
			RunID:       "run-1",
			Numeric:     []string{model.FeatureFrequencyInDays},
			Categorical: []string{model.FeatureBloodGroup},
		},
		result: model.PredictionResult{Label: 1, Score: &score, Fingerprint: "fp-1", RunID: "run-1"},
	}
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	h := New(DefaultConfig(), loadedPredictor(), nil).Handler()

	w := do(t, h, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[HealthResponse](t, w)
	assert.True(t, resp.OK)
	assert.True(t, resp.ModelLoaded)
	assert.Equal(t, ServiceName, resp.Service)
	assert.Equal(t, "loaded", resp.State)
	assert.Equal(t, []string{model.FeatureFrequencyInDays}, resp.NumericFeatures)

	unloaded := New(DefaultConfig(), &fakePredictor{}, nil).Handler()
	w = do(t, unloaded, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, w.Code)
	resp = decode[HealthResponse](t, w)
	assert.False(t, resp.ModelLoaded)
	assert.NotNil(t, resp.NumericFeatures)
	assert.Contains(t, w.Body.String(), `"numeric_features":[]`)

	w = do(t, h, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPredict(t *testing.T) {
	p := loadedPredictor()
	h := New(DefaultConfig(), p, nil).Handler()

	w := do(t, h, http.MethodPost, "/predict", `{"frequency_in_days": 30, "blood_group": "O+", "extra": true}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"label":1,"score":0.75}`, w.Body.String())
	assert.Equal(t, json.Number("30"), p.lastReq[model.FeatureFrequencyInDays])

	w = do(t, h, http.MethodPost, "/predict", `{}`)
	assert.Equal(t, http.StatusOK, w.Code, "zero-field request")

	p.result = model.PredictionResult{Label: 0}
	w = do(t, h, http.MethodPost, "/predict", `{}`)
	assert.JSONEq(t, `{"label":0,"score":null}`, w.Body.String())
}

func TestPredict_Errors(t *testing.T) {
	tests := []struct {
		err        error
		name       string
		wantDetail string
		wantStatus int
		retryAfter bool
	}{
		{
			name:       "not loaded",
			err:        common.ErrServiceUnavailable,
			wantStatus: http.StatusServiceUnavailable,
			wantDetail: "Model not loaded",
			retryAfter: true,
		},
		{
			name:       "misconfigured",
			err:        common.ErrMisconfiguredArtifact,
			wantStatus: http.StatusInternalServerError,
			wantDetail: "Model bundle missing feature lists",
		},
		{
			name:       "inference",
			err:        common.NewInferenceError("", errors.New("non-finite value")),
			wantStatus: http.StatusInternalServerError,
			wantDetail: "Inference failed: non-finite value",
		},
		{
			name:       "unexpected",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantDetail: "internal error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := loadedPredictor()
			p.predictErr = tt.err
			w := do(t, New(DefaultConfig(), p, nil).Handler(), http.MethodPost, "/predict", `{}`)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantDetail, decode[errorResponse](t, w).Detail)
			assert.Equal(t, tt.retryAfter, w.Header().Get("Retry-After") != "")
		})
	}
}

func TestPredict_BadRequests(t *testing.T) {
	h := New(DefaultConfig(), loadedPredictor(), nil).Handler()

	for _, body := range []string{``, `{`, `null`, `[1,2]`, `"x"`} {
		w := do(t, h, http.MethodPost, "/predict", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, "body %q", body)
	}

	w := do(t, h, http.MethodGet, "/predict", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestPredict_PanicRecovered(t *testing.T) {
	p := loadedPredictor()
	p.panicMsg = "kaboom"
	w := do(t, New(DefaultConfig(), p, nil).Handler(), http.MethodPost, "/predict", `{}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestReload(t *testing.T) {
	p := loadedPredictor()
	h := New(DefaultConfig(), p, nil).Handler()

	w := do(t, h, http.MethodPost, "/reload", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, p.reloads)
	assert.Contains(t, w.Body.String(), "fp-1")

	p.reloadErr = serving.ErrInvalidTransition
	w = do(t, h, http.MethodPost, "/reload", "")
	assert.Equal(t, http.StatusConflict, w.Code)

	p.reloadErr = common.ErrArtifactLoadFailed
	w = do(t, h, http.MethodPost, "/reload", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestPredictions_Recorded(t *testing.T) {
	store := testutil.SetupTestDB(t).Storage

	p := loadedPredictor()
	p.status.Fingerprint = "fp-after-reload"
	h := New(DefaultConfig(), p, store).Handler()
	for i := 0; i < 3; i++ {
		w := do(t, h, http.MethodPost, "/predict", `{"gender":"F"}`)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := do(t, h, http.MethodGet, "/predictions?limit=2", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got := decode[[]PredictionResponse](t, w)
	require.Len(t, got, 2)
	assert.Equal(t, "fp-1", got[0].Fingerprint, "recorded against the artifact that scored the request")
	assert.JSONEq(t, `{"gender":"F"}`, string(got[0].Request))
	require.NotNil(t, got[0].Score)
	assert.InDelta(t, 0.75, *got[0].Score, 1e-9)

	w = do(t, h, http.MethodGet, "/predictions?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPredictions_Disabled(t *testing.T) {
	w := do(t, New(DefaultConfig(), loadedPredictor(), nil).Handler(), http.MethodGet, "/predictions", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	w := do(t, New(DefaultConfig(), loadedPredictor(), nil).Handler(), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestPredict_RateLimited(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimit = 0.001
	cfg.Burst = 2
	h := New(cfg, loadedPredictor(), nil).Handler()
	before := promtest.ToFloat64(predictionsThrottled)

	for i := 0; i < 2; i++ {
		w := do(t, h, http.MethodPost, "/predict", `{}`)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := do(t, h, http.MethodPost, "/predict", `{}`)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
	assert.Equal(t, "rate limit exceeded", decode[errorResponse](t, w).Detail)
	assert.InDelta(t, 1, promtest.ToFloat64(predictionsThrottled)-before, 1e-9)

	w = do(t, h, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, w.Code, "health is never throttled")
}
