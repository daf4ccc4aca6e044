// Package server exposes the serving handle over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/manohar-125/ThalAI-App/internal/common"
	"github.com/manohar-125/ThalAI-App/internal/model"
	"github.com/manohar-125/ThalAI-App/internal/serving"
)

// ServiceName is reported by the health endpoint.
const ServiceName = "thalai-ml"

const maxBodyBytes = 1 << 20

// Predictor is the serving surface the HTTP layer needs.
type Predictor interface {
	Predict(req model.RawRecord) (model.PredictionResult, error)
	Reload(ctx context.Context) error
	Status() serving.Status
}

// PredictionStore keeps served predictions. It is optional.
type PredictionStore interface {
	SavePrediction(ctx context.Context, rec *model.PredictionRecord) error
	ListPredictions(ctx context.Context, limit int) ([]model.PredictionRecord, error)
}

// Config holds HTTP server options.
type Config struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	// RateLimit caps POST /predict in requests per second. Zero disables it.
	RateLimit float64
	Burst     int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8000",
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Server routes HTTP requests to a Predictor.
type Server struct {
	predictor Predictor
	store     PredictionStore
	limiter   *rate.Limiter
	config    Config
}

// New creates a server. store may be nil to disable prediction logging.
func New(config Config, predictor Predictor, store PredictionStore) *Server {
	s := &Server{
		config:    config,
		predictor: predictor,
		store:     store,
	}
	if config.RateLimit > 0 {
		burst := config.Burst
		if burst < 1 {
			burst = max(1, int(config.RateLimit))
		}
		s.limiter = rate.NewLimiter(rate.Limit(config.RateLimit), burst)
	}
	return s
}

// Handler returns the routed handler with panic recovery applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.HealthHandler)
	mux.Handle("POST /predict", s.throttle(http.HandlerFunc(s.PredictHandler)))
	mux.HandleFunc("POST /reload", s.ReloadHandler)
	mux.HandleFunc("GET /predictions", s.PredictionsHandler)
	mux.Handle("GET /metrics", promhttp.Handler())
	return recoverer(mux)
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.Handler(),
		ReadTimeout:       s.config.ReadTimeout,
		ReadHeaderTimeout: s.config.ReadTimeout,
		WriteTimeout:      s.config.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		common.LogInfo("HTTP server listening", common.Fields{"addr": s.config.Addr})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	common.LogInfo("Shutting down HTTP server", nil)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}

// HealthResponse is the body of GET /.
type HealthResponse struct {
	OK                  bool     `json:"ok"`
	Service             string   `json:"service"`
	ModelLoaded         bool     `json:"model_loaded"`
	State               string   `json:"state"`
	Fingerprint         string   `json:"fingerprint,omitempty"`
	RunID               string   `json:"run_id,omitempty"`
	LoadError           string   `json:"load_error,omitempty"`
	NumericFeatures     []string `json:"numeric_features"`
	CategoricalFeatures []string `json:"categorical_features"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}

// HealthHandler reports liveness and which model, if any, is active.
func (s *Server) HealthHandler(w http.ResponseWriter, _ *http.Request) {
	st := s.predictor.Status()
	resp := HealthResponse{
		OK:                  true,
		Service:             ServiceName,
		ModelLoaded:         st.State == serving.StateLoaded,
		State:               st.State.String(),
		Fingerprint:         st.Fingerprint,
		RunID:               st.RunID,
		LoadError:           st.LoadError,
		NumericFeatures:     st.Numeric,
		CategoricalFeatures: st.Categorical,
	}
	if resp.NumericFeatures == nil {
		resp.NumericFeatures = []string{}
	}
	if resp.CategoricalFeatures == nil {
		resp.CategoricalFeatures = []string{}
	}
	writeJSON(w, http.StatusOK, resp)
}

// PredictHandler scores one donor.
func (s *Server) PredictHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()

	var req map[string]any
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req == nil {
		writeError(w, http.StatusBadRequest, "request body must be a JSON object")
		return
	}

	res, err := s.predictor.Predict(model.RawRecord(req))
	if err != nil {
		s.writePredictError(w, err)
		return
	}

	s.record(r.Context(), req, res)
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) writePredictError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, common.ErrServiceUnavailable):
		if common.IsRetryable(err) {
			w.Header().Set("Retry-After", "30")
		}
		writeError(w, http.StatusServiceUnavailable, "Model not loaded")
	case errors.Is(err, common.ErrMisconfiguredArtifact):
		writeError(w, http.StatusInternalServerError, "Model bundle missing feature lists")
	case errors.Is(err, common.ErrInference):
		common.LogError(err, "Inference failed", nil)
		writeError(w, http.StatusInternalServerError, "Inference failed: "+unwrapDetail(err))
	default:
		common.LogError(err, "Unexpected prediction error", nil)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func unwrapDetail(err error) string {
	var inf *common.InferenceError
	if errors.As(err, &inf) {
		if inf.Err != nil {
			return inf.Err.Error()
		}
		return inf.Detail
	}
	return err.Error()
}

func (s *Server) record(ctx context.Context, req map[string]any, res model.PredictionResult) {
	if s.store == nil {
		return
	}
	body, err := json.Marshal(req)
	if err != nil {
		common.LogError(err, "Failed to encode prediction request", nil)
		return
	}
	rec := &model.PredictionRecord{
		Fingerprint: res.Fingerprint,
		RequestJSON: string(body),
		Label:       res.Label,
		Score:       res.Score,
	}
	if err := s.store.SavePrediction(ctx, rec); err != nil {
		common.LogError(err, "Failed to record prediction", nil)
	}
}

// ReloadHandler swaps in the artifact currently on disk.
func (s *Server) ReloadHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.predictor.Reload(r.Context()); err != nil {
		switch {
		case errors.Is(err, serving.ErrInvalidTransition):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	st := s.predictor.Status()
	writeJSON(w, http.StatusOK, map[string]string{
		"status":      "reloaded",
		"fingerprint": st.Fingerprint,
		"run_id":      st.RunID,
	})
}

// PredictionResponse is one entry of GET /predictions.
type PredictionResponse struct {
	CreatedAt   time.Time       `json:"created_at"`
	Score       *float64        `json:"score"`
	Request     json.RawMessage `json:"request"`
	Fingerprint string          `json:"fingerprint"`
	ID          int64           `json:"id"`
	Label       int             `json:"label"`
}

// PredictionsHandler lists recently served predictions.
func (s *Server) PredictionsHandler(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotFound, "prediction recording is disabled")
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 1000 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		limit = n
	}

	recs, err := s.store.ListPredictions(r.Context(), limit)
	if err != nil {
		common.LogError(err, "Failed to list predictions", nil)
		writeError(w, http.StatusInternalServerError, "failed to list predictions")
		return
	}

	out := make([]PredictionResponse, 0, len(recs))
	for _, rec := range recs {
		body := rec.RequestJSON
		if !json.Valid([]byte(body)) {
			body = "null"
		}
		out = append(out, PredictionResponse{
			ID:          rec.ID,
			CreatedAt:   rec.CreatedAt,
			Fingerprint: rec.Fingerprint,
			Request:     json.RawMessage(body),
			Label:       rec.Label,
			Score:       rec.Score,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) throttle(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			predictionsThrottled.Inc()
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// recoverer turns a handler panic into a 500 so one bad request never takes
// the process down.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				common.LogError(fmt.Errorf("panic: %v", rec), "Recovered from handler panic", common.Fields{
					"path": r.URL.Path,
				})
				writeError(w, http.StatusInternalServerError, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
