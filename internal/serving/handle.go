// Package serving holds the loaded artifact and answers prediction requests
// against it.
package serving

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/manohar-125/ThalAI-App/internal/common"
	"github.com/manohar-125/ThalAI-App/internal/features"
	"github.com/manohar-125/ThalAI-App/internal/model"
	"github.com/manohar-125/ThalAI-App/internal/storage"
)

// State is the lifecycle position of a Handle.
type State int32

// Handle states. Unloaded moves to Loaded or LoadFailed exactly once;
// LoadFailed is terminal.
const (
	StateUnloaded State = iota
	StateLoaded
	StateLoadFailed
)

func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoaded:
		return "loaded"
	case StateLoadFailed:
		return "load_failed"
	default:
		return "unknown"
	}
}

// ErrInvalidTransition is returned when Load or Reload is called from a
// state that does not allow it.
var ErrInvalidTransition = errors.New("invalid state transition")

// Source produces artifacts for a Handle.
type Source interface {
	LoadArtifact(ctx context.Context) (*storage.Artifact, error)
}

// FileSource loads the artifact at Path.
type FileSource struct {
	Path string
}

// LoadArtifact reads and verifies the artifact file.
func (f FileSource) LoadArtifact(ctx context.Context) (*storage.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return storage.LoadArtifact(f.Path)
}

// Status is a point-in-time summary of a Handle.
type Status struct {
	LoadedAt    time.Time
	LoadError   string
	Fingerprint string
	RunID       string
	Numeric     []string
	Categorical []string
	State       State
}

// Handle owns the active artifact. Predictions and status reads never lock;
// Load and Reload are serialized by mu and publish a fully verified artifact
// in a single atomic swap.
type Handle struct {
	source   Source
	artifact atomic.Pointer[storage.Artifact]
	loadedAt atomic.Pointer[time.Time]
	loadErr  atomic.Pointer[error]
	state    atomic.Int32
	mu       sync.Mutex
}

// NewHandle returns an Unloaded handle reading from source.
func NewHandle(source Source) *Handle {
	h := &Handle{source: source}
	handleState.Set(float64(StateUnloaded))
	return h
}

// State returns the current state.
func (h *Handle) State() State {
	return State(h.state.Load())
}

// Artifact returns the active artifact, or nil when none is loaded.
func (h *Handle) Artifact() *storage.Artifact {
	return h.artifact.Load()
}

// Schema returns the active feature schema.
func (h *Handle) Schema() (model.FeatureSchema, bool) {
	a := h.artifact.Load()
	if a == nil {
		return model.FeatureSchema{}, false
	}
	return a.Schema.Clone(), true
}

// LoadError returns the cause of a failed initial load.
func (h *Handle) LoadError() error {
	if err := h.loadErr.Load(); err != nil {
		return *err
	}
	return nil
}

// Status summarizes the handle for health reporting.
func (h *Handle) Status() Status {
	st := Status{State: h.State()}
	if err := h.LoadError(); err != nil {
		st.LoadError = err.Error()
	}
	if a := h.artifact.Load(); a != nil {
		st.Fingerprint = a.Fingerprint
		st.RunID = a.RunID
		st.Numeric = append([]string{}, a.Schema.Numeric...)
		st.Categorical = append([]string{}, a.Schema.Categorical...)
	}
	if t := h.loadedAt.Load(); t != nil {
		st.LoadedAt = *t
	}
	return st
}

// Load performs the initial load. It may be called once; on failure the
// handle is LoadFailed for the rest of the process lifetime.
func (h *Handle) Load(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if s := h.State(); s != StateUnloaded {
		return fmt.Errorf("%w: load from %s", ErrInvalidTransition, s)
	}

	a, err := h.source.LoadArtifact(ctx)
	if err != nil {
		loadErr := fmt.Errorf("%w: %w", common.ErrArtifactLoadFailed, err)
		h.loadErr.Store(&loadErr)
		h.setState(StateLoadFailed)
		artifactLoads.WithLabelValues("load", "failure").Inc()
		common.LogError(err, "Failed to load artifact", nil)
		return loadErr
	}

	h.publish(a)
	h.setState(StateLoaded)
	artifactLoads.WithLabelValues("load", "success").Inc()
	common.LogInfo("Artifact loaded", common.Fields{
		"run_id":      a.RunID,
		"fingerprint": a.Fingerprint,
		"features":    a.Schema.Len(),
	})
	return nil
}

// Reload replaces the active artifact. It is only valid once loaded. The
// new artifact is fully read and verified before the swap; on any failure
// the previous artifact keeps serving.
func (h *Handle) Reload(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if s := h.State(); s != StateLoaded {
		return fmt.Errorf("%w: reload from %s", ErrInvalidTransition, s)
	}

	a, err := h.source.LoadArtifact(ctx)
	if err != nil {
		artifactLoads.WithLabelValues("reload", "failure").Inc()
		common.LogError(err, "Reload failed, keeping current artifact", common.Fields{
			"fingerprint": h.artifact.Load().Fingerprint,
		})
		return fmt.Errorf("%w: %w", common.ErrArtifactLoadFailed, err)
	}

	prev := h.artifact.Load()
	h.publish(a)
	artifactLoads.WithLabelValues("reload", "success").Inc()
	common.LogInfo("Artifact reloaded", common.Fields{
		"run_id":               a.RunID,
		"fingerprint":          a.Fingerprint,
		"previous_fingerprint": prev.Fingerprint,
	})
	return nil
}

func (h *Handle) publish(a *storage.Artifact) {
	now := time.Now()
	h.artifact.Store(a)
	h.loadedAt.Store(&now)
}

func (h *Handle) setState(s State) {
	h.state.Store(int32(s))
	handleState.Set(float64(s))
}

// Predict scores one request. The request holds feature-form values keyed
// by feature name; keys outside the schema are ignored and missing ones are
// imputed. The result names the artifact that scored it.
func (h *Handle) Predict(req model.RawRecord) (res model.PredictionResult, err error) {
	start := time.Now()
	defer func() {
		predictionDuration.Observe(time.Since(start).Seconds())
	}()

	a := h.artifact.Load()
	if h.State() != StateLoaded || a == nil {
		predictionsTotal.WithLabelValues(outcomeUnavailable, "").Inc()
		return model.PredictionResult{}, common.ErrServiceUnavailable
	}
	if a.Schema.IsEmpty() || a.Pipeline == nil {
		predictionsTotal.WithLabelValues(outcomeMisconfigured, "").Inc()
		return model.PredictionResult{}, common.ErrMisconfiguredArtifact
	}

	defer func() {
		if r := recover(); r != nil {
			predictionsTotal.WithLabelValues(outcomeError, "").Inc()
			err = common.NewInferenceError(fmt.Sprintf("panic: %v", r), nil)
		}
	}()

	row := features.FromRequest(a.Schema, req)
	res, err = a.Pipeline.Predict(row)
	if err != nil {
		predictionsTotal.WithLabelValues(outcomeError, "").Inc()
		return model.PredictionResult{}, common.NewInferenceError("", err)
	}
	res.Fingerprint = a.Fingerprint
	res.RunID = a.RunID
	predictionsTotal.WithLabelValues(outcomeOK, strconv.Itoa(res.Label)).Inc()
	return res, nil
}
