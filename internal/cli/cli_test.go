package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manohar-125/ThalAI-App/internal/features"
	"github.com/manohar-125/ThalAI-App/internal/model"
	"github.com/manohar-125/ThalAI-App/internal/pipeline"
)

// syncBuffer provides thread-safe access to a bytes.Buffer.
type syncBuffer struct {
	buf bytes.Buffer
	mu  sync.Mutex
}

func (s *syncBuffer) Write(p []byte) (n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func TestRequestReader(t *testing.T) {
	input := `{"frequency_in_days": 30, "blood_group": "O+"}

{"gender": null}
not json
[1]
null
{}
`
	r := NewRequestReader(strings.NewReader(input))
	ctx := context.Background()

	rec, err := r.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, json.Number("30"), rec["frequency_in_days"])
	assert.Equal(t, "O+", rec["blood_group"])

	rec, err = r.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, r.Line(), "blank line skipped")
	v, ok := rec["gender"]
	assert.True(t, ok)
	assert.Nil(t, v)

	_, err = r.Next(ctx)
	assert.ErrorContains(t, err, "line 4")
	assert.ErrorIs(t, err, ErrMalformedRequest)
	_, err = r.Next(ctx)
	assert.ErrorContains(t, err, "line 5")
	_, err = r.Next(ctx)
	assert.ErrorContains(t, err, "line 6")

	rec, err = r.Next(ctx)
	require.NoError(t, err)
	assert.Empty(t, rec)

	_, err = r.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestRequestReader_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewRequestReader(strings.NewReader("{}\n")).Next(ctx)
	assert.True(t, errors.Is(err, ErrInputCancelled))
}

func TestInterruptHandler_StopWithoutSignal(t *testing.T) {
	out := &syncBuffer{}
	h := NewInterruptHandler(out, "Nothing was written")

	ctx, stop := h.HandleInterrupts(context.Background())
	select {
	case <-ctx.Done():
		t.Fatal("context canceled before any signal")
	case <-time.After(10 * time.Millisecond):
	}

	stop()
	stop()
	<-ctx.Done()
	assert.False(t, h.WasInterrupted())
	assert.Empty(t, out.String())
}

func TestInterruptHandler_Message(t *testing.T) {
	out := &syncBuffer{}
	h := NewInterruptHandler(out, "The previous model is untouched")
	h.markInterrupted()
	h.markInterrupted()

	assert.True(t, h.WasInterrupted())
	assert.Equal(t, 1, strings.Count(out.String(), "Interrupted!"))
	assert.Contains(t, out.String(), "The previous model is untouched")
}

func TestTreeProgress(t *testing.T) {
	out := &syncBuffer{}
	p := NewTreeProgress(out)
	p.Step()
	p.Finish()

	p.Start(4)
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Step()
		}()
	}
	wg.Wait()
	p.Finish()
	assert.Contains(t, out.String(), "4/4")
}

func TestRenderReport(t *testing.T) {
	out := RenderReport(pipeline.Report{
		Accuracy: 0.85,
		Samples:  20,
		Classes: []pipeline.ClassMetrics{
			{Label: 0, Precision: 0.8, Recall: 0.9, F1: 0.847, Support: 10},
			{Label: 1, Precision: 0.9, Recall: 0.8, F1: 0.847, Support: 10},
		},
	})
	assert.Contains(t, out, "inactive")
	assert.Contains(t, out, "active")
	assert.Contains(t, out, "0.850")
	assert.Contains(t, out, "20 held-out")
	assert.Contains(t, out, "╭", "report is drawn in a rounded box")
}

func TestRenderRunSummary(t *testing.T) {
	run := model.TrainingRun{
		ID:          "0b5e1c2a-aaaa-bbbb-cccc-123456789012",
		LabelColumn: model.ColumnStatus,
		Records:     100,
		Dropped:     3,
		TrainSize:   78,
		TestSize:    19,
		Fingerprint: "abcdef0123456789",
	}
	out := RenderRunSummary(run, features.Diagnostics{model.FeatureFrequencyInDays: 2})
	assert.Contains(t, out, "3 dropped")
	assert.Contains(t, out, "abcdef01")
	assert.Contains(t, out, "frequency_in_days: 2")
}

func TestRenderSchemaAndRuns(t *testing.T) {
	s := model.FeatureSchema{Numeric: []string{model.FeatureDonatedEarlier}}
	out := RenderSchema(s)
	assert.Contains(t, out, model.FeatureDonatedEarlier)
	assert.Contains(t, out, "(none)")
	assert.Contains(t, out, s.Fingerprint())

	assert.Contains(t, RenderRuns(nil), "No training runs")

	table := RenderRuns([]model.TrainingRun{{
		ID:          "run-123456789",
		CreatedAt:   time.Date(2024, 1, 2, 3, 4, 0, 0, time.UTC),
		Records:     10,
		Accuracy:    0.5,
		Fingerprint: "ffffffffff",
	}})
	assert.Contains(t, table, "Training runs (1)")
	assert.Contains(t, table, DropIcon)
	assert.Contains(t, table, "run-1234")
	assert.Contains(t, table, "0.500")
}
