// Package training turns a historical donor dataset into a persisted,
// evaluated artifact.
package training

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/manohar-125/ThalAI-App/internal/common"
	"github.com/manohar-125/ThalAI-App/internal/dataset"
	"github.com/manohar-125/ThalAI-App/internal/features"
	"github.com/manohar-125/ThalAI-App/internal/forest"
	"github.com/manohar-125/ThalAI-App/internal/model"
	"github.com/manohar-125/ThalAI-App/internal/pipeline"
	"github.com/manohar-125/ThalAI-App/internal/storage"
)

// Config holds training options.
type Config struct {
	// Reference is the instant date features are aged against. Zero means
	// the start of the run.
	Reference    time.Time
	ArtifactPath string
	TestRatio    float64
	Seed         int64
	Trees        int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		ArtifactPath: "model.gob",
		TestRatio:    0.2,
		Seed:         42,
		Trees:        200,
	}
}

// Validate checks the configuration before any work starts.
func (c Config) Validate() error {
	if c.ArtifactPath == "" {
		return fmt.Errorf("%w: artifact path", common.ErrMissingConfig)
	}
	if c.TestRatio <= 0 || c.TestRatio >= 1 {
		return fmt.Errorf("%w: test ratio %v must be in (0, 1)", common.ErrInvalidConfig, c.TestRatio)
	}
	if c.Trees < 1 {
		return fmt.Errorf("%w: trees must be positive, got %d", common.ErrInvalidConfig, c.Trees)
	}
	return nil
}

// Result is everything a finished run produced.
type Result struct {
	Artifact    *storage.Artifact
	Metadata    *storage.ArtifactMetadata
	Diagnostics features.Diagnostics
	Run         model.TrainingRun
	Report      pipeline.Report
}

// Trainer runs training jobs.
type Trainer struct {
	recorder RunRecorder
	progress Progress
	config   Config
}

// New creates a trainer. recorder and progress may be nil.
func New(config Config, recorder RunRecorder, progress Progress) *Trainer {
	return &Trainer{
		config:   config,
		recorder: recorder,
		progress: progress,
	}
}

// Train fits, evaluates and persists a model from ds. Configuration errors
// (no label column, no usable features) and training errors (no resolvable
// targets, a single class) abort the run; bad cell values never do.
func (t *Trainer) Train(ctx context.Context, ds *dataset.Dataset) (*Result, error) {
	if err := t.config.Validate(); err != nil {
		return nil, err
	}
	if ds == nil {
		return nil, common.ErrNoTrainingData
	}

	reference := t.config.Reference
	if reference.IsZero() {
		reference = time.Now()
	}

	profile := features.ProfileRecords(ds.Columns, ds.Records)
	labelColumn, err := features.LabelColumn(profile)
	if err != nil {
		return nil, err
	}
	schema, err := features.DeriveSchema(profile)
	if err != nil {
		return nil, err
	}

	slog.Info("Derived feature schema",
		"label_column", labelColumn,
		"date_source", schema.DateSource,
		"numeric", schema.Numeric,
		"categorical", schema.Categorical)

	normalizer := features.NewNormalizer(schema, reference)
	diag := features.Diagnostics{}
	rows := make([]model.FeatureRow, 0, len(ds.Records))
	y := make([]int, 0, len(ds.Records))
	for _, rec := range ds.Records {
		target := features.ResolveTarget(rec[labelColumn])
		if !target.Resolved {
			continue
		}
		row, d := normalizer.Normalize(rec)
		diag.Add(d)
		rows = append(rows, row)
		y = append(y, target.Label)
	}

	dropped := len(ds.Records) - len(rows)
	if dropped > 0 {
		common.LogInfo("Dropped records with unresolvable target", common.Fields{
			"dropped":      dropped,
			"total":        len(ds.Records),
			"label_column": labelColumn,
		})
	}
	logDiagnostics(diag)

	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: all %d records dropped", common.ErrNoTrainingData, len(ds.Records))
	}

	trainIdx, testIdx, err := pipeline.StratifiedSplit(y, t.config.TestRatio, t.config.Seed)
	if err != nil {
		return nil, fmt.Errorf("failed to split dataset: %w", err)
	}
	trainRows, trainY := subset(rows, y, trainIdx)
	testRows, testY := subset(rows, y, testIdx)

	clf := forest.New(
		forest.WithNEstimators(t.config.Trees),
		forest.WithSeed(t.config.Seed),
		forest.WithClassWeight(forest.ClassWeightBalancedSubsample),
	)

	var onTree func()
	if t.progress != nil {
		t.progress.Start(t.config.Trees)
		onTree = t.progress.Step
	}
	fitted, err := pipeline.Fit(ctx, schema, trainRows, trainY, clf, onTree)
	if t.progress != nil {
		t.progress.Finish()
	}
	if err != nil {
		return nil, err
	}

	predicted, err := fitted.PredictLabels(testRows)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate held-out partition: %w", err)
	}
	report := pipeline.Evaluate(testY, predicted)

	runID := uuid.NewString()
	artifact := storage.NewArtifact(runID, fitted)
	meta, err := storage.SaveArtifact(t.config.ArtifactPath, artifact)
	if err != nil {
		return nil, fmt.Errorf("failed to save artifact: %w", err)
	}

	metricsJSON, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("failed to encode metrics: %w", err)
	}

	run := model.TrainingRun{
		ID:             runID,
		CreatedAt:      artifact.CreatedAt,
		ArtifactPath:   t.config.ArtifactPath,
		ArtifactSHA256: meta.SHA256,
		Fingerprint:    artifact.Fingerprint,
		LabelColumn:    labelColumn,
		MetricsJSON:    string(metricsJSON),
		Schema:         schema,
		Records:        len(ds.Records),
		Dropped:        dropped,
		Unparseable:    diag.Total(),
		TrainSize:      len(trainIdx),
		TestSize:       len(testIdx),
		Accuracy:       report.Accuracy,
	}
	if t.recorder != nil {
		if err := t.recorder.SaveTrainingRun(ctx, &run); err != nil {
			return nil, fmt.Errorf("failed to record training run: %w", err)
		}
	}

	common.LogInfo("Training complete", common.Fields{
		"run_id":      runID,
		"accuracy":    report.Accuracy,
		"train_size":  run.TrainSize,
		"test_size":   run.TestSize,
		"artifact":    t.config.ArtifactPath,
		"fingerprint": artifact.Fingerprint,
	})

	return &Result{
		Artifact:    artifact,
		Metadata:    meta,
		Diagnostics: diag,
		Run:         run,
		Report:      report,
	}, nil
}

func subset(rows []model.FeatureRow, y []int, idx []int) ([]model.FeatureRow, []int) {
	outRows := make([]model.FeatureRow, len(idx))
	outY := make([]int, len(idx))
	for i, j := range idx {
		outRows[i] = rows[j]
		outY[i] = y[j]
	}
	return outRows, outY
}

func logDiagnostics(diag features.Diagnostics) {
	names := make([]string, 0, len(diag))
	for name := range diag {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		common.LogDebug("Unparseable values treated as missing", common.Fields{
			"feature": name,
			"count":   diag[name],
		})
	}
}
