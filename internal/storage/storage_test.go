package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manohar-125/ThalAI-App/internal/model"
)

func createTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testRun(id string, createdAt time.Time) *model.TrainingRun {
	schema := model.FeatureSchema{
		DateSource:  model.ColumnLastBridgeDonationDate,
		Numeric:     []string{model.FeatureFrequencyInDays, model.FeatureDaysSinceLastDonation},
		Categorical: []string{model.FeatureBloodGroup},
	}
	return &model.TrainingRun{
		ID:             id,
		CreatedAt:      createdAt,
		ArtifactPath:   "/tmp/model.gob",
		ArtifactSHA256: "abc123",
		Fingerprint:    schema.Fingerprint(),
		LabelColumn:    model.ColumnUserDonationActiveState,
		MetricsJSON:    `{"accuracy":0.9}`,
		Schema:         schema,
		Records:        100,
		Dropped:        4,
		Unparseable:    2,
		TrainSize:      76,
		TestSize:       20,
		Accuracy:       0.9,
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	require.NoError(t, store.Migrate(ctx))

	var version int
	require.NoError(t, store.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version))
	assert.Equal(t, ExpectedSchemaVersion, version)

	for _, table := range []string{"training_runs", "predictions"} {
		var n int
		err := store.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&n)
		require.NoError(t, err)
		assert.Equal(t, 1, n, "table %s", table)
	}
}

func TestNewSQLiteStorage_EmptyPath(t *testing.T) {
	_, err := NewSQLiteStorage("  ")
	assert.ErrorIs(t, err, ErrEmptyString)
}

func TestTrainingRuns(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	older := testRun("run-1", base)
	newer := testRun("run-2", base.Add(time.Hour))
	newer.Schema.DateSource = ""
	newer.Schema.Categorical = nil
	newer.Fingerprint = newer.Schema.Fingerprint()
	newer.MetricsJSON = ""

	require.NoError(t, store.SaveTrainingRun(ctx, older))
	require.NoError(t, store.SaveTrainingRun(ctx, newer))

	got, err := store.GetTrainingRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, older.Schema, got.Schema)
	assert.True(t, older.CreatedAt.Equal(got.CreatedAt))
	assert.Equal(t, older.MetricsJSON, got.MetricsJSON)
	assert.Equal(t, 4, got.Dropped)
	assert.Equal(t, 2, got.Unparseable)
	assert.InDelta(t, 0.9, got.Accuracy, 1e-9)

	runs, err := store.ListTrainingRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].ID)
	assert.Empty(t, runs[0].Schema.Categorical)
	assert.Empty(t, runs[0].Schema.DateSource)

	latest, err := store.LatestTrainingRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-2", latest.ID)

	_, err = store.GetTrainingRun(ctx, "nope")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestTrainingRuns_Empty(t *testing.T) {
	store := createTestStorage(t)
	_, err := store.LatestTrainingRun(context.Background())
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestSaveTrainingRun_Validation(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	now := time.Now()

	tests := []struct {
		mutate func(*model.TrainingRun)
		name   string
	}{
		{name: "missing id", mutate: func(r *model.TrainingRun) { r.ID = "" }},
		{name: "zero time", mutate: func(r *model.TrainingRun) { r.CreatedAt = time.Time{} }},
		{name: "empty schema", mutate: func(r *model.TrainingRun) { r.Schema = model.FeatureSchema{} }},
		{name: "dropped exceeds records", mutate: func(r *model.TrainingRun) { r.Dropped = 101 }},
		{name: "accuracy above one", mutate: func(r *model.TrainingRun) { r.Accuracy = 1.5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := testRun("x", now)
			tt.mutate(run)
			assert.ErrorIs(t, store.SaveTrainingRun(ctx, run), ErrInvalidRun)
		})
	}

	assert.ErrorIs(t, store.SaveTrainingRun(ctx, nil), ErrNilParameter)
}

func TestPredictions(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	score := 0.8
	first := &model.PredictionRecord{Fingerprint: "fp", RequestJSON: `{"a":1}`, Label: 1, Score: &score}
	second := &model.PredictionRecord{Fingerprint: "fp", RequestJSON: `{}`, Label: 0}

	require.NoError(t, store.SavePrediction(ctx, first))
	require.NoError(t, store.SavePrediction(ctx, second))
	assert.NotZero(t, first.ID)
	assert.Greater(t, second.ID, first.ID)
	assert.False(t, first.CreatedAt.IsZero())

	got, err := store.ListPredictions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, second.ID, got[0].ID)
	assert.Nil(t, got[0].Score)
	require.NotNil(t, got[1].Score)
	assert.InDelta(t, 0.8, *got[1].Score, 1e-9)
	assert.Equal(t, `{"a":1}`, got[1].RequestJSON)

	limited, err := store.ListPredictions(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	n, err := store.CountPredictions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSavePrediction_Validation(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	bad := 1.2
	assert.ErrorIs(t, store.SavePrediction(ctx, &model.PredictionRecord{Fingerprint: "fp", Label: 2}), ErrInvalidPrediction)
	assert.ErrorIs(t, store.SavePrediction(ctx, &model.PredictionRecord{Fingerprint: "fp", Label: 1, Score: &bad}), ErrInvalidPrediction)
	assert.ErrorIs(t, store.SavePrediction(ctx, &model.PredictionRecord{Label: 1}), ErrInvalidPrediction)
}
