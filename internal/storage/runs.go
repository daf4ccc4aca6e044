package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/manohar-125/ThalAI-App/internal/model"
)

// ErrRunNotFound is returned when no training run has the requested ID.
var ErrRunNotFound = errors.New("training run not found")

const runColumns = `id, created_at, artifact_path, artifact_sha256, fingerprint, label_column,
	date_source, numeric_features, categorical_features, records, dropped, unparseable,
	train_size, test_size, accuracy, metrics_json`

// SaveTrainingRun records a completed training job.
func (s *SQLiteStorage) SaveTrainingRun(ctx context.Context, run *model.TrainingRun) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRun(run); err != nil {
		return err
	}
	return saveTrainingRun(ctx, s.db, run)
}

func saveTrainingRun(ctx context.Context, q queryable, run *model.TrainingRun) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO training_runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.CreatedAt.UTC(),
		run.ArtifactPath,
		run.ArtifactSHA256,
		run.Fingerprint,
		run.LabelColumn,
		nullString(run.Schema.DateSource),
		strings.Join(run.Schema.Numeric, ","),
		strings.Join(run.Schema.Categorical, ","),
		run.Records,
		run.Dropped,
		run.Unparseable,
		run.TrainSize,
		run.TestSize,
		run.Accuracy,
		nullString(run.MetricsJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save training run: %w", err)
	}
	return nil
}

// GetTrainingRun returns a single run by ID.
func (s *SQLiteStorage) GetTrainingRun(ctx context.Context, id string) (*model.TrainingRun, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM training_runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get training run: %w", err)
	}
	return run, nil
}

// LatestTrainingRun returns the most recent run.
func (s *SQLiteStorage) LatestTrainingRun(ctx context.Context) (*model.TrainingRun, error) {
	runs, err := s.ListTrainingRuns(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, ErrRunNotFound
	}
	return &runs[0], nil
}

// ListTrainingRuns returns up to limit runs, newest first. A limit of zero
// or less returns every run.
func (s *SQLiteStorage) ListTrainingRuns(ctx context.Context, limit int) ([]model.TrainingRun, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `SELECT ` + runColumns + ` FROM training_runs ORDER BY created_at DESC, id`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list training runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []model.TrainingRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan training run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*model.TrainingRun, error) {
	var (
		run         model.TrainingRun
		createdAt   time.Time
		dateSource  sql.NullString
		numeric     string
		categorical string
		metrics     sql.NullString
	)
	err := sc.Scan(
		&run.ID,
		&createdAt,
		&run.ArtifactPath,
		&run.ArtifactSHA256,
		&run.Fingerprint,
		&run.LabelColumn,
		&dateSource,
		&numeric,
		&categorical,
		&run.Records,
		&run.Dropped,
		&run.Unparseable,
		&run.TrainSize,
		&run.TestSize,
		&run.Accuracy,
		&metrics,
	)
	if err != nil {
		return nil, err
	}
	run.CreatedAt = createdAt.UTC()
	run.Schema = model.FeatureSchema{
		DateSource:  dateSource.String,
		Numeric:     splitList(numeric),
		Categorical: splitList(categorical),
	}
	run.MetricsJSON = metrics.String
	return &run, nil
}

func splitList(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, ",")
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
