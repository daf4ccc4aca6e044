package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/manohar-125/ThalAI-App/internal/model"
)

// SavePrediction appends a served prediction to the log and sets rec.ID.
func (s *SQLiteStorage) SavePrediction(ctx context.Context, rec *model.PredictionRecord) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validatePrediction(rec); err != nil {
		return err
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	var score sql.NullFloat64
	if rec.Score != nil {
		score = sql.NullFloat64{Float64: *rec.Score, Valid: true}
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO predictions (created_at, fingerprint, request_json, label, score)
		VALUES (?, ?, ?, ?, ?)`,
		rec.CreatedAt.UTC(), rec.Fingerprint, rec.RequestJSON, rec.Label, score)
	if err != nil {
		return fmt.Errorf("failed to save prediction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read prediction id: %w", err)
	}
	rec.ID = id
	return nil
}

// ListPredictions returns up to limit predictions, newest first.
func (s *SQLiteStorage) ListPredictions(ctx context.Context, limit int) ([]model.PredictionRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, fingerprint, request_json, label, score
		FROM predictions
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list predictions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.PredictionRecord
	for rows.Next() {
		var (
			rec       model.PredictionRecord
			createdAt time.Time
			score     sql.NullFloat64
		)
		if err := rows.Scan(&rec.ID, &createdAt, &rec.Fingerprint, &rec.RequestJSON, &rec.Label, &score); err != nil {
			return nil, fmt.Errorf("failed to scan prediction: %w", err)
		}
		rec.CreatedAt = createdAt.UTC()
		if score.Valid {
			v := score.Float64
			rec.Score = &v
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// CountPredictions returns how many predictions have been logged.
func (s *SQLiteStorage) CountPredictions(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM predictions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count predictions: %w", err)
	}
	return n, nil
}
