// Package storage persists trained artifacts and the run/prediction history.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/manohar-125/ThalAI-App/internal/model"
)

// Validation errors.
var (
	ErrNilContext        = errors.New("context cannot be nil")
	ErrEmptyString       = errors.New("string parameter cannot be empty")
	ErrNilParameter      = errors.New("parameter cannot be nil")
	ErrInvalidRun        = errors.New("invalid training run")
	ErrInvalidPrediction = errors.New("invalid prediction record")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

func validateRun(run *model.TrainingRun) error {
	if run == nil {
		return fmt.Errorf("%w: run", ErrNilParameter)
	}
	if run.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidRun)
	}
	if run.CreatedAt.IsZero() {
		return fmt.Errorf("%w: missing creation time", ErrInvalidRun)
	}
	if run.Fingerprint == "" {
		return fmt.Errorf("%w: missing fingerprint", ErrInvalidRun)
	}
	if run.Schema.IsEmpty() {
		return fmt.Errorf("%w: empty schema", ErrInvalidRun)
	}
	if run.Dropped < 0 || run.Dropped > run.Records {
		return fmt.Errorf("%w: dropped %d of %d records", ErrInvalidRun, run.Dropped, run.Records)
	}
	if run.Accuracy < 0 || run.Accuracy > 1 {
		return fmt.Errorf("%w: accuracy must be between 0 and 1", ErrInvalidRun)
	}
	return nil
}

func validatePrediction(rec *model.PredictionRecord) error {
	if rec == nil {
		return fmt.Errorf("%w: prediction", ErrNilParameter)
	}
	if rec.Label != 0 && rec.Label != 1 {
		return fmt.Errorf("%w: label %d", ErrInvalidPrediction, rec.Label)
	}
	if rec.Score != nil && (*rec.Score < 0 || *rec.Score > 1) {
		return fmt.Errorf("%w: score must be between 0 and 1", ErrInvalidPrediction)
	}
	if rec.Fingerprint == "" {
		return fmt.Errorf("%w: missing fingerprint", ErrInvalidPrediction)
	}
	return nil
}
