// Package testutil provides shared fixtures for tests: migrated in-memory
// databases and synthetic donor exports.
package testutil

import (
	"context"
	"testing"

	"github.com/manohar-125/ThalAI-App/internal/model"
	"github.com/manohar-125/ThalAI-App/internal/storage"
)

// TestDB represents a test database with associated test utilities.
type TestDB struct {
	Storage *storage.SQLiteStorage
	t       *testing.T
}

// TestDBOptions provides configuration options for test database setup.
type TestDBOptions struct {
	CustomSetup    func(context.Context, *storage.SQLiteStorage) error
	Runs           []model.TrainingRun
	SkipMigrations bool
}

// SetupTestDB creates a new migrated in-memory database that is closed when
// the test ends.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()
	return SetupTestDBWithOptions(t, TestDBOptions{})
}

// SetupTestDBWithOptions creates a test database with custom options.
//
// Example:
//
//	db := testutil.SetupTestDBWithOptions(t, testutil.TestDBOptions{
//		Runs: []model.TrainingRun{run},
//	})
func SetupTestDBWithOptions(t *testing.T, opts TestDBOptions) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	ctx := context.Background()

	if !opts.SkipMigrations {
		if err := store.Migrate(ctx); err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}
	}

	for i := range opts.Runs {
		if err := store.SaveTrainingRun(ctx, &opts.Runs[i]); err != nil {
			t.Fatalf("failed to seed run %q: %v", opts.Runs[i].ID, err)
		}
	}

	if opts.CustomSetup != nil {
		if err := opts.CustomSetup(ctx, store); err != nil {
			t.Fatalf("custom setup failed: %v", err)
		}
	}

	return &TestDB{Storage: store, t: t}
}

// MustGetRun returns the recorded run with the given ID or fails the test.
func (db *TestDB) MustGetRun(id string) *model.TrainingRun {
	db.t.Helper()
	run, err := db.Storage.GetTrainingRun(context.Background(), id)
	if err != nil {
		db.t.Fatalf("run %q not found: %v", id, err)
	}
	return run
}
