// Package store archives finished runs in SQLite so they can be fetched by ID.
// Nothing in the archive is ever fed back into a new run.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/smellak/browser-worker-agent/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrRunNotFound is returned by GetRun for unknown run IDs.
var ErrRunNotFound = errors.New("run not found")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id             TEXT PRIMARY KEY,
	start_url          TEXT NOT NULL,
	goal               TEXT NOT NULL,
	max_steps          INTEGER NOT NULL,
	finished_reason    TEXT NOT NULL,
	aggregated_content TEXT NOT NULL,
	steps              TEXT NOT NULL,
	created_at         TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
`

var pragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA busy_timeout = 10000",
	"PRAGMA synchronous = NORMAL",
}

// Store is the SQLite implementation of schemas.RunStore.
type Store struct {
	db  *sql.DB
	log *zap.Logger
	now func() time.Time
}

var _ schemas.RunStore = (*Store)(nil)

// Open opens (creating if needed) the database at path and applies the schema.
func Open(ctx context.Context, path string, logger *zap.Logger) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite serializes writers; one connection also keeps :memory: databases intact.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{
		db:  db,
		log: logger.Named("store"),
		now: time.Now,
	}, nil
}

// SaveRun inserts or replaces the run stored under result.RunID.
func (s *Store) SaveRun(ctx context.Context, result schemas.RunResult) error {
	if result.RunID == "" {
		return fmt.Errorf("cannot archive a run without a run_id")
	}

	steps := result.Steps
	if steps == nil {
		steps = []schemas.StepRecord{}
	}
	stepsJSON, err := json.Marshal(steps)
	if err != nil {
		return fmt.Errorf("failed to marshal steps: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs
			(run_id, start_url, goal, max_steps, finished_reason, aggregated_content, steps, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		result.RunID, result.StartURL, result.Goal, result.MaxSteps,
		result.FinishedReason, result.AggregatedContent, string(stepsJSON),
		s.now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", result.RunID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.log.Debug("Run archived.", zap.String("run_id", result.RunID), zap.Int("steps", len(steps)))
	return nil
}

// GetRun loads an archived run, or returns ErrRunNotFound.
func (s *Store) GetRun(ctx context.Context, runID string) (*schemas.RunResult, error) {
	var (
		result    schemas.RunResult
		stepsJSON string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT run_id, start_url, goal, max_steps, finished_reason, aggregated_content, steps
		FROM runs WHERE run_id = ?`, runID,
	).Scan(&result.RunID, &result.StartURL, &result.Goal, &result.MaxSteps,
		&result.FinishedReason, &result.AggregatedContent, &stepsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run %s: %w", runID, err)
	}

	if err := json.Unmarshal([]byte(stepsJSON), &result.Steps); err != nil {
		return nil, fmt.Errorf("failed to unmarshal steps for run %s: %w", runID, err)
	}
	return &result, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
