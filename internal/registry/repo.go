// Package registry persists ingestion run history to Postgres. It is
// optional: when no database is configured the pipeline runs without
// it and reports stay in-process.
package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"

	"ctxrag/internal/ingest"
)

type Repo struct {
	db *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{db: db}
}

// Open connects to Postgres and applies pending migrations.
func Open(dsn, migrationPath string) (*Repo, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := Migrate(db, migrationPath); err != nil {
		db.Close()
		return nil, err
	}
	return NewRepo(db), nil
}

func Migrate(db *sql.DB, migrationPath string) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance(migrationPath, "postgres", driver)
	if err != nil {
		return fmt.Errorf("migration setup: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func (r *Repo) Close() error {
	return r.db.Close()
}

// RunFailure is one persisted chunk failure.
type RunFailure struct {
	Ordinal int    `json:"ordinal"`
	Stage   string `json:"stage"`
	Error   string `json:"error"`
}

// Run is one persisted ingestion outcome.
type Run struct {
	DocID    string
	Chunks   int
	Stored   int
	Failures []RunFailure
	Started  time.Time
	Finished time.Time
}

func (r *Repo) RecordRun(ctx context.Context, report *ingest.Report) error {
	failures := make([]RunFailure, 0, len(report.Failed))
	for _, f := range report.Failed {
		failures = append(failures, RunFailure{Ordinal: f.Ordinal, Stage: f.Stage, Error: f.Err.Error()})
	}
	payload, err := json.Marshal(failures)
	if err != nil {
		return fmt.Errorf("encode failures: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO ingest_runs (doc_id, chunks, stored, failures, started_at, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		report.DocID, report.Chunks, report.Stored, payload, report.Started, report.Finished)
	if err != nil {
		return fmt.Errorf("record run for %s: %w", report.DocID, err)
	}
	return nil
}

// LastRun returns the most recent persisted run for a document, or
// sql.ErrNoRows when the document was never ingested.
func (r *Repo) LastRun(ctx context.Context, docID string) (*Run, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT doc_id, chunks, stored, failures, started_at, finished_at
		 FROM ingest_runs WHERE doc_id = $1 ORDER BY created_at DESC LIMIT 1`, docID)

	var (
		run      Run
		failures []byte
	)
	if err := row.Scan(&run.DocID, &run.Chunks, &run.Stored, &failures, &run.Started, &run.Finished); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(failures, &run.Failures); err != nil {
		return nil, fmt.Errorf("decode failures for %s: %w", docID, err)
	}
	return &run, nil
}
