package registry_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ctxrag/internal/ingest"
	"ctxrag/internal/registry"
)

func TestRepo_RecordRun(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	started := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	finished := started.Add(8 * time.Second)

	mock.ExpectExec("INSERT INTO ingest_runs").
		WithArgs("handbook.md", 12, 11,
			[]byte(`[{"ordinal":4,"stage":"embed","error":"embedding failed: timeout"}]`),
			started, finished).
		WillReturnResult(sqlmock.NewResult(1, 1))

	repo := registry.NewRepo(db)
	err = repo.RecordRun(context.Background(), &ingest.Report{
		DocID:  "handbook.md",
		Chunks: 12,
		Stored: 11,
		Failed: []ingest.ChunkFailure{
			{Ordinal: 4, Stage: "embed", Err: errors.New("embedding failed: timeout")},
		},
		Started:  started,
		Finished: finished,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepo_RecordRun_NoFailures(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO ingest_runs").
		WithArgs("clean.md", 3, 3, []byte(`[]`), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	repo := registry.NewRepo(db)
	err = repo.RecordRun(context.Background(), &ingest.Report{DocID: "clean.md", Chunks: 3, Stored: 3})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepo_RecordRun_DatabaseError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO ingest_runs").
		WillReturnError(errors.New("connection reset"))

	repo := registry.NewRepo(db)
	err = repo.RecordRun(context.Background(), &ingest.Report{DocID: "doc.md"})
	assert.ErrorContains(t, err, "record run for doc.md")
}

func TestRepo_LastRun(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	started := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"doc_id", "chunks", "stored", "failures", "started_at", "finished_at"}).
		AddRow("handbook.md", 12, 11, []byte(`[{"ordinal":4,"stage":"embed","error":"timeout"}]`), started, started.Add(time.Second))

	mock.ExpectQuery("SELECT doc_id, chunks, stored, failures").
		WithArgs("handbook.md").
		WillReturnRows(rows)

	repo := registry.NewRepo(db)
	run, err := repo.LastRun(context.Background(), "handbook.md")
	require.NoError(t, err)
	assert.Equal(t, 12, run.Chunks)
	assert.Equal(t, 11, run.Stored)
	require.Len(t, run.Failures, 1)
	assert.Equal(t, "embed", run.Failures[0].Stage)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepo_LastRun_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT doc_id, chunks, stored, failures").
		WithArgs("missing.md").
		WillReturnError(sql.ErrNoRows)

	repo := registry.NewRepo(db)
	_, err = repo.LastRun(context.Background(), "missing.md")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

var _ ingest.Registry = (*registry.Repo)(nil)
