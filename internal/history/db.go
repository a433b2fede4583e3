package history

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// DBTX is satisfied by *pgxpool.Pool, pgx.Tx and pgxmock pools.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Queries holds the normalization_runs statements.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// NormalizationRun is one row of normalization_runs.
type NormalizationRun struct {
	ID           pgtype.UUID
	Profile      string
	FileName     pgtype.Text
	StartedAt    pgtype.Timestamptz
	DurationMs   int64
	RowsRead     int32
	RowsAccepted int32
	RowsRejected int32
	RowsSkipped  int32
	Report       []byte
}

const createRunsTable = `
CREATE TABLE IF NOT EXISTS normalization_runs (
    id            uuid PRIMARY KEY,
    profile       text NOT NULL,
    file_name     text,
    started_at    timestamptz NOT NULL,
    duration_ms   bigint NOT NULL,
    rows_read     integer NOT NULL,
    rows_accepted integer NOT NULL,
    rows_rejected integer NOT NULL,
    rows_skipped  integer NOT NULL,
    report        jsonb NOT NULL
);
CREATE INDEX IF NOT EXISTS normalization_runs_profile_started_idx
    ON normalization_runs (profile, started_at DESC)`

func (q *Queries) CreateRunsTable(ctx context.Context) error {
	_, err := q.db.Exec(ctx, createRunsTable)
	return err
}

const insertRun = `-- name: InsertRun :exec
INSERT INTO normalization_runs (
    id, profile, file_name, started_at, duration_ms,
    rows_read, rows_accepted, rows_rejected, rows_skipped, report
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

type InsertRunParams struct {
	ID           pgtype.UUID
	Profile      string
	FileName     pgtype.Text
	StartedAt    pgtype.Timestamptz
	DurationMs   int64
	RowsRead     int32
	RowsAccepted int32
	RowsRejected int32
	RowsSkipped  int32
	Report       []byte
}

func (q *Queries) InsertRun(ctx context.Context, arg InsertRunParams) error {
	_, err := q.db.Exec(ctx, insertRun,
		arg.ID,
		arg.Profile,
		arg.FileName,
		arg.StartedAt,
		arg.DurationMs,
		arg.RowsRead,
		arg.RowsAccepted,
		arg.RowsRejected,
		arg.RowsSkipped,
		arg.Report,
	)
	return err
}

const runColumns = `id, profile, file_name, started_at, duration_ms,
    rows_read, rows_accepted, rows_rejected, rows_skipped, report`

const getRun = `-- name: GetRun :one
SELECT ` + runColumns + `
FROM normalization_runs
WHERE id = $1`

func (q *Queries) GetRun(ctx context.Context, id pgtype.UUID) (NormalizationRun, error) {
	row := q.db.QueryRow(ctx, getRun, id)
	var i NormalizationRun
	err := row.Scan(
		&i.ID,
		&i.Profile,
		&i.FileName,
		&i.StartedAt,
		&i.DurationMs,
		&i.RowsRead,
		&i.RowsAccepted,
		&i.RowsRejected,
		&i.RowsSkipped,
		&i.Report,
	)
	return i, err
}

const listRuns = `-- name: ListRuns :many
SELECT ` + runColumns + `
FROM normalization_runs
ORDER BY started_at DESC
LIMIT $1`

func (q *Queries) ListRuns(ctx context.Context, limit int32) ([]NormalizationRun, error) {
	rows, err := q.db.Query(ctx, listRuns, limit)
	if err != nil {
		return nil, err
	}
	return scanRuns(rows)
}

const listRunsByProfile = `-- name: ListRunsByProfile :many
SELECT ` + runColumns + `
FROM normalization_runs
WHERE profile = $1
ORDER BY started_at DESC
LIMIT $2`

type ListRunsByProfileParams struct {
	Profile string
	Limit   int32
}

func (q *Queries) ListRunsByProfile(ctx context.Context, arg ListRunsByProfileParams) ([]NormalizationRun, error) {
	rows, err := q.db.Query(ctx, listRunsByProfile, arg.Profile, arg.Limit)
	if err != nil {
		return nil, err
	}
	return scanRuns(rows)
}

func scanRuns(rows pgx.Rows) ([]NormalizationRun, error) {
	defer rows.Close()
	var items []NormalizationRun
	for rows.Next() {
		var i NormalizationRun
		if err := rows.Scan(
			&i.ID,
			&i.Profile,
			&i.FileName,
			&i.StartedAt,
			&i.DurationMs,
			&i.RowsRead,
			&i.RowsAccepted,
			&i.RowsRejected,
			&i.RowsSkipped,
			&i.Report,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
