package history

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/JonMunkholm/sheetnorm/internal/normalize"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var runColumnNames = []string{
	"id", "profile", "file_name", "started_at", "duration_ms",
	"rows_read", "rows_accepted", "rows_rejected", "rows_skipped", "report",
}

func newMock(t *testing.T) (pgxmock.PgxPoolIface, *Store) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewStore(mock, nil)
}

func TestSaveRun(t *testing.T) {
	mock, store := newMock(t)
	started := time.Date(2026, 10, 1, 9, 30, 0, 0, time.UTC)
	id := uuid.New()
	report := &normalize.Report{
		RunID:        id.String(),
		Profile:      "vitya",
		StartedAt:    started,
		DurationMs:   12,
		RowsRead:     10,
		RowsAccepted: 7,
		RowsRejected: 2,
		RowsSkipped:  1,
		Diagnostics:  []normalize.Diagnostic{},
	}

	mock.ExpectExec("INSERT INTO normalization_runs").
		WithArgs(
			pgtype.UUID{Bytes: id, Valid: true},
			"vitya",
			pgtype.Text{String: "price_JHT.xlsx", Valid: true},
			pgtype.Timestamptz{Time: started, Valid: true},
			int64(12),
			int32(10), int32(7), int32(2), int32(1),
			pgxmock.AnyArg(),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run, err := store.SaveRun(context.Background(), "price_JHT.xlsx", report)
	require.NoError(t, err)
	assert.Equal(t, id.String(), run.ID)
	assert.Equal(t, "price_JHT.xlsx", run.FileName)
	assert.Equal(t, 7, run.RowsAccepted)

	var stored normalize.Report
	require.NoError(t, json.Unmarshal(run.Report, &stored))
	assert.Equal(t, "vitya", stored.Profile)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveRun_BadRunID(t *testing.T) {
	mock, store := newMock(t)
	_, err := store.SaveRun(context.Background(), "", &normalize.Report{RunID: "not-a-uuid"})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRun(t *testing.T) {
	mock, store := newMock(t)
	id := uuid.New()
	started := time.Date(2026, 10, 2, 8, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT .+ FROM normalization_runs WHERE id = \\$1").
		WithArgs(pgtype.UUID{Bytes: id, Valid: true}).
		WillReturnRows(pgxmock.NewRows(runColumnNames).AddRow(
			pgtype.UUID{Bytes: id, Valid: true},
			"dimi",
			pgtype.Text{Valid: false},
			pgtype.Timestamptz{Time: started, Valid: true},
			int64(40),
			int32(3), int32(3), int32(0), int32(0),
			[]byte(`{"profile":"dimi"}`),
		))

	run, err := store.GetRun(context.Background(), id.String())
	require.NoError(t, err)
	assert.Equal(t, id.String(), run.ID)
	assert.Equal(t, "dimi", run.Profile)
	assert.Empty(t, run.FileName)
	assert.Equal(t, started, run.StartedAt)
	assert.JSONEq(t, `{"profile":"dimi"}`, string(run.Report))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRun_NotFound(t *testing.T) {
	mock, store := newMock(t)
	id := uuid.New()

	mock.ExpectQuery("FROM normalization_runs").
		WithArgs(pgtype.UUID{Bytes: id, Valid: true}).
		WillReturnError(pgx.ErrNoRows)

	_, err := store.GetRun(context.Background(), id.String())
	assert.True(t, errors.Is(err, ErrRunNotFound))

	_, err = store.GetRun(context.Background(), "garbage")
	assert.True(t, errors.Is(err, ErrRunNotFound), "unparseable ids are not found")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListRuns(t *testing.T) {
	started := time.Date(2026, 10, 3, 12, 0, 0, 0, time.UTC)
	row := func(profile string) []any {
		return []any{
			pgtype.UUID{Bytes: uuid.New(), Valid: true},
			profile,
			pgtype.Text{String: profile + ".csv", Valid: true},
			pgtype.Timestamptz{Time: started, Valid: true},
			int64(1),
			int32(1), int32(1), int32(0), int32(0),
			[]byte(`{}`),
		}
	}

	t.Run("all profiles with default limit", func(t *testing.T) {
		mock, store := newMock(t)
		mock.ExpectQuery("ORDER BY started_at DESC").
			WithArgs(int32(DefaultListLimit)).
			WillReturnRows(pgxmock.NewRows(runColumnNames).AddRow(row("vitya")...).AddRow(row("dimi")...))

		runs, err := store.ListRuns(context.Background(), Filter{})
		require.NoError(t, err)
		require.Len(t, runs, 2)
		assert.Equal(t, "vitya", runs[0].Profile)
		assert.Equal(t, "vitya.csv", runs[0].FileName)
		assert.Nil(t, runs[0].Report, "listings omit reports")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("one profile with capped limit", func(t *testing.T) {
		mock, store := newMock(t)
		mock.ExpectQuery("WHERE profile = \\$1").
			WithArgs("dimi", int32(MaxListLimit)).
			WillReturnRows(pgxmock.NewRows(runColumnNames))

		runs, err := store.ListRuns(context.Background(), Filter{Profile: "dimi", Limit: 10000})
		require.NoError(t, err)
		assert.Empty(t, runs)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestEnsureSchema(t *testing.T) {
	mock, store := newMock(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS normalization_runs").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	require.NoError(t, store.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNilStore(t *testing.T) {
	var store *Store
	ctx := context.Background()

	assert.ErrorIs(t, store.EnsureSchema(ctx), ErrUnavailable)
	_, err := store.GetRun(ctx, uuid.NewString())
	assert.ErrorIs(t, err, ErrUnavailable)
	_, err = store.ListRuns(ctx, Filter{})
	assert.ErrorIs(t, err, ErrUnavailable)
	_, err = store.SaveRun(ctx, "x.csv", &normalize.Report{})
	assert.ErrorIs(t, err, ErrUnavailable)
}
