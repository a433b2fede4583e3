// Package history persists normalization reports in Postgres so past runs
// can be listed and inspected. Only the report is stored; the normalized
// table belongs to the caller.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/JonMunkholm/sheetnorm/internal/normalize"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// DefaultListLimit is the number of runs returned when no limit is given.
const DefaultListLimit = 50

// MaxListLimit caps the number of runs returned by one list call.
const MaxListLimit = 500

var (
	// ErrRunNotFound is returned when no run has the requested id.
	ErrRunNotFound = errors.New("run not found")

	// ErrUnavailable is returned by a nil Store, i.e. when no database is
	// configured.
	ErrUnavailable = errors.New("history unavailable")
)

// Run is a stored normalization run.
type Run struct {
	ID           string          `json:"id"`
	Profile      string          `json:"profile"`
	FileName     string          `json:"fileName,omitempty"`
	StartedAt    time.Time       `json:"startedAt"`
	DurationMs   int64           `json:"durationMs"`
	RowsRead     int             `json:"rowsRead"`
	RowsAccepted int             `json:"rowsAccepted"`
	RowsRejected int             `json:"rowsRejected"`
	RowsSkipped  int             `json:"rowsSkipped"`
	Report       json.RawMessage `json:"report,omitempty"`
}

// Filter narrows ListRuns.
type Filter struct {
	Profile string
	Limit   int
}

// Store reads and writes run history. A nil *Store is valid and reports
// ErrUnavailable from every method.
type Store struct {
	q      *Queries
	logger *slog.Logger
}

// NewStore creates a store over db.
func NewStore(db DBTX, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{q: New(db), logger: logger}
}

// EnsureSchema creates the runs table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if s == nil {
		return ErrUnavailable
	}
	if err := s.q.CreateRunsTable(ctx); err != nil {
		return fmt.Errorf("create normalization_runs: %w", err)
	}
	return nil
}

// SaveRun stores a finished run's report.
func (s *Store) SaveRun(ctx context.Context, fileName string, report *normalize.Report) (*Run, error) {
	if s == nil {
		return nil, ErrUnavailable
	}

	id, err := uuid.Parse(report.RunID)
	if err != nil {
		return nil, fmt.Errorf("run id %q: %w", report.RunID, err)
	}
	body, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}

	params := InsertRunParams{
		ID:           pgtype.UUID{Bytes: id, Valid: true},
		Profile:      report.Profile,
		FileName:     toPgText(fileName),
		StartedAt:    pgtype.Timestamptz{Time: report.StartedAt, Valid: true},
		DurationMs:   report.DurationMs,
		RowsRead:     int32(report.RowsRead),
		RowsAccepted: int32(report.RowsAccepted),
		RowsRejected: int32(report.RowsRejected),
		RowsSkipped:  int32(report.RowsSkipped),
		Report:       body,
	}
	if err := s.q.InsertRun(ctx, params); err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}

	s.logger.Debug("run saved", "run_id", report.RunID, "profile", report.Profile)
	return runFromRow(NormalizationRun(params)), nil
}

// GetRun returns one stored run including its report.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	if s == nil {
		return nil, ErrUnavailable
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrRunNotFound, id)
	}
	row, err := s.q.GetRun(ctx, pgtype.UUID{Bytes: parsed, Valid: true})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return runFromRow(row), nil
}

// ListRuns returns stored runs, newest first, without their reports.
func (s *Store) ListRuns(ctx context.Context, f Filter) ([]Run, error) {
	if s == nil {
		return nil, ErrUnavailable
	}

	limit := f.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	limit = min(limit, MaxListLimit)

	var rows []NormalizationRun
	var err error
	if f.Profile != "" {
		rows, err = s.q.ListRunsByProfile(ctx, ListRunsByProfileParams{
			Profile: f.Profile,
			Limit:   int32(limit),
		})
	} else {
		rows, err = s.q.ListRuns(ctx, int32(limit))
	}
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	runs := make([]Run, 0, len(rows))
	for _, row := range rows {
		r := runFromRow(row)
		r.Report = nil
		runs = append(runs, *r)
	}
	return runs, nil
}

func toPgText(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}

func uuidToString(u pgtype.UUID) string {
	if !u.Valid {
		return ""
	}
	return uuid.UUID(u.Bytes).String()
}

func runFromRow(row NormalizationRun) *Run {
	r := &Run{
		ID:           uuidToString(row.ID),
		Profile:      row.Profile,
		StartedAt:    row.StartedAt.Time,
		DurationMs:   row.DurationMs,
		RowsRead:     int(row.RowsRead),
		RowsAccepted: int(row.RowsAccepted),
		RowsRejected: int(row.RowsRejected),
		RowsSkipped:  int(row.RowsSkipped),
		Report:       row.Report,
	}
	if row.FileName.Valid {
		r.FileName = row.FileName.String
	}
	return r
}
