package normalize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/JonMunkholm/sheetnorm/internal/profile"
	"github.com/JonMunkholm/sheetnorm/internal/sheet"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// State is the lifecycle stage of a Run.
type State uint8

const (
	StateInit State = iota
	StateHeaderResolved
	StateProcessing
	StateFinalized
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateHeaderResolved:
		return "header-resolved"
	case StateProcessing:
		return "processing"
	default:
		return "finalized"
	}
}

// Run is one normalization of one grid under one profile. Rows are
// processed in batches by Next; Finish builds the table and report from
// the rows processed so far. A Run is driven by a single goroutine.
type Run struct {
	id        string
	profile   *profile.Profile
	grid      sheet.Grid
	plan      *Plan
	validator *Validator
	pre       Preprocessor
	logger    *slog.Logger
	workers   int
	batchSize int

	state   State
	next    int
	results []rowResult
	started time.Time

	table  *Table
	report *Report
}

type rowResult struct {
	class    Class
	filtered bool
	record   *Record
	diags    []Diagnostic
}

// Start resolves the header of g under p and returns a run ready to
// process rows.
func (e *Engine) Start(ctx context.Context, g sheet.Grid, p *profile.Profile) *Run {
	id := uuid.NewString()
	r := &Run{
		id:        id,
		profile:   p,
		grid:      g,
		validator: NewValidator(p),
		pre:       NewPreprocessor(p),
		logger:    e.loggerFor(ctx).With("run_id", id, "profile", p.Name),
		workers:   e.workers,
		batchSize: e.batchSize,
		results:   make([]rowResult, len(g.Rows)),
		started:   time.Now(),
	}

	r.plan = e.resolver.Resolve(g, p)
	r.state = StateHeaderResolved

	for _, h := range r.plan.Headers {
		r.logger.Debug("column resolved",
			"position", h.Position,
			"header", h.Header,
			"status", h.Status.String(),
			"field", h.Field,
			"detected", h.Detected,
		)
	}
	r.logger.Info("normalization started",
		"rows", len(g.Rows),
		"columns", len(r.plan.Headers),
		"fields", len(r.plan.Fields),
		"unresolved", len(r.plan.Unresolved()),
	)
	return r
}

func (r *Run) ID() string           { return r.id }
func (r *Run) State() State         { return r.state }
func (r *Run) Plan() *Plan          { return r.plan }
func (r *Run) Done() bool           { return r.next >= len(r.grid.Rows) }
func (r *Run) Progress() (int, int) { return r.next, len(r.grid.Rows) }

// Next processes the next batch of rows and reports whether it did any
// work. Rows within a batch are processed in parallel; results keep
// source order.
func (r *Run) Next() bool {
	if r.state == StateFinalized || r.Done() {
		return false
	}
	r.state = StateProcessing

	lo := r.next
	hi := min(lo+r.batchSize, len(r.grid.Rows))
	chunk := (hi - lo + r.workers - 1) / r.workers

	var g errgroup.Group
	g.SetLimit(r.workers)
	for start := lo; start < hi; start += chunk {
		end := min(start+chunk, hi)
		g.Go(func() error {
			for i := start; i < end; i++ {
				r.results[i] = r.processRow(i)
			}
			return nil
		})
	}
	_ = g.Wait()

	r.next = hi
	return true
}

// processRow cleans, coerces, filters and validates one data row. It reads
// only the grid, the plan and the profile, so rows can run concurrently.
// Only the winning column of each field is coerced.
func (r *Run) processRow(i int) rowResult {
	if r.profile.Settings.SkipEmptyRows && blankRow(r.grid.Rows[i]) {
		return rowResult{class: Skipped, diags: []Diagnostic{{
			Row:    i,
			Column: -1,
			Kind:   KindSkippedEmpty,
			Reason: "SkippedEmpty",
		}}}
	}

	rec := NewRecord(len(r.plan.Fields))
	for _, f := range r.plan.Fields {
		rec.Set(f, Absent())
	}

	var diags []Diagnostic
	for _, h := range r.plan.mapped {
		if pos, _ := r.plan.Position(h.Field); pos != h.Position {
			continue
		}
		v, err := Coerce(r.pre.Clean(h.Field, r.grid.Cell(i, h.Position)), h.Type)
		if err != nil {
			var cf *CoercionFailure
			if errors.As(err, &cf) {
				cf.Field = h.Field
			}
			diags = append(diags, Diagnostic{
				Row:    i,
				Column: h.Position,
				Field:  h.Field,
				Kind:   KindCoercionFailure,
				Reason: err.Error(),
			})
		}
		rec.Set(h.Field, v)
	}

	if d, keep := r.pre.Keep(rec); !keep {
		d.Row = i
		d.Column = r.column(d.Field)
		return rowResult{class: Skipped, filtered: true, diags: []Diagnostic{d}}
	}

	violations := r.validator.Validate(rec)
	if len(violations) > 0 {
		for _, v := range violations {
			kind := KindMissingRequired
			if v.Kind == OutOfRange {
				kind = KindOutOfRange
			}
			diags = append(diags, Diagnostic{
				Row:    i,
				Column: r.column(v.Field),
				Field:  v.Field,
				Kind:   kind,
				Reason: v.String(),
			})
		}
		return rowResult{class: Rejected, diags: diags}
	}

	r.pre.Stamp(rec)

	class := Accepted
	if len(diags) > 0 {
		class = AcceptedWithWarnings
	}
	return rowResult{class: class, record: rec, diags: diags}
}

// column returns the source position of field, or -1 when no column feeds it.
func (r *Run) column(field string) int {
	if pos, ok := r.plan.Position(field); ok {
		return pos
	}
	return -1
}

func blankRow(row []sheet.Cell) bool {
	for _, c := range row {
		if !c.IsAbsent() {
			return false
		}
	}
	return true
}

// Finish builds the table of accepted rows and the report from every row
// processed so far. Calling Finish again returns the same result.
func (r *Run) Finish() (*Table, *Report) {
	if r.state == StateFinalized {
		return r.table, r.report
	}

	report := &Report{
		RunID:       r.id,
		Profile:     r.profile.Name,
		StartedAt:   r.started,
		Columns:     r.plan.Headers,
		Diagnostics: []Diagnostic{},
	}
	report.Diagnostics = append(report.Diagnostics, r.columnDiagnostics()...)

	table := &Table{
		Fields: append([]string{}, r.plan.Fields...),
		Rows:   []Row{},
	}
	if stamp := r.profile.Preprocess.StampSupplier; stamp != "" && !slices.Contains(table.Fields, stamp) {
		table.Fields = append(table.Fields, stamp)
	}
	for i := 0; i < r.next; i++ {
		res := r.results[i]
		report.RowsRead++
		switch res.class {
		case Skipped:
			report.RowsSkipped++
			if res.filtered {
				report.RowsFiltered++
			}
		case Rejected:
			report.RowsRejected++
		default:
			report.RowsAccepted++
			if res.class == AcceptedWithWarnings {
				report.RowsWarned++
			}
			table.Rows = append(table.Rows, Row{Index: i, Class: res.class, Record: res.record})
		}
		report.Diagnostics = append(report.Diagnostics, res.diags...)
	}

	if r.profile.Settings.DropNAColumns && len(table.Rows) > 0 {
		dropNAColumns(table, report)
	}

	report.Duration = time.Since(r.started)
	report.DurationMs = report.Duration.Milliseconds()

	r.table, r.report = table, report
	r.results = nil
	r.state = StateFinalized

	r.logger.Info("normalization finished",
		"rows_read", report.RowsRead,
		"rows_accepted", report.RowsAccepted,
		"rows_rejected", report.RowsRejected,
		"rows_skipped", report.RowsSkipped,
		"rows_filtered", report.RowsFiltered,
		"diagnostics", len(report.Diagnostics),
		"duration_ms", report.DurationMs,
	)
	return table, report
}

func (r *Run) columnDiagnostics() []Diagnostic {
	var out []Diagnostic
	for _, h := range r.plan.Unresolved() {
		out = append(out, Diagnostic{
			Row:    -1,
			Column: h.Position,
			Kind:   KindDroppedUnresolved,
			Reason: fmt.Sprintf("column %q has no mapping", h.Header),
		})
	}

	overwritten := r.plan.Overwritten()
	for _, f := range r.plan.Fields {
		positions, ok := overwritten[f]
		if !ok {
			continue
		}
		out = append(out, Diagnostic{
			Row:    -1,
			Column: positions[len(positions)-1],
			Field:  f,
			Kind:   KindOverwritten,
			Reason: fmt.Sprintf("columns %v all map to %q; the rightmost wins", positions, f),
		})
	}
	return out
}

// dropNAColumns removes every field that is absent in all accepted rows.
func dropNAColumns(table *Table, report *Report) {
	var keep []string
	for _, f := range table.Fields {
		empty := true
		for _, row := range table.Rows {
			if !row.Record.Value(f).IsAbsent() {
				empty = false
				break
			}
		}
		if !empty {
			keep = append(keep, f)
			continue
		}

		for _, row := range table.Rows {
			row.Record.Delete(f)
		}
		report.Dropped = append(report.Dropped, f)
		report.Diagnostics = append(report.Diagnostics, Diagnostic{
			Row:    -1,
			Column: -1,
			Field:  f,
			Kind:   KindDroppedNAColumn,
			Reason: fmt.Sprintf("field %q has no value in any accepted row", f),
		})
	}
	if keep == nil {
		keep = []string{}
	}
	table.Fields = keep
}
