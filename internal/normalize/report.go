package normalize

import (
	"time"
)

// DiagnosticKind classifies a diagnostic.
type DiagnosticKind string

const (
	KindDroppedUnresolved DiagnosticKind = "dropped-unresolved"
	KindOverwritten       DiagnosticKind = "overwritten"
	KindCoercionFailure   DiagnosticKind = "coercion-failure"
	KindMissingRequired   DiagnosticKind = "missing-required"
	KindOutOfRange        DiagnosticKind = "out-of-range"
	KindDroppedNAColumn   DiagnosticKind = "dropped-na-column"
	KindSkippedEmpty      DiagnosticKind = "skipped-empty"
	KindFiltered          DiagnosticKind = "filtered"
)

// Diagnostic is one entry of a run report. Row is the 0-based data row
// index, or -1 for column-level entries; Column is the 0-based source
// position, or -1 when the entry is not about a single column.
type Diagnostic struct {
	Row    int            `json:"row"`
	Column int            `json:"column"`
	Field  string         `json:"field,omitempty"`
	Kind   DiagnosticKind `json:"kind"`
	Reason string         `json:"reason"`
}

// Class is the final disposition of a data row.
type Class uint8

const (
	Accepted Class = iota
	AcceptedWithWarnings
	Rejected
	Skipped
)

func (c Class) String() string {
	switch c {
	case Accepted:
		return "accepted"
	case AcceptedWithWarnings:
		return "accepted-with-warnings"
	case Rejected:
		return "rejected"
	default:
		return "skipped"
	}
}

// MarshalText writes the class name.
func (c Class) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Report summarizes one normalization run.
type Report struct {
	RunID        string           `json:"runId"`
	Profile      string           `json:"profile"`
	StartedAt    time.Time        `json:"startedAt"`
	Duration     time.Duration    `json:"-"`
	DurationMs   int64            `json:"durationMs"`
	RowsRead     int              `json:"rowsRead"`
	RowsSkipped  int              `json:"rowsSkipped"`
	RowsFiltered int              `json:"rowsFiltered"` // Subset of RowsSkipped dropped by row filters
	RowsAccepted int              `json:"rowsAccepted"`
	RowsWarned   int              `json:"rowsWarned"`
	RowsRejected int              `json:"rowsRejected"`
	Columns      []ResolvedHeader `json:"columns"`
	Dropped      []string         `json:"droppedColumns,omitempty"`
	Diagnostics  []Diagnostic     `json:"diagnostics"`
}

// RowDiagnostics returns the diagnostics of data row i.
func (r *Report) RowDiagnostics(i int) []Diagnostic {
	var out []Diagnostic
	for _, d := range r.Diagnostics {
		if d.Row == i {
			out = append(out, d)
		}
	}
	return out
}

// CountKind returns the number of diagnostics of kind k.
func (r *Report) CountKind(k DiagnosticKind) int {
	n := 0
	for _, d := range r.Diagnostics {
		if d.Kind == k {
			n++
		}
	}
	return n
}

// Row is one accepted output row.
type Row struct {
	Index  int     `json:"index"` // source data row
	Class  Class   `json:"class"`
	Record *Record `json:"record"`
}

// Table holds the accepted rows of a run in source order.
type Table struct {
	Fields []string `json:"fields"`
	Rows   []Row    `json:"rows"`
}

// Len returns the number of accepted rows.
func (t *Table) Len() int { return len(t.Rows) }

// Column returns the values of field in row order.
func (t *Table) Column(field string) []Value {
	out := make([]Value, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r.Record.Value(field)
	}
	return out
}
