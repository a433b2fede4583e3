// Package sheet defines the grid handed to the normalization engine and
// the readers that produce it from CSV and XLSX uploads.
//
// A Grid is deliberately dumb: a header row of raw strings (or none) and
// data rows of raw cells in source order. Everything about what the
// columns mean belongs to the profile and the normalize package.
package sheet

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// CellKind discriminates the raw cell variants.
type CellKind uint8

const (
	CellEmpty CellKind = iota
	CellText
	CellNumber
)

// Cell is one raw spreadsheet value: text, a number, or empty.
type Cell struct {
	Kind   CellKind
	Text   string
	Number float64
}

// Text returns a text cell.
func Text(s string) Cell { return Cell{Kind: CellText, Text: s} }

// Number returns a numeric cell.
func Number(f float64) Cell { return Cell{Kind: CellNumber, Number: f} }

// Empty returns the empty-marker cell.
func Empty() Cell { return Cell{} }

// naTokens are read as missing values, matching what spreadsheet tooling
// writes for blank numeric cells.
var naTokens = map[string]struct{}{
	"NA": {}, "N/A": {}, "n/a": {}, "#N/A": {}, "#NA": {}, "NaN": {}, "nan": {},
	"-NaN": {}, "NULL": {}, "null": {}, "<NA>": {}, "None": {},
}

// IsNA reports whether s, after trimming, is blank or an NA token.
func IsNA(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return true
	}
	_, ok := naTokens[s]
	return ok
}

// IsAbsent reports whether the cell carries no value.
func (c Cell) IsAbsent() bool {
	switch c.Kind {
	case CellText:
		return IsNA(c.Text)
	case CellNumber:
		return false
	default:
		return true
	}
}

// String renders the cell as it would appear in a text export.
func (c Cell) String() string {
	switch c.Kind {
	case CellText:
		return c.Text
	case CellNumber:
		return strconv.FormatFloat(c.Number, 'f', -1, 64)
	default:
		return ""
	}
}

// MarshalJSON writes text as a string, numbers as numbers, empty as null.
func (c Cell) MarshalJSON() ([]byte, error) {
	switch c.Kind {
	case CellText:
		return json.Marshal(c.Text)
	case CellNumber:
		return json.Marshal(c.Number)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts a string, a number, a boolean, or null.
func (c *Cell) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*c = Empty()
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = Text(s)
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*c = Text(strconv.FormatBool(b))
	default:
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			return fmt.Errorf("cell must be a string, number, boolean or null: %w", err)
		}
		*c = Number(f)
	}
	return nil
}

const placeholderPrefix = "Unnamed: "

// PlaceholderName is the synthetic header of column i (0-based) when the
// sheet has no real header in that slot.
func PlaceholderName(i int) string {
	return placeholderPrefix + strconv.Itoa(i)
}

// IsPlaceholder reports whether a header is a synthetic positional name.
func IsPlaceholder(h string) bool {
	rest, ok := strings.CutPrefix(h, placeholderPrefix)
	if !ok || rest == "" {
		return false
	}
	_, err := strconv.Atoi(rest)
	return err == nil
}

// Grid is a sheet's raw content: an optional header row plus data rows.
type Grid struct {
	Header []string `json:"header,omitempty"`
	Rows   [][]Cell `json:"rows"`
}

// HasHeader reports whether the sheet supplied a header row.
func (g Grid) HasHeader() bool {
	return g.Header != nil
}

// Width returns the number of columns, the longest of the header and rows.
func (g Grid) Width() int {
	w := len(g.Header)
	for _, row := range g.Rows {
		if len(row) > w {
			w = len(row)
		}
	}
	return w
}

// Headers returns exactly Width() header names. Blank or missing slots,
// and every slot of a header-less grid, get their placeholder name.
func (g Grid) Headers() []string {
	w := g.Width()
	out := make([]string, w)
	for i := 0; i < w; i++ {
		var h string
		if i < len(g.Header) {
			h = strings.TrimSpace(g.Header[i])
		}
		if h == "" {
			h = PlaceholderName(i)
		}
		out[i] = h
	}
	return out
}

// Cell returns the cell at (row, col), or Empty when out of range.
func (g Grid) Cell(row, col int) Cell {
	if row < 0 || row >= len(g.Rows) {
		return Empty()
	}
	r := g.Rows[row]
	if col < 0 || col >= len(r) {
		return Empty()
	}
	return r[col]
}

// FromRecords builds a grid from string records. Rows before headerRow
// are discarded; a negative headerRow means every record is data.
func FromRecords(records [][]string, headerRow int) Grid {
	g := Grid{}
	start := 0
	if headerRow >= 0 {
		if headerRow >= len(records) {
			return Grid{Header: []string{}, Rows: [][]Cell{}}
		}
		g.Header = append([]string{}, records[headerRow]...)
		start = headerRow + 1
	}

	g.Rows = make([][]Cell, 0, len(records)-start)
	for _, rec := range records[start:] {
		row := make([]Cell, len(rec))
		for i, v := range rec {
			if v == "" {
				row[i] = Empty()
			} else {
				row[i] = Text(v)
			}
		}
		g.Rows = append(g.Rows, row)
	}
	return g
}
