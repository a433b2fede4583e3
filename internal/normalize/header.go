package normalize

import (
	"fmt"

	"github.com/JonMunkholm/sheetnorm/internal/profile"
	"github.com/JonMunkholm/sheetnorm/internal/sheet"
)

// HeaderStatus is the outcome of resolving one column position.
type HeaderStatus uint8

const (
	StatusUnresolved HeaderStatus = iota
	StatusMapped
	StatusIgnored
)

func (s HeaderStatus) String() string {
	switch s {
	case StatusMapped:
		return "mapped"
	case StatusIgnored:
		return "ignored"
	default:
		return "unresolved"
	}
}

// MarshalText writes the status name.
func (s HeaderStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ResolvedHeader is the resolution of one column position.
type ResolvedHeader struct {
	Position int               `json:"position"`
	Header   string            `json:"header"`
	Status   HeaderStatus      `json:"status"`
	Field    string            `json:"field,omitempty"`
	Type     profile.FieldType `json:"type,omitempty"`
	Detected bool              `json:"detected,omitempty"`
}

// Plan is the resolved column layout of one grid under one profile.
type Plan struct {
	Headers []ResolvedHeader

	// Fields lists the output fields in order of first appearance.
	Fields []string

	// mapped holds the mapped columns left to right; a later column mapped
	// to the same field overwrites an earlier one.
	mapped []ResolvedHeader

	// winner is the position whose value a field ends up with.
	winner map[string]int
}

// Position returns the source column a field's value comes from.
func (p *Plan) Position(field string) (int, bool) {
	pos, ok := p.winner[field]
	return pos, ok
}

// Mapped returns the mapped columns in position order.
func (p *Plan) Mapped() []ResolvedHeader {
	return append([]ResolvedHeader(nil), p.mapped...)
}

// Unresolved returns the columns that will be dropped.
func (p *Plan) Unresolved() []ResolvedHeader {
	var out []ResolvedHeader
	for _, h := range p.Headers {
		if h.Status == StatusUnresolved {
			out = append(out, h)
		}
	}
	return out
}

// Overwritten returns, for each field fed by more than one column, the
// positions feeding it in order. The last position wins.
func (p *Plan) Overwritten() map[string][]int {
	positions := make(map[string][]int)
	for _, h := range p.mapped {
		positions[h.Field] = append(positions[h.Field], h.Position)
	}
	for f, pos := range positions {
		if len(pos) < 2 {
			delete(positions, f)
		}
	}
	return positions
}

// Resolver turns a grid's header row into a Plan.
type Resolver struct {
	detectors []Detector
}

// NewResolver returns a resolver that consults detectors, in order, for
// placeholder headers of profiles with auto-detection enabled. With no
// detectors it uses FirstCellDetector.
func NewResolver(detectors ...Detector) *Resolver {
	if len(detectors) == 0 {
		detectors = []Detector{FirstCellDetector{}}
	}
	return &Resolver{detectors: detectors}
}

// Resolve resolves every column position of g under p. Each position is
// checked against the ignore list (by header and by positional name), then
// the column mapping, then, for placeholder headers only, the detectors.
func (r *Resolver) Resolve(g sheet.Grid, p *profile.Profile) *Plan {
	headers := g.Headers()
	plan := &Plan{
		Headers: make([]ResolvedHeader, len(headers)),
		winner:  make(map[string]int),
	}
	seen := make(map[string]struct{})

	for i, raw := range headers {
		h := ResolvedHeader{Position: i, Header: profile.NormalizeHeader(raw)}

		switch {
		case p.Ignored(h.Header) || p.Ignored(sheet.PlaceholderName(i)):
			h.Status = StatusIgnored
		default:
			if field, ok := p.Canonical(h.Header); ok {
				h.Status = StatusMapped
				h.Field = field
				h.Type = p.TypeOf(field)
			} else if p.Settings.AutoDetectHeaders && sheet.IsPlaceholder(h.Header) {
				r.detect(g, p, &h)
			}
		}

		plan.Headers[i] = h
		if h.Status != StatusMapped {
			continue
		}
		plan.mapped = append(plan.mapped, h)
		plan.winner[h.Field] = i
		if _, ok := seen[h.Field]; !ok {
			seen[h.Field] = struct{}{}
			plan.Fields = append(plan.Fields, h.Field)
		}
	}
	return plan
}

func (r *Resolver) detect(g sheet.Grid, p *profile.Profile, h *ResolvedHeader) {
	col := Column{Position: h.Position, Header: h.Header, grid: g}
	for _, d := range r.detectors {
		field, t, ok := d.Detect(col, p)
		if !ok {
			continue
		}
		h.Status = StatusMapped
		h.Field = field
		h.Type = t
		h.Detected = true
		return
	}
}

// Column is a read-only view of one grid column handed to detectors.
type Column struct {
	Position int
	Header   string
	grid     sheet.Grid
}

// Len returns the number of data rows.
func (c Column) Len() int { return len(c.grid.Rows) }

// Cell returns the cell of data row i.
func (c Column) Cell(i int) sheet.Cell { return c.grid.Cell(i, c.Position) }

// FirstValue returns the first non-absent cell of the column.
func (c Column) FirstValue() (sheet.Cell, bool) {
	for i := range c.grid.Rows {
		if cell := c.Cell(i); !cell.IsAbsent() {
			return cell, true
		}
	}
	return sheet.Empty(), false
}

// Detector infers a canonical field and type for a placeholder column.
type Detector interface {
	Detect(col Column, p *profile.Profile) (field string, t profile.FieldType, ok bool)
}

// DetectorFunc adapts a function to Detector.
type DetectorFunc func(col Column, p *profile.Profile) (string, profile.FieldType, bool)

func (f DetectorFunc) Detect(col Column, p *profile.Profile) (string, profile.FieldType, bool) {
	return f(col, p)
}

// FirstCellDetector types a placeholder column by its first non-empty
// value: numeric text becomes "numeric_<pos>" with the profile's price type
// (float unless "price" is declared int), anything else "string_<pos>".
// Columns with no values are left unresolved.
type FirstCellDetector struct{}

func (FirstCellDetector) Detect(col Column, p *profile.Profile) (string, profile.FieldType, bool) {
	cell, ok := col.FirstValue()
	if !ok {
		return "", "", false
	}

	numeric := profile.TypeFloat
	if t, ok := p.DataTypes["price"]; ok && t.Numeric() {
		numeric = t
	}
	if _, err := Coerce(cell, numeric); err == nil {
		return fmt.Sprintf("numeric_%d", col.Position), numeric, true
	}
	return fmt.Sprintf("string_%d", col.Position), profile.TypeString, true
}
