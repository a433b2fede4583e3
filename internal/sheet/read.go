package sheet

// read.go turns uploaded bytes into a Grid.
//
// CSV text is decoded to UTF-8 before parsing: an explicit encoding label
// wins, valid UTF-8 is taken as is, and anything else is read as
// Windows-1251, which is what Russian-locale Excel writes for "CSV". A
// leading BOM is dropped and undecodable bytes become U+FFFD, so the CSV
// parser only ever sees clean UTF-8.

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var (
	// ErrEmptyFile is returned when an upload holds no rows at all.
	ErrEmptyFile = errors.New("empty file")

	// ErrUnsupportedFormat is returned for uploads that are neither CSV nor XLSX.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrInvalidCSV is returned when CSV text cannot be parsed.
	ErrInvalidCSV = errors.New("invalid csv")
)

const xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Options controls how raw bytes become a grid.
type Options struct {
	HeaderRow int    // Index of the header row; negative means no header
	Sheet     string // XLSX sheet name; first sheet when empty
	Comma     rune   // CSV delimiter; sniffed from the first line when zero
	Encoding  string // CSV encoding label (e.g. "windows-1251"); detected when empty
}

// Read detects the upload format from its content (falling back to the
// file extension) and parses it.
func Read(data []byte, filename string, opts Options) (Grid, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Grid{}, ErrEmptyFile
	}

	mtype := mimetype.Detect(data)
	ext := strings.ToLower(filepath.Ext(filename))

	switch {
	case mtype.Is(xlsxMIME):
		return ReadXLSX(bytes.NewReader(data), opts)
	case isText(mtype):
		return parseCSV(data, opts)
	case ext == ".xlsx" && mtype.Is("application/zip"):
		return ReadXLSX(bytes.NewReader(data), opts)
	case ext == ".csv" || ext == ".txt":
		return parseCSV(data, opts)
	default:
		return Grid{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, mtype.String())
	}
}

func isText(m *mimetype.MIME) bool {
	for ; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}

// ReadCSV parses delimited text from r.
func ReadCSV(r io.Reader, opts Options) (Grid, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Grid{}, fmt.Errorf("read csv: %w", err)
	}
	return parseCSV(data, opts)
}

func parseCSV(data []byte, opts Options) (Grid, error) {
	text, err := decodeText(data, opts.Encoding)
	if err != nil {
		return Grid{}, err
	}
	if len(bytes.TrimSpace(text)) == 0 {
		return Grid{}, ErrEmptyFile
	}

	reader := csv.NewReader(bytes.NewReader(text))
	reader.Comma = opts.Comma
	if reader.Comma == 0 {
		reader.Comma = sniffComma(text)
	}
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return Grid{}, fmt.Errorf("%w: %v", ErrInvalidCSV, err)
	}
	if len(records) == 0 {
		return Grid{}, ErrEmptyFile
	}
	return FromRecords(records, opts.HeaderRow), nil
}

// decodeText converts data to UTF-8 without a BOM.
func decodeText(data []byte, label string) ([]byte, error) {
	var enc encoding.Encoding
	switch {
	case label != "":
		e, err := htmlindex.Get(label)
		if err != nil {
			return nil, fmt.Errorf("%w: unknown text encoding %q", ErrUnsupportedFormat, label)
		}
		enc = e
	case utf8.Valid(data):
		enc = unicode.UTF8
	default:
		enc = charmap.Windows1251
	}

	out, _, err := transform.Bytes(unicode.BOMOverride(enc.NewDecoder()), data)
	if err != nil {
		return nil, fmt.Errorf("%w: decode text: %v", ErrInvalidCSV, err)
	}
	return out, nil
}

// sniffComma picks the most frequent of ';', ',' and tab on the first
// line, ignoring quoted sections. Comma wins ties.
func sniffComma(text []byte) rune {
	line := text
	if i := bytes.IndexByte(text, '\n'); i >= 0 {
		line = text[:i]
	}

	counts := map[rune]int{}
	inQuotes := false
	for _, r := range string(line) {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case !inQuotes && (r == ';' || r == ',' || r == '\t'):
			counts[r]++
		}
	}

	best := ','
	for _, r := range []rune{';', '\t'} {
		if counts[r] > counts[best] {
			best = r
		}
	}
	return best
}

// ReadXLSX reads one worksheet of an XLSX workbook. Cell values are taken
// raw (unformatted) so numbers keep full precision.
func ReadXLSX(r io.Reader, opts Options) (Grid, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return Grid{}, fmt.Errorf("%w: open workbook: %v", ErrUnsupportedFormat, err)
	}
	defer func() { _ = f.Close() }()

	name := opts.Sheet
	if name == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return Grid{}, ErrEmptyFile
		}
		name = sheets[0]
	}

	rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return Grid{}, fmt.Errorf("read sheet %q: %w", name, err)
	}
	if len(rows) == 0 {
		return Grid{}, ErrEmptyFile
	}
	return FromRecords(rows, opts.HeaderRow), nil
}
