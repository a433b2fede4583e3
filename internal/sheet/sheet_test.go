package sheet

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
)

func TestCell_IsAbsent(t *testing.T) {
	tests := []struct {
		name string
		cell Cell
		want bool
	}{
		{"empty marker", Empty(), true},
		{"blank text", Text("   "), true},
		{"na token", Text(" N/A "), true},
		{"excel na", Text("#N/A"), true},
		{"text", Text("abc"), false},
		{"zero text", Text("0"), false},
		{"zero number", Number(0), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cell.IsAbsent())
		})
	}
}

func TestCell_JSON(t *testing.T) {
	var row []Cell
	require.NoError(t, json.Unmarshal([]byte(`["123", 99.5, null, true]`), &row))
	require.Len(t, row, 4)
	assert.Equal(t, Text("123"), row[0])
	assert.Equal(t, Number(99.5), row[1])
	assert.Equal(t, Empty(), row[2])
	assert.Equal(t, Text("true"), row[3])

	out, err := json.Marshal(row)
	require.NoError(t, err)
	assert.JSONEq(t, `["123", 99.5, null, "true"]`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`[{"a":1}]`), &row))
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "Unnamed: 3", PlaceholderName(3))
	assert.True(t, IsPlaceholder("Unnamed: 0"))
	assert.False(t, IsPlaceholder("Unnamed: "))
	assert.False(t, IsPlaceholder("Unnamed: x"))
	assert.False(t, IsPlaceholder("Цена"))

	g := Grid{
		Header: []string{"Артикул", "  ", "Цена"},
		Rows:   [][]Cell{{Text("1"), Text("2"), Text("3"), Text("4")}},
	}
	assert.Equal(t, 4, g.Width())
	assert.Equal(t, []string{"Артикул", "Unnamed: 1", "Цена", "Unnamed: 3"}, g.Headers())

	noHeader := Grid{Rows: [][]Cell{{Text("1"), Text("2")}}}
	assert.False(t, noHeader.HasHeader())
	assert.Equal(t, []string{"Unnamed: 0", "Unnamed: 1"}, noHeader.Headers())
	assert.Equal(t, Empty(), noHeader.Cell(0, 5))
	assert.Equal(t, Empty(), noHeader.Cell(3, 0))
}

func TestFromRecords_HeaderRow(t *testing.T) {
	records := [][]string{
		{"Прайс на октябрь"},
		{"Артикул", "Цена"},
		{"123", "99.50"},
		{"", "1"},
	}

	g := FromRecords(records, 1)
	assert.Equal(t, []string{"Артикул", "Цена"}, g.Header)
	require.Len(t, g.Rows, 2)
	assert.Equal(t, Text("123"), g.Rows[0][0])
	assert.Equal(t, Empty(), g.Rows[1][0])

	raw := FromRecords(records, -1)
	assert.False(t, raw.HasHeader())
	assert.Len(t, raw.Rows, 4)

	past := FromRecords(records, 10)
	assert.True(t, past.HasHeader())
	assert.Empty(t, past.Rows)
}

func TestReadCSV(t *testing.T) {
	t.Run("comma with BOM", func(t *testing.T) {
		g, err := ReadCSV(strings.NewReader("\ufeffArticle,Price\n1,2.5\n"), Options{})
		require.NoError(t, err)
		assert.Equal(t, []string{"Article", "Price"}, g.Header)
		assert.Equal(t, [][]Cell{{Text("1"), Text("2.5")}}, g.Rows)
	})

	t.Run("semicolon sniffed", func(t *testing.T) {
		g, err := ReadCSV(strings.NewReader("Артикул;Цена\n123;\"99,50\"\n"), Options{})
		require.NoError(t, err)
		assert.Equal(t, []string{"Артикул", "Цена"}, g.Header)
		assert.Equal(t, Text("99,50"), g.Rows[0][1])
	})

	t.Run("ragged rows", func(t *testing.T) {
		g, err := ReadCSV(strings.NewReader("a,b,c\n1\n1,2,3,4\n"), Options{})
		require.NoError(t, err)
		assert.Len(t, g.Rows[0], 1)
		assert.Len(t, g.Rows[1], 4)
		assert.Equal(t, 4, g.Width())
	})

	t.Run("no header", func(t *testing.T) {
		g, err := ReadCSV(strings.NewReader("1,2\n3,4\n"), Options{HeaderRow: -1})
		require.NoError(t, err)
		assert.False(t, g.HasHeader())
		assert.Len(t, g.Rows, 2)
	})

	t.Run("windows-1251 fallback", func(t *testing.T) {
		encoded, err := charmap.Windows1251.NewEncoder().String("Цена;Артикул\n10;20\n")
		require.NoError(t, err)
		g, err := ReadCSV(strings.NewReader(encoded), Options{})
		require.NoError(t, err)
		assert.Equal(t, []string{"Цена", "Артикул"}, g.Header)
	})

	t.Run("explicit encoding label", func(t *testing.T) {
		_, err := ReadCSV(strings.NewReader("a\n"), Options{Encoding: "no-such-charset"})
		assert.True(t, errors.Is(err, ErrUnsupportedFormat))
	})

	t.Run("empty", func(t *testing.T) {
		_, err := ReadCSV(strings.NewReader("\ufeff  \n"), Options{})
		assert.True(t, errors.Is(err, ErrEmptyFile))
	})
}

func workbook(t *testing.T, rows [][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for r, row := range rows {
		for c, v := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue("Sheet1", cell, v))
		}
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestReadXLSX(t *testing.T) {
	data := workbook(t, [][]any{
		{"Артикул", "Цена", "Наименование"},
		{123, 99.5, "Болт"},
		{456, 1200},
	})

	g, err := Read(data, "price_JHT.xlsx", Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Артикул", "Цена", "Наименование"}, g.Header)
	require.Len(t, g.Rows, 2)
	assert.Equal(t, "123", g.Rows[0][0].String())
	assert.Equal(t, "99.5", g.Rows[0][1].String())
	assert.Equal(t, "Болт", g.Rows[0][2].String())
	assert.Equal(t, "1200", g.Rows[1][1].String())

	_, err = ReadXLSX(strings.NewReader("not a zip"), Options{})
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))

	_, err = ReadXLSX(strings.NewReader(string(data)), Options{Sheet: "Missing"})
	assert.Error(t, err)
}

func TestRead_Detection(t *testing.T) {
	g, err := Read([]byte("a,b\n1,2\n"), "upload.bin", Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, g.Header)

	_, err = Read([]byte{0x00, 0x01, 0x02, 0xff, 0x00}, "blob.bin", Options{})
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))

	_, err = Read([]byte("   "), "blank.csv", Options{})
	assert.True(t, errors.Is(err, ErrEmptyFile))
}
