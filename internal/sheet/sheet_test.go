package sheet

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/JonMunkholm/sheetclean/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// workbook builds an in-memory .xlsx whose first sheet holds rows.
func workbook(t *testing.T, rows [][]interface{}) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	for i, row := range rows {
		ref, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", ref, &row))
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestDecode_XLSXCellTypes(t *testing.T) {
	data := workbook(t, [][]interface{}{
		{"Name", "Phone"},
		{"Alice", 9998887776},
		{"Bob", "+1 555-123-4567"},
		{"Carol", 12.5},
	})

	table, err := Decode("contacts.xlsx", data)
	require.NoError(t, err)

	assert.Equal(t, "contacts.xlsx", table.Source)
	assert.Equal(t, []string{"Name", "Phone"}, table.Columns)
	require.Len(t, table.Rows, 3)

	assert.Equal(t, core.KindText, table.Rows[0][0].Kind())
	assert.Equal(t, core.KindNumber, table.Rows[0][1].Kind())
	assert.Equal(t, "9998887776", table.Rows[0][1].String())

	assert.Equal(t, core.KindText, table.Rows[1][1].Kind())
	assert.Equal(t, "+1 555-123-4567", table.Rows[1][1].String())

	assert.Equal(t, core.KindNumber, table.Rows[2][1].Kind())
	assert.Equal(t, "12.5", table.Rows[2][1].String())
}

func TestDecode_XLSXBlanks(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	require.NoError(t, f.SetCellValue("Sheet1", "A1", "Name"))
	require.NoError(t, f.SetCellValue("Sheet1", "B1", "Phone"))
	require.NoError(t, f.SetCellValue("Sheet1", "A2", "Alice"))
	// Row 3 left entirely blank.
	require.NoError(t, f.SetCellValue("Sheet1", "B4", "5550100"))

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	table, err := Decode("blanks.xlsx", buf.Bytes())
	require.NoError(t, err)

	require.Len(t, table.Rows, 3)
	assert.Equal(t, "Alice", table.Rows[0][0].String())
	assert.True(t, table.Rows[0][1].IsMissing())
	assert.True(t, table.Rows[1][0].IsMissing(), "interior blank row is kept")
	assert.True(t, table.Rows[1][1].IsMissing())
	assert.True(t, table.Rows[2][0].IsMissing())
	assert.Equal(t, "5550100", table.Rows[2][1].String())
}

func TestDecode_XLSXHeaderOnly(t *testing.T) {
	data := workbook(t, [][]interface{}{{"Name", "Mobile"}})

	table, err := Decode("header.xlsx", data)
	require.NoError(t, err)
	assert.Equal(t, []string{"Name", "Mobile"}, table.Columns)
	assert.Empty(t, table.Rows)
}

func TestDecode_SelectSheet(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	_, err := f.NewSheet("Leads")
	require.NoError(t, err)
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "Ignored"))
	require.NoError(t, f.SetCellValue("Leads", "A1", "Contact"))
	require.NoError(t, f.SetCellValue("Leads", "A2", "555"))

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	table, err := Codec{Sheet: "Leads"}.Decode("leads.xlsx", buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, []string{"Contact"}, table.Columns)
	require.Len(t, table.Rows, 1)
}

func TestEncode_RoundTrip(t *testing.T) {
	cleaned := core.CleanedTable{Rows: []core.CleanedRow{
		{Name: "Alice", Contacts: "5551234567"},
		{Name: "Bob", Contacts: "0123456789"},
		{Name: "", Contacts: ""},
		{Name: "Carol", Contacts: "12"},
	}}

	data, err := Encode(cleaned)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, []string{SheetName}, f.GetSheetList())
	require.NoError(t, f.Close())

	table, err := Decode("out.xlsx", data)
	require.NoError(t, err)

	assert.Equal(t, OutputHeader, table.Columns)
	require.Len(t, table.Rows, len(cleaned.Rows))
	for i, want := range cleaned.Rows {
		if want.Contacts != "" {
			assert.Equal(t, core.KindText, table.Rows[i][1].Kind(), "row %d contacts kind", i)
		}
		assert.NotEqual(t, core.KindNumber, table.Rows[i][1].Kind(), "row %d contacts read back as a number", i)
		assert.Equal(t, want.Name, table.Rows[i][0].String())
		assert.Equal(t, want.Contacts, table.Rows[i][1].String())
	}
}

func TestEncode_EmptyTable(t *testing.T) {
	data, err := Encode(core.CleanedTable{})
	require.NoError(t, err)

	table, err := Decode("empty.xlsx", data)
	require.NoError(t, err)
	assert.Equal(t, OutputHeader, table.Columns)
	assert.Empty(t, table.Rows)
}

func TestDecode_CSV(t *testing.T) {
	data := []byte("\xEF\xBB\xBFName,Phone\r\nAlice,123-456-7890\r\n,\r\nBob,\r\n,\r\n")

	table, err := Decode("export.csv", data)
	require.NoError(t, err)

	assert.Equal(t, []string{"Name", "Phone"}, table.Columns)
	require.Len(t, table.Rows, 3, "trailing blank row dropped, interior one kept")
	assert.Equal(t, "123-456-7890", table.Rows[0][1].String())
	assert.True(t, table.Rows[1][0].IsMissing())
	assert.Equal(t, "Bob", table.Rows[2][0].String())
	assert.True(t, table.Rows[2][1].IsMissing())
}

func TestDecode_CSVWindows1252(t *testing.T) {
	// "José" with é encoded as 0xE9.
	data := []byte("Name,Phone\nJos\xE9,5550100\n")

	table, err := Decode("legacy.csv", data)
	require.NoError(t, err)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, "José", table.Rows[0][0].String())
}

func TestDecode_Unreadable(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		data    []byte
		wantErr error
	}{
		{"empty", "a.xlsx", nil, ErrEmptyFile},
		{"text named xlsx", "b.xlsx", []byte("this is not a workbook"), ErrUnsupportedType},
		{"png", "c.xlsx", []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), ErrUnsupportedType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.file, tt.data)

			var unreadable *UnreadableFileError
			require.True(t, errors.As(err, &unreadable), "got %v", err)
			assert.Equal(t, tt.file, unreadable.File)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Contains(t, err.Error(), "unreadable file")
		})
	}
}

func TestNormalizeHeader(t *testing.T) {
	got := normalizeHeader([]string{" Name ", "", "Phone", "Phone", "Name", "Phone"}, 7)
	assert.Equal(t, []string{
		"Name", "Unnamed: 1", "Phone", "Phone.1", "Name.1", "Phone.2", "Unnamed: 6",
	}, got)
}

func TestNormalizeHeader_SuffixCollision(t *testing.T) {
	got := normalizeHeader([]string{"A", "A.1", "A"}, 3)
	assert.Equal(t, []string{"A", "A.1", "A.2"}, got)
}

func TestNormalizeHeader_Unicode(t *testing.T) {
	// Decomposed "é" (e + U+0301) merges with the precomposed form.
	got := normalizeHeader([]string{"Te\u0301le\u0301phone"}, 1)
	assert.Equal(t, []string{"T\u00e9l\u00e9phone"}, got)
}

func TestFilename(t *testing.T) {
	now := time.Date(2024, 1, 31, 15, 45, 0, 0, time.UTC)
	assert.Equal(t, "cleanedData_20240131_154500.xlsx", Filename(now))
}
