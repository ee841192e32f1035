package sheet

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/JonMunkholm/sheetclean/internal/core"
	"golang.org/x/text/encoding/charmap"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// readCSV reads comma-separated text. Every non-empty field is Text; CSV
// carries no type information to recover numbers from.
func readCSV(data []byte) ([]string, [][]core.Cell, error) {
	data = bytes.TrimPrefix(data, utf8BOM)

	r := csv.NewReader(strings.NewReader(decodeText(data)))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil, nil
	}

	width := 0
	for _, rec := range records {
		width = max(width, len(rec))
	}
	header := normalizeHeader(records[0], width)

	body := dataRows(records)
	rows := make([][]core.Cell, 0, len(body))
	for _, rec := range body {
		cells := make([]core.Cell, len(header))
		for j, v := range rec {
			if v != "" {
				cells[j] = core.Text(v)
			}
		}
		rows = append(rows, cells)
	}

	return header, rows, nil
}

// decodeText returns data as UTF-8. Files that are not valid UTF-8 are
// assumed to be Windows-1252, the default "CSV" encoding of Excel on Windows.
func decodeText(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	out, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return strings.ToValidUTF8(string(data), "\uFFFD")
	}
	return string(out)
}
