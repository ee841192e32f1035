package sheet

import (
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// normalizeHeader builds the column names for a sheet of the given width.
//
// Names are trimmed and NFC-normalized so that the same heading typed on
// different systems merges into one column. Blank headings become
// "Unnamed: <index>" and repeated headings get a ".<n>" suffix, in the order
// they appear.
func normalizeHeader(raw []string, width int) []string {
	if len(raw) > width {
		width = len(raw)
	}

	out := make([]string, width)
	seen := make(map[string]int, width)
	taken := make(map[string]bool, width)

	for i := 0; i < width; i++ {
		name := ""
		if i < len(raw) {
			name = norm.NFC.String(strings.TrimSpace(raw[i]))
		}
		if name == "" {
			name = "Unnamed: " + strconv.Itoa(i)
		}

		base := name
		for taken[name] {
			seen[base]++
			name = base + "." + strconv.Itoa(seen[base])
		}
		taken[name] = true
		out[i] = name
	}

	return out
}

// dataRows returns the rows after the header, dropping blank rows at the end
// of the sheet. Blank rows between data rows are kept so that row positions
// survive a write and re-read.
func dataRows(records [][]string) [][]string {
	last := 0
	for i := len(records) - 1; i > 0; i-- {
		if !isEmptyRow(records[i]) {
			last = i
			break
		}
	}
	if last == 0 {
		return nil
	}
	return records[1 : last+1]
}

// isEmptyRow reports whether every value in row is blank.
func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
