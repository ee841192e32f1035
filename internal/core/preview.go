package core

// Preview row counts shown after each pipeline step.
const (
	DefaultMergedPreviewRows  = 10
	DefaultCleanedPreviewRows = 20
)

// Preview is a rendered slice of the first rows of a merged table.
type Preview struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
	Total   int        `json:"total"`
}

// Head renders at most n leading rows as text. n <= 0 yields no rows.
func (t MergedTable) Head(n int) Preview {
	n = clampHead(n, len(t.Rows))
	rows := make([][]string, n)
	for i := 0; i < n; i++ {
		out := make([]string, len(t.Columns))
		for j := range t.Columns {
			out[j] = cellAt(t.Rows[i], j).String()
		}
		rows[i] = out
	}
	return Preview{Columns: t.Columns, Rows: rows, Total: len(t.Rows)}
}

// Head returns at most n leading rows.
func (t CleanedTable) Head(n int) []CleanedRow {
	n = clampHead(n, len(t.Rows))
	out := make([]CleanedRow, n)
	copy(out, t.Rows[:n])
	return out
}

// CleanStats summarizes the contact column of a cleaned table.
type CleanStats struct {
	Rows  int `json:"rows"`
	Full  int `json:"full"`  // exactly ContactDigits digits
	Short int `json:"short"` // some digits, fewer than ContactDigits
	Empty int `json:"empty"` // no digits at all
}

// Stats counts contacts by completeness.
func (t CleanedTable) Stats() CleanStats {
	s := CleanStats{Rows: len(t.Rows)}
	for _, r := range t.Rows {
		switch n := len(r.Contacts); {
		case n == 0:
			s.Empty++
		case n < ContactDigits:
			s.Short++
		default:
			s.Full++
		}
	}
	return s
}

func clampHead(n, total int) int {
	if n <= 0 {
		return 0
	}
	if n > total {
		return total
	}
	return n
}
