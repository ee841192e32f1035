package core

// RawTable is one input file after decoding. Rows are positionally aligned to
// Columns; a short row reads as Missing for the trailing columns.
type RawTable struct {
	Source  string
	Columns []string
	Rows    [][]Cell
}

// MergedTable is the row-wise concatenation of every RawTable of one run.
// Columns is the union of all input columns in first-seen order, and every
// row has exactly len(Columns) cells.
type MergedTable struct {
	Columns []string
	Rows    [][]Cell
}

// CleanedRow is the projection of one merged row.
type CleanedRow struct {
	Name     string `json:"name"`
	Contacts string `json:"contacts"`
}

// CleanedTable holds one CleanedRow per merged row, in merged order.
type CleanedTable struct {
	Rows []CleanedRow
}

// Len returns the number of rows.
func (t MergedTable) Len() int { return len(t.Rows) }

// Len returns the number of rows.
func (t CleanedTable) Len() int { return len(t.Rows) }

// ColumnIndex returns the position of name in t.Columns, or -1.
func (t MergedTable) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}
