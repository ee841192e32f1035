package core

// Merge concatenates tables row-wise in input order.
//
// The merged column set is the union of all input columns, ordered by first
// appearance. Cells for columns a table does not have are Missing. Rows are
// never reordered, deduplicated or dropped. Tables with no rows still
// contribute their columns. Merge returns ErrEmptyInput when called with no
// tables at all.
func Merge(tables ...RawTable) (MergedTable, error) {
	if len(tables) == 0 {
		return MergedTable{}, ErrEmptyInput
	}

	var columns []string
	index := make(map[string]int)
	total := 0
	for _, t := range tables {
		for _, c := range t.Columns {
			if _, ok := index[c]; ok {
				continue
			}
			index[c] = len(columns)
			columns = append(columns, c)
		}
		total += len(t.Rows)
	}

	rows := make([][]Cell, 0, total)
	for _, t := range tables {
		// Position of each source column in the merged layout.
		positions := make([]int, len(t.Columns))
		for i, c := range t.Columns {
			positions[i] = index[c]
		}

		for _, src := range t.Rows {
			row := make([]Cell, len(columns))
			for i, cell := range src {
				if i >= len(positions) {
					break
				}
				row[positions[i]] = cell
			}
			rows = append(rows, row)
		}
	}

	return MergedTable{Columns: columns, Rows: rows}, nil
}
