package core

// Clean projects every merged row to a CleanedRow.
//
// Name is the trimmed text of the name column; Contacts is the normalized
// contact column. Output order and length match the merged table. Rows with
// empty names or contacts are kept. An unknown column yields a
// *ColumnNotFoundError, and the name column is checked first.
func Clean(merged MergedTable, nameCol, contactCol string) (CleanedTable, error) {
	nameIdx, err := lookupColumn(merged, nameCol)
	if err != nil {
		return CleanedTable{}, err
	}
	contactIdx, err := lookupColumn(merged, contactCol)
	if err != nil {
		return CleanedTable{}, err
	}

	rows := make([]CleanedRow, len(merged.Rows))
	for i, row := range merged.Rows {
		rows[i] = CleanedRow{
			Name:     NormalizeName(cellAt(row, nameIdx)),
			Contacts: NormalizeContact(cellAt(row, contactIdx)),
		}
	}

	return CleanedTable{Rows: rows}, nil
}

// CheckColumns returns a *ColumnNotFoundError for the first of names that is
// not a column of merged.
func CheckColumns(merged MergedTable, names ...string) error {
	for _, name := range names {
		if _, err := lookupColumn(merged, name); err != nil {
			return err
		}
	}
	return nil
}

func lookupColumn(merged MergedTable, name string) (int, error) {
	idx := merged.ColumnIndex(name)
	if idx < 0 {
		available := make([]string, len(merged.Columns))
		copy(available, merged.Columns)
		return -1, &ColumnNotFoundError{Column: name, Available: available}
	}
	return idx, nil
}

func cellAt(row []Cell, i int) Cell {
	if i < len(row) {
		return row[i]
	}
	return Missing()
}
