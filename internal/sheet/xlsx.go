package sheet

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/JonMunkholm/sheetclean/internal/core"
	"github.com/xuri/excelize/v2"
)

const outputColumnWidth = 24

// readXLSX reads one worksheet of a workbook. Cells keep their stored type:
// string cells become Text, numeric cells become Number, blanks and error
// values (#N/A, #REF!) become Missing.
func readXLSX(data []byte, sheet string) ([]string, [][]core.Cell, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, nil, errors.New("workbook has no sheets")
		}
		sheet = sheets[0]
	}

	raw, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(raw) == 0 {
		return nil, nil, nil
	}

	width := 0
	for _, r := range raw {
		width = max(width, len(r))
	}
	header := normalizeHeader(raw[0], width)

	body := dataRows(raw)
	rows := make([][]core.Cell, 0, len(body))
	for i, r := range body {
		cells := make([]core.Cell, len(header))
		for j, v := range r {
			if v == "" {
				continue
			}
			// Data rows start on sheet row 2.
			ref, err := excelize.CoordinatesToCellName(j+1, i+2)
			if err != nil {
				return nil, nil, err
			}
			typ, err := f.GetCellType(sheet, ref)
			if err != nil {
				return nil, nil, fmt.Errorf("cell %s: %w", ref, err)
			}
			cells[j] = toCell(typ, v)
		}
		rows = append(rows, cells)
	}

	return header, rows, nil
}

func toCell(typ excelize.CellType, v string) core.Cell {
	switch typ {
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString, excelize.CellTypeFormula:
		return core.Text(v)
	case excelize.CellTypeError:
		return core.Missing()
	case excelize.CellTypeBool:
		switch v {
		case "1":
			return core.Text("TRUE")
		case "0":
			return core.Text("FALSE")
		}
		return core.Text(v)
	}

	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return core.Text(v)
	}
	return core.Number(f)
}

// writeXLSX streams t into a new workbook. Both columns are written as string
// cells so contact numbers keep their leading zeros.
func writeXLSX(t core.CleanedTable) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	sw, err := f.NewStreamWriter(SheetName)
	if err != nil {
		return nil, fmt.Errorf("stream writer: %w", err)
	}
	if err := sw.SetColWidth(1, len(OutputHeader), outputColumnWidth); err != nil {
		return nil, fmt.Errorf("column width: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}
	header := make([]interface{}, len(OutputHeader))
	for i, h := range OutputHeader {
		header[i] = h
	}
	if err := sw.SetRow("A1", header, excelize.RowOpts{StyleID: bold}); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	for i, r := range t.Rows {
		ref, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := sw.SetRow(ref, []interface{}{r.Name, r.Contacts}); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return nil, fmt.Errorf("flush sheet: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
