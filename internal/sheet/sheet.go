// Package sheet converts uploaded spreadsheet bytes to and from core tables.
//
// Decoding accepts .xlsx workbooks (read with excelize) and CSV text. The
// first row of the chosen worksheet is the header. Encoding always produces a
// single-sheet .xlsx workbook named CleanedData with a Name and Contacts
// header.
package sheet

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/JonMunkholm/sheetclean/internal/core"
	"github.com/gabriel-vasile/mimetype"
)

const (
	// SheetName is the worksheet written by Encode.
	SheetName = "CleanedData"

	// ContentType is the MIME type of encoded workbooks.
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	// FilenamePrefix starts every exported workbook name.
	FilenamePrefix = "cleanedData_"

	filenameLayout = "20060102_150405"
)

// Output column headers, in order.
var OutputHeader = []string{"Name", "Contacts"}

var (
	// ErrUnsupportedType is wrapped when content is neither xlsx nor CSV.
	ErrUnsupportedType = errors.New("unsupported file type")

	// ErrEmptyFile is wrapped when an upload has no bytes.
	ErrEmptyFile = errors.New("empty file")
)

// UnreadableFileError reports an input that could not be parsed as a
// spreadsheet. File is the name the user uploaded.
type UnreadableFileError struct {
	File string
	Err  error
}

func (e *UnreadableFileError) Error() string {
	return fmt.Sprintf("unreadable file %q: %v", e.File, e.Err)
}

func (e *UnreadableFileError) Unwrap() error { return e.Err }

// Codec reads and writes spreadsheets.
type Codec struct {
	// Sheet selects the worksheet to read from workbooks. Empty means the
	// first sheet.
	Sheet string
}

// Decode parses one uploaded file. name is used for error messages, for the
// table's Source, and as a format hint when content sniffing is ambiguous.
func (c Codec) Decode(name string, data []byte) (core.RawTable, error) {
	if len(data) == 0 {
		return core.RawTable{}, &UnreadableFileError{File: name, Err: ErrEmptyFile}
	}

	var (
		header []string
		rows   [][]core.Cell
		err    error
	)

	switch detectFormat(name, data) {
	case formatXLSX:
		header, rows, err = readXLSX(data, c.Sheet)
	case formatCSV:
		header, rows, err = readCSV(data)
	default:
		err = fmt.Errorf("%w %s", ErrUnsupportedType, mimetype.Detect(data).String())
	}
	if err != nil {
		return core.RawTable{}, &UnreadableFileError{File: name, Err: err}
	}

	return core.RawTable{Source: name, Columns: header, Rows: rows}, nil
}

// Encode writes t as a workbook with a single CleanedData sheet.
func (c Codec) Encode(t core.CleanedTable) ([]byte, error) {
	return writeXLSX(t)
}

// Decode parses data with the default Codec.
func Decode(name string, data []byte) (core.RawTable, error) {
	return Codec{}.Decode(name, data)
}

// Encode writes t with the default Codec.
func Encode(t core.CleanedTable) ([]byte, error) {
	return Codec{}.Encode(t)
}

// Filename returns the export name for a workbook produced at now,
// e.g. cleanedData_20240131_154500.xlsx.
func Filename(now time.Time) string {
	return FilenamePrefix + now.Format(filenameLayout) + ".xlsx"
}

type format int

const (
	formatUnknown format = iota
	formatXLSX
	formatCSV
)

const zipMIME = "application/zip"

// detectFormat sniffs the content first and falls back on the extension only
// where the content is a compatible container (zip for .xlsx, text for .csv).
func detectFormat(name string, data []byte) format {
	mtype := mimetype.Detect(data)
	ext := strings.ToLower(filepath.Ext(name))

	switch {
	case mtype.Is(ContentType):
		return formatXLSX
	case mtype.Is(zipMIME) && ext == ".xlsx":
		return formatXLSX
	case mtype.Is("text/csv"):
		return formatCSV
	case isText(mtype) && ext == ".csv":
		return formatCSV
	}
	return formatUnknown
}

func isText(m *mimetype.MIME) bool {
	for ; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}
