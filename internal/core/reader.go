package core

// reader.go turns an uploaded spreadsheet into a Table.
//
// Workbooks (.xlsx) are read from their first sheet with excelize; the first
// non-empty row is the header. Cell types are taken from the workbook: shared
// and inline strings stay text, booleans become Bool, numbers become Number
// unless the cell carries a date number format, in which case they become
// Time. CSV files are read with encoding/csv and each column is numeric when
// every non-empty cell in it parses as a number.

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// ErrEmptyFile is returned when an upload has no header row.
var ErrEmptyFile = errors.New("empty file: no header row found")

// Format identifies a spreadsheet encoding.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

// DetectFormat picks the format from a file name. Anything that is not
// .csv is treated as a workbook.
func DetectFormat(name string) Format {
	if strings.EqualFold(filepath.Ext(name), ".csv") {
		return FormatCSV
	}
	return FormatXLSX
}

// ReadTable parses an upload into a Table using the format implied by name.
func ReadTable(name string, r io.Reader) (*Table, error) {
	switch DetectFormat(name) {
	case FormatCSV:
		return ReadCSV(r)
	default:
		return ReadXLSX(r)
	}
}

// ReadXLSX parses the first sheet of a workbook.
func ReadXLSX(r io.Reader) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	sr := &sheetReader{f: f, sheet: sheets[0], dateStyles: make(map[int]bool)}
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		sr.date1904 = *props.Date1904
	}
	return sr.read()
}

type sheetReader struct {
	f          *excelize.File
	sheet      string
	date1904   bool
	dateStyles map[int]bool
}

func (sr *sheetReader) read() (*Table, error) {
	rows, err := sr.f.Rows(sr.sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sr.sheet, err)
	}
	defer rows.Close()

	var (
		header []string
		body   [][]Value
		rowNum int
	)

	for rows.Next() {
		rowNum++
		raw, err := rows.Columns(excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", rowNum, err)
		}
		if isBlankRow(raw) {
			continue
		}

		if header == nil {
			header = raw
			continue
		}

		values := make([]Value, len(raw))
		for i, cell := range raw {
			v, err := sr.cell(i+1, rowNum, cell)
			if err != nil {
				return nil, err
			}
			values[i] = v
		}
		body = append(body, values)
	}
	if err := rows.Error(); err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sr.sheet, err)
	}
	if header == nil {
		return nil, ErrEmptyFile
	}

	return buildTable(header, body), nil
}

// cell converts one raw cell value using the workbook's type information.
func (sr *sheetReader) cell(col, row int, raw string) (Value, error) {
	if raw == "" {
		return Missing(), nil
	}

	ref, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return Value{}, err
	}
	typ, err := sr.f.GetCellType(sr.sheet, ref)
	if err != nil {
		return Value{}, fmt.Errorf("cell %s: %w", ref, err)
	}

	switch typ {
	case excelize.CellTypeBool:
		return Bool(raw == "1" || strings.EqualFold(raw, "true")), nil
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString,
		excelize.CellTypeFormula, excelize.CellTypeError:
		return Text(raw), nil
	case excelize.CellTypeDate:
		if t, ok := parseISODate(raw); ok {
			return Time(t), nil
		}
		return Text(raw), nil
	}

	i, intErr := strconv.ParseInt(raw, 10, 64)
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return Text(raw), nil
	}
	if sr.isDateCell(ref) {
		if t, err := excelize.ExcelDateToTime(n, sr.date1904); err == nil {
			return Time(t), nil
		}
	}
	if intErr == nil {
		return Integer(i), nil
	}
	return Number(n), nil
}

// isDateCell reports whether the cell's number format displays a date.
func (sr *sheetReader) isDateCell(ref string) bool {
	styleID, err := sr.f.GetCellStyle(sr.sheet, ref)
	if err != nil || styleID == 0 {
		return false
	}
	if isDate, ok := sr.dateStyles[styleID]; ok {
		return isDate
	}

	isDate := false
	if style, err := sr.f.GetStyle(styleID); err == nil {
		isDate = isDateFormat(style.NumFmt)
		if style.CustomNumFmt != nil {
			isDate = isDateFormat(style.NumFmt) || isCustomDateFormat(*style.CustomNumFmt)
		}
	}
	sr.dateStyles[styleID] = isDate
	return isDate
}

// isDateFormat reports whether a built-in number format id is a date/time format.
func isDateFormat(fmtID int) bool {
	switch fmtID {
	case 14, 15, 16, 17, 18, 19, 20, 21, 22, 27, 30, 36, 45, 46, 47, 50, 57:
		return true
	}
	return false
}

func isCustomDateFormat(format string) bool {
	f := strings.ToLower(format)
	return strings.Contains(f, "yy") || strings.Contains(f, "dd") || strings.Contains(f, "mmm")
}

func parseISODate(s string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ReadCSV parses comma-separated input. The first non-empty record is the header.
func ReadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(csvSource(r))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var (
		header []string
		body   [][]string
	)
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("invalid csv: %w", err)
		}
		if isBlankRow(rec) {
			continue
		}
		if header == nil {
			header = rec
			continue
		}
		body = append(body, rec)
	}
	if header == nil {
		return nil, ErrEmptyFile
	}

	width := len(header)
	for _, rec := range body {
		width = max(width, len(rec))
	}
	numeric := make([]bool, width)
	for c := range numeric {
		numeric[c] = isNumericColumn(body, c)
	}

	values := make([][]Value, len(body))
	for i, rec := range body {
		row := make([]Value, len(rec))
		for c, cell := range rec {
			switch {
			case cell == "":
				row[c] = Missing()
			case numeric[c]:
				row[c] = parseNumber(strings.TrimSpace(cell))
			default:
				row[c] = Text(CleanCell(cell))
			}
		}
		values[i] = row
	}

	return buildTable(header, values), nil
}

// isNumericColumn reports whether every non-empty cell in column c parses
// as a float. A column with no values is not numeric, and neither is one
// holding ="..." text cells.
func isNumericColumn(rows [][]string, c int) bool {
	seen := false
	for _, rec := range rows {
		if c >= len(rec) || rec[c] == "" {
			continue
		}
		if _, err := strconv.ParseFloat(strings.TrimSpace(rec[c]), 64); err != nil {
			return false
		}
		seen = true
	}
	return seen
}

// parseNumber keeps whole numbers in their exact int64 form and falls back
// to float64 for everything else. The input is known to parse as a float.
func parseNumber(s string) Value {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Integer(i)
	}
	n, _ := strconv.ParseFloat(s, 64)
	return Number(n)
}

// buildTable pads ragged rows with Missing and names every column.
func buildTable(header []string, body [][]Value) *Table {
	width := len(header)
	for _, row := range body {
		width = max(width, len(row))
	}

	raw := make([]string, width)
	copy(raw, header)

	rows := make([][]Value, len(body))
	for i, row := range body {
		if len(row) < width {
			padded := make([]Value, width)
			copy(padded, row)
			row = padded
		}
		rows[i] = row
	}

	return &Table{Columns: normalizeHeaders(raw), Rows: rows}
}

func isBlankRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
