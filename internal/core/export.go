package core

// export.go serializes a joined table for download.
//
// The workbook has a single sheet, a bold header row with the column names
// and no index column. Missing values are written as empty cells. The CSV
// variant writes the same header and display strings.

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrNoArtifact is returned when a failed result is exported.
var ErrNoArtifact = errors.New("no joined table to export")

// DefaultOutputName is the download file name for workbook exports.
const DefaultOutputName = "output.xlsx"

// DefaultSheetName is the single sheet written to exported workbooks.
const DefaultSheetName = "Sheet1"

// Content types for downloads.
const (
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	ContentTypeCSV  = "text/csv; charset=utf-8"
)

// ExportOptions controls Export. Zero fields take the defaults above.
type ExportOptions struct {
	Format    Format
	Name      string
	SheetName string
}

// Artifact is a downloadable file.
type Artifact struct {
	Name        string
	ContentType string
	Data        []byte
}

// Export serializes a successful result. Failed results yield ErrNoArtifact.
func Export(result JoinResult, opts ExportOptions) (*Artifact, error) {
	t, ok := result.Table()
	if !ok {
		return nil, ErrNoArtifact
	}

	if opts.Format == "" {
		opts.Format = FormatXLSX
	}
	if opts.SheetName == "" {
		opts.SheetName = DefaultSheetName
	}
	if opts.Name == "" {
		opts.Name = DefaultOutputName
	}

	var buf bytes.Buffer
	switch opts.Format {
	case FormatCSV:
		if err := WriteCSV(&buf, t); err != nil {
			return nil, err
		}
		return &Artifact{
			Name:        withExt(opts.Name, ".csv"),
			ContentType: ContentTypeCSV,
			Data:        buf.Bytes(),
		}, nil
	case FormatXLSX:
		if err := WriteXLSX(&buf, t, opts.SheetName); err != nil {
			return nil, err
		}
		return &Artifact{
			Name:        withExt(opts.Name, ".xlsx"),
			ContentType: ContentTypeXLSX,
			Data:        buf.Bytes(),
		}, nil
	default:
		return nil, fmt.Errorf("unsupported export format %q", opts.Format)
	}
}

// WriteXLSX streams t into a new workbook and writes it to w.
func WriteXLSX(w io.Writer, t *Table, sheet string) error {
	f := excelize.NewFile()
	defer f.Close()

	if sheet != DefaultSheetName {
		if err := f.SetSheetName(DefaultSheetName, sheet); err != nil {
			return fmt.Errorf("rename sheet: %w", err)
		}
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	dateStyle, err := f.NewStyle(&excelize.Style{NumFmt: 14})
	if err != nil {
		return fmt.Errorf("date style: %w", err)
	}
	dateTimeStyle, err := f.NewStyle(&excelize.Style{NumFmt: 22})
	if err != nil {
		return fmt.Errorf("datetime style: %w", err)
	}

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("stream writer: %w", err)
	}

	header := make([]interface{}, len(t.Columns))
	for i, name := range t.Columns {
		header[i] = excelize.Cell{StyleID: headerStyle, Value: name}
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for r, row := range t.Rows {
		cells := make([]interface{}, len(row))
		for c, v := range row {
			switch v.Kind {
			case KindMissing:
				cells[c] = nil
			case KindTime:
				style := dateTimeStyle
				if isMidnight(v) {
					style = dateStyle
				}
				cells[c] = excelize.Cell{StyleID: style, Value: v.Time}
			default:
				cells[c] = v.Interface()
			}
		}
		ref, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(ref, cells); err != nil {
			return fmt.Errorf("write row %d: %w", r+2, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush sheet: %w", err)
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// WriteCSV writes t as comma-separated text with a header row.
func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return err
	}
	record := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i, v := range row {
			record[i] = v.String()
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func isMidnight(v Value) bool {
	return v.Time.Hour() == 0 && v.Time.Minute() == 0 && v.Time.Second() == 0 && v.Time.Nanosecond() == 0
}

func withExt(name, ext string) string {
	return strings.TrimSuffix(name, filepath.Ext(name)) + ext
}
