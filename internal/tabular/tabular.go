// Package tabular reads the external configuration tables (tag mapping, task
// catalogue) from CSV or XLSX files as raw string rows.
package tabular

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// Options configures table reading.
type Options struct {
	SheetIndex int    // XLSX only; default 0
	SheetName  string // XLSX only; if set, overrides SheetIndex
	SkipRows   int    // number of header rows to skip
}

// ReadFile reads a tabular file by extension: .csv or .xlsx.
func ReadFile(path string, opts Options) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return ReadCSV(path, opts)
	case ".xlsx":
		return ReadXLSX(path, opts)
	default:
		return nil, eris.Errorf("tabular: unsupported file type %q", filepath.Ext(path))
	}
}

// ReadCSV reads a CSV file and returns all rows as string slices.
func ReadCSV(path string, opts Options) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "tabular: open csv %s", path)
	}
	defer f.Close() //nolint:errcheck

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1 // ragged rows are tolerated
	records, err := reader.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "tabular: read csv")
	}

	if opts.SkipRows >= len(records) {
		return nil, nil
	}
	return records[opts.SkipRows:], nil
}

// ReadXLSX reads an XLSX file and returns all rows as string slices.
func ReadXLSX(path string, opts Options) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "tabular: open xlsx")
	}

	sheet, err := getSheet(f, opts)
	if err != nil {
		return nil, err
	}

	var rows [][]string
	for i, row := range sheet.Rows {
		if i < opts.SkipRows {
			continue
		}
		rows = append(rows, rowToStrings(row))
	}

	return rows, nil
}

func getSheet(f *xlsx.File, opts Options) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("tabular: sheet %q not found", opts.SheetName)
		}
		return sheet, nil
	}

	if opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("tabular: sheet index %d out of range (file has %d sheets)", opts.SheetIndex, len(f.Sheets))
	}

	return f.Sheets[opts.SheetIndex], nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}
