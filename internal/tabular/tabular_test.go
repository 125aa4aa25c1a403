package tabular

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "table.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func writeXLSX(t *testing.T, rows [][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Sheet1")
	require.NoError(t, err)
	for _, r := range rows {
		row := sheet.AddRow()
		for _, c := range r {
			row.AddCell().SetString(c)
		}
	}
	path := filepath.Join(t.TempDir(), "table.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestReadCSV(t *testing.T) {
	path := writeCSV(t, "TAG,FV\nGA_HO_DIST,Hoist distance\nGA_TR_CNT,Trolley count\n")

	rows, err := ReadCSV(path, Options{SkipRows: 1})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"GA_HO_DIST", "Hoist distance"}, rows[0])
}

func TestReadCSV_RaggedRows(t *testing.T) {
	path := writeCSV(t, "a,b,c\n1,2\nx,y,z\n")

	rows, err := ReadCSV(path, Options{})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"1", "2"}, rows[1])
}

func TestReadCSV_SkipAllRows(t *testing.T) {
	path := writeCSV(t, "only,header\n")

	rows, err := ReadCSV(path, Options{SkipRows: 3})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestReadXLSX(t *testing.T) {
	path := writeXLSX(t, [][]string{
		{"TAG", "FV"},
		{"GA_HO_DIST", "Hoist distance"},
	})

	rows, err := ReadXLSX(path, Options{SkipRows: 1})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"GA_HO_DIST", "Hoist distance"}, rows[0])
}

func TestReadXLSX_SheetNotFound(t *testing.T) {
	path := writeXLSX(t, [][]string{{"a"}})

	_, err := ReadXLSX(path, Options{SheetName: "Missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestReadFile_ByExtension(t *testing.T) {
	csvPath := writeCSV(t, "a,b\n1,2\n")
	rows, err := ReadFile(csvPath, Options{})
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	_, err = ReadFile("table.parquet", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file type")
}

func TestReadCSV_MissingFile(t *testing.T) {
	_, err := ReadCSV(filepath.Join(t.TempDir(), "nope.csv"), Options{})
	require.Error(t, err)
}
