package xlsxparser

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWriteAndParse(t *testing.T) {
	t.Parallel()

	rows := [][]string{
		{"label", "A", "B", "C"},
		{"dinner", "90", "0", "0"},
		{"shares", "33.34", "33.33", "33.33"},
	}

	path := filepath.Join(t.TempDir(), "trip.xlsx")
	require.NoError(t, Write(path, "", rows))

	data, err := Parse(path, "")
	require.NoError(t, err)

	assert.Equal(t, "Book", data.SheetName)
	assert.Equal(t, rows, data.Rows)
	assert.Equal(t, []int{1, 2, 3}, data.RowNumbers)
}

func TestParse_SkipsScratchSheetsAndBlankRows(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "book.xlsx")

	f := excelize.NewFile()
	require.NoError(t, f.SetSheetName("Sheet1", "_notes"))
	require.NoError(t, f.SetCellValue("_notes", "A1", "ignore me"))

	_, err := f.NewSheet("Trip")
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow("Trip", "A1", &[]interface{}{"label", "A", "B"}))
	require.NoError(t, f.SetSheetRow("Trip", "A3", &[]interface{}{"taxi", 12.5, 0}))
	require.NoError(t, f.SetSheetRow("Trip", "A4", &[]interface{}{"shares", 50, 50}))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	data, err := Parse(path, "")
	require.NoError(t, err)

	assert.Equal(t, "Trip", data.SheetName)
	assert.Equal(t, []int{1, 3, 4}, data.RowNumbers)
	assert.Equal(t, []string{"taxi", "12.5", "0"}, data.Rows[1])
	assert.Equal(t, []string{"shares", "50", "50"}, data.Rows[2])
}

func TestParse_Errors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	_, err := Parse(filepath.Join(dir, "missing.xlsx"), "")
	require.Error(t, err)

	path := filepath.Join(dir, "book.xlsx")
	require.NoError(t, Write(path, "Book", [][]string{{"label", "A"}}))

	_, err = Parse(path, "Other")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"Other"`)

	empty := filepath.Join(dir, "empty.xlsx")
	require.NoError(t, Write(empty, "Book", nil))

	_, err = Parse(empty, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")
}
