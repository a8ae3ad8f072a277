// =============================================================================
// Concourse - XLSX Book Parser
// =============================================================================
//
// Reads books kept in a spreadsheet. The layout is the same grid as a CSV
// book (see the csvparser package), on a single sheet:
//
//   | A      | B     | C     | D     |
//   |--------|-------|-------|-------|
//   | label  | Alice | Bob   | Carol |
//   | dinner | 90    | 0     | 0     |
//   | shares | 33.34 | 33.33 | 33.33 |
//
// SHEET SELECTION:
//   A sheet can be named explicitly. Otherwise the first sheet whose name does
//   not start with "_" is used, so notes and scratch sheets can live in the
//   same workbook.
//
// =============================================================================

package xlsxparser

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// SheetData is the grid read from one sheet.
type SheetData struct {
	// SourceFile is the path to the workbook.
	SourceFile string

	// SheetName is the sheet the rows came from.
	SheetName string

	// Rows holds the non-blank rows with whitespace trimmed.
	Rows [][]string

	// RowNumbers holds the 1-based spreadsheet row of every entry in Rows.
	RowNumbers []int
}

// Parse reads the book sheet of an XLSX workbook.
//
// PARAMETERS:
//   - path: The workbook.
//   - sheet: The sheet to read. Empty selects the first sheet not starting
//     with "_".
//
// RETURNS:
//   - The sheet grid.
//   - An error if the workbook cannot be opened, the sheet does not exist or
//     holds no data.
func Parse(path, sheet string) (*SheetData, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheet = bookSheet(f)
	}
	if sheet == "" {
		return nil, fmt.Errorf("workbook has no usable sheets")
	}
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, fmt.Errorf("workbook has no sheet %q", sheet)
	}

	// Raw values keep "12.5" from coming back as a formatted "12.50 €".
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	data := &SheetData{SourceFile: path, SheetName: sheet}
	for i, row := range rows {
		if isRowEmpty(row) {
			continue
		}
		data.Rows = append(data.Rows, trimCells(row))
		data.RowNumbers = append(data.RowNumbers, i+1)
	}

	if len(data.Rows) == 0 {
		return nil, fmt.Errorf("sheet %q is empty", sheet)
	}

	return data, nil
}

// bookSheet returns the first sheet not starting with "_".
func bookSheet(f *excelize.File) string {
	for _, name := range f.GetSheetList() {
		if !strings.HasPrefix(name, "_") {
			return name
		}
	}
	return ""
}

// isRowEmpty checks if a row contains only empty values.
func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func trimCells(row []string) []string {
	out := make([]string, len(row))
	for i, cell := range row {
		out[i] = strings.TrimSpace(cell)
	}
	return out
}

// =============================================================================
// WRITER
// =============================================================================

// Write stores rows on a single sheet of a new workbook.
func Write(path, sheet string, rows [][]string) error {
	f := excelize.NewFile()
	defer f.Close()

	if sheet == "" {
		sheet = "Book"
	}
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}

		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}
