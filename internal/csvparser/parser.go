// =============================================================================
// Concourse - CSV Parser Module
// =============================================================================
//
// Reads and writes CSV books. A book is a plain grid:
//
//   label   , Alice , Bob , Carol      <- header: participants
//   dinner  , 90    , 0   , 0          <- payment row of bill "dinner"
//   shares  , 33.34 , 33.33 , 33.33    <- share row of the same bill
//   ...
//
// This package only deals with the grid. Turning it into a ledger is the job
// of the book package.
//
// FEATURES:
//   - Configurable delimiter ("," ";" "|" "tab")
//   - Configurable quote character. Books written by older tools quote with
//     "|", which encoding/csv cannot read, so those go through a small
//     line splitter instead.
//   - Blank rows are skipped; every kept row remembers its line number so
//     errors can point at the file.
//
// =============================================================================

package csvparser

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ginjaninja78/concourse/internal/config"
)

// =============================================================================
// CSV DATA STRUCTURE
// =============================================================================

// CSVData represents a parsed CSV book.
type CSVData struct {
	// Rows holds the non-blank rows with surrounding whitespace trimmed.
	Rows [][]string

	// LineNumbers holds the 1-based line of every entry in Rows.
	LineNumbers []int

	// SourceFile is the path the data was read from.
	SourceFile string
}

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// Parse reads a CSV book from disk.
//
// PARAMETERS:
//   - filePath: The path to the CSV file.
//   - settings: Delimiter and quote settings.
//
// RETURNS:
//   - The parsed rows.
//   - An error if the file cannot be read or is empty.
func Parse(filePath string, settings config.BookSettings) (*CSVData, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	data, err := ParseReader(bufio.NewReader(file), settings)
	if err != nil {
		return nil, err
	}
	data.SourceFile = filePath
	return data, nil
}

// ParseReader reads a CSV book from r.
func ParseReader(r io.Reader, settings config.BookSettings) (*CSVData, error) {
	var (
		rows  [][]string
		lines []int
		err   error
	)

	if quoteRune(settings) == '"' {
		rows, lines, err = readStandard(r, settings)
	} else {
		rows, lines, err = readCustomQuote(r, settings)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}

	data := &CSVData{}
	for i, row := range rows {
		if isRowEmpty(row) {
			continue
		}
		data.Rows = append(data.Rows, trimCells(row))
		data.LineNumbers = append(data.LineNumbers, lines[i])
	}

	if len(data.Rows) == 0 {
		return nil, fmt.Errorf("CSV file is empty")
	}

	return data, nil
}

func readStandard(r io.Reader, settings config.BookSettings) ([][]string, []int, error) {
	reader := csv.NewReader(r)
	configureReader(reader, settings)

	var (
		rows  [][]string
		lines []int
	)
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		line, _ := reader.FieldPos(0)
		rows = append(rows, row)
		lines = append(lines, line)
	}
	return rows, lines, nil
}

// readCustomQuote splits one record per line. Inside quotes the delimiter is
// literal and a doubled quote character stands for itself.
func readCustomQuote(r io.Reader, settings config.BookSettings) ([][]string, []int, error) {
	comma := delimiterRune(settings)
	quote := quoteRune(settings)

	var (
		rows  [][]string
		lines []int
	)

	scanner := bufio.NewScanner(r)
	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimRight(scanner.Text(), "\r")

		var (
			fields  []string
			field   strings.Builder
			inQuote bool
		)
		runes := []rune(text)
		for i := 0; i < len(runes); i++ {
			c := runes[i]
			switch {
			case c == quote && inQuote && i+1 < len(runes) && runes[i+1] == quote:
				field.WriteRune(quote)
				i++
			case c == quote:
				inQuote = !inQuote
			case c == comma && !inQuote:
				fields = append(fields, field.String())
				field.Reset()
			default:
				field.WriteRune(c)
			}
		}
		if inQuote {
			return nil, nil, fmt.Errorf("line %d: unterminated quoted field", line)
		}
		fields = append(fields, field.String())

		rows = append(rows, fields)
		lines = append(lines, line)
	}

	return rows, lines, scanner.Err()
}

// configureReader configures the CSV reader based on the settings.
func configureReader(reader *csv.Reader, settings config.BookSettings) {
	reader.Comma = delimiterRune(settings)

	// Books are ragged when trailing cells are left empty.
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
}

func delimiterRune(settings config.BookSettings) rune {
	switch settings.Delimiter {
	case "\\t", "tab", "TAB":
		return '\t'
	case "pipe", "PIPE":
		return '|'
	case "semicolon":
		return ';'
	case "":
		return ','
	default:
		return []rune(settings.Delimiter)[0]
	}
}

func quoteRune(settings config.BookSettings) rune {
	if settings.QuoteChar == "" {
		return '"'
	}
	return []rune(settings.QuoteChar)[0]
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

// Write stores rows as a CSV file using the configured delimiter. Fields are
// always quoted with '"'.
func Write(filePath string, rows [][]string, settings config.BookSettings) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	if err := WriteTo(file, rows, settings); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// WriteTo writes rows as CSV to w.
func WriteTo(w io.Writer, rows [][]string, settings config.BookSettings) error {
	writer := csv.NewWriter(w)
	writer.Comma = delimiterRune(settings)

	if err := writer.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write CSV: %w", err)
	}
	return nil
}
