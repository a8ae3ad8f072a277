// =============================================================================
// Concourse - Book Loader
// =============================================================================
//
// A book is any file a ledger can be read from:
//
//   .csv          grid book, see the csvparser package
//   .xlsx         grid book on a worksheet, see the xlsxparser package
//   .json .yaml   project state, see the state package
//
// GRID LAYOUT:
//   Row 1 names the participants (the first cell is a free label). Every bill
//   then takes two rows: the payment row, whose first cell is the bill id,
//   and the share row right below it, whose first cell is ignored.
//
//   | bill   | alice | bob   | carol |
//   | dinner | 90    |       |       |
//   | shares | 33.34 | 33.33 | 33.33 |
//
//   Empty cells count as zero. Participants with neither a payment nor a
//   share are left off the bill. Shares are percentages unless the book
//   settings say otherwise.
//
// =============================================================================

package book

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ginjaninja78/concourse/internal/config"
	"github.com/ginjaninja78/concourse/internal/csvparser"
	"github.com/ginjaninja78/concourse/internal/ledger"
	"github.com/ginjaninja78/concourse/internal/money"
	"github.com/ginjaninja78/concourse/internal/state"
	"github.com/ginjaninja78/concourse/internal/xlsxparser"
	"github.com/shopspring/decimal"
)

// Extensions lists the file extensions Load understands.
var Extensions = []string{".csv", ".xlsx", ".json", ".yaml", ".yml"}

var hundred = decimal.NewFromInt(100)

// floatNoise bounds the binary-float residue spreadsheets leave on numbers.
var floatNoise = decimal.New(1, -9)

// RowError points at the cell of a grid book that could not be read.
// Column is 1-based; 0 means the whole row.
type RowError struct {
	Row    int
	Column int
	Err    error
}

func (e *RowError) Error() string {
	if e.Column > 0 {
		return fmt.Sprintf("row %d, column %d: %v", e.Row, e.Column, e.Err)
	}
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// IsBook reports whether path has a book extension.
func IsBook(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, known := range Extensions {
		if ext == known {
			return true
		}
	}
	return false
}

// ProjectName derives a project name from a file path.
func ProjectName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// =============================================================================
// LOAD / SAVE
// =============================================================================

// Load reads a ledger from a book file.
//
// PARAMETERS:
//   - path: The book. The format follows the extension.
//   - settings: CSV and share settings for grid books.
//   - precision: Minor-unit digits for grid books. Project files carry their
//     own precision.
//
// RETURNS:
//   - The ledger, structurally sound but not yet validated.
//   - An error, a *RowError for grid problems.
func Load(path string, settings config.BookSettings, precision int32) (*ledger.Ledger, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		data, err := csvparser.Parse(path, settings)
		if err != nil {
			return nil, err
		}
		return FromRows(ProjectName(path), data.Rows, data.LineNumbers, settings.Percent(), precision)

	case ".xlsx":
		data, err := xlsxparser.Parse(path, "")
		if err != nil {
			return nil, err
		}
		return FromRows(ProjectName(path), data.Rows, data.RowNumbers, settings.Percent(), precision)

	case ".json", ".yaml", ".yml":
		return state.Load(path)

	default:
		return nil, fmt.Errorf("unsupported book %q: expected one of %s", filepath.Base(path), strings.Join(Extensions, ", "))
	}
}

// Save writes a ledger in the format given by the extension of path.
func Save(path string, l *ledger.Ledger, settings config.BookSettings) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return csvparser.Write(path, ToRows(l, settings.Percent()), settings)
	case ".xlsx":
		return xlsxparser.Write(path, "", ToRows(l, settings.Percent()))
	case ".json", ".yaml", ".yml":
		return state.Save(path, l)
	default:
		return fmt.Errorf("unsupported book %q: expected one of %s", filepath.Base(path), strings.Join(Extensions, ", "))
	}
}

// =============================================================================
// GRID CONVERSION
// =============================================================================

// FromRows builds a ledger from a grid. rowNumbers holds the source row of
// every entry in rows and is used for error messages; nil numbers rows from 1.
func FromRows(name string, rows [][]string, rowNumbers []int, percent bool, precision int32) (*ledger.Ledger, error) {
	rowNo := func(i int) int {
		if i < len(rowNumbers) {
			return rowNumbers[i]
		}
		return i + 1
	}

	if len(rows) == 0 {
		return nil, errors.New("book has no header row")
	}

	participants, err := header(rows[0])
	if err != nil {
		return nil, &RowError{Row: rowNo(0), Err: err}
	}

	l := &ledger.Ledger{
		Name:         name,
		Precision:    precision,
		Participants: participants,
		Bills:        make(map[string]*ledger.Bill),
	}

	for i := 1; i < len(rows); i += 2 {
		paymentRow := rows[i]

		id := cell(paymentRow, 0)
		if id == "" {
			return nil, &RowError{Row: rowNo(i), Column: 1, Err: &ledger.InvalidBillError{BillID: id}}
		}
		if _, exists := l.Bills[id]; exists {
			return nil, &RowError{Row: rowNo(i), Column: 1, Err: &ledger.DuplicateBillError{BillID: id}}
		}
		if i+1 >= len(rows) {
			return nil, &RowError{Row: rowNo(i), Err: fmt.Errorf("bill %q has no share row", id)}
		}
		shareRow := rows[i+1]

		for r, row := range [][]string{paymentRow, shareRow} {
			if col := extraCell(row, len(participants)); col > 0 {
				return nil, &RowError{Row: rowNo(i + r), Column: col, Err: errors.New("value outside the participant columns")}
			}
		}

		bill := ledger.NewBill(id)
		for j, p := range participants {
			col := j + 1

			payment, err := parseAmount(cell(paymentRow, col), precision)
			if err != nil {
				return nil, &RowError{Row: rowNo(i), Column: col + 1, Err: err}
			}
			share, err := parseShare(cell(shareRow, col), percent)
			if err != nil {
				return nil, &RowError{Row: rowNo(i + 1), Column: col + 1, Err: err}
			}

			if payment == 0 && share.IsZero() {
				continue
			}
			bill.Set(p, payment, share)
		}

		l.Bills[id] = bill
	}

	return l, nil
}

// ToRows renders a ledger as a grid. Bills appear in id order and every
// participant gets a column.
func ToRows(l *ledger.Ledger, percent bool) [][]string {
	head := make([]string, 0, len(l.Participants)+1)
	head = append(head, "bill")
	for _, p := range l.Participants {
		head = append(head, string(p))
	}

	rows := [][]string{head}
	for _, id := range l.BillIDs() {
		b := l.Bills[id]

		payments := make([]string, 0, len(head))
		shares := make([]string, 0, len(head))
		payments = append(payments, id)
		shares = append(shares, "shares")

		for _, p := range l.Participants {
			r, ok := b.Records[p]
			if !ok {
				payments = append(payments, "")
				shares = append(shares, "")
				continue
			}

			payments = append(payments, r.Payment.Format(l.Precision))
			s := r.Share
			if percent {
				s = s.Mul(hundred)
			}
			shares = append(shares, s.String())
		}

		rows = append(rows, payments, shares)
	}

	return rows
}

// header reads the participant names. Trailing empty cells are ignored.
func header(row []string) ([]ledger.Participant, error) {
	end := len(row)
	for end > 1 && strings.TrimSpace(row[end-1]) == "" {
		end--
	}

	var participants []ledger.Participant
	for j := 1; j < end; j++ {
		name := strings.TrimSpace(row[j])
		if name == "" {
			return nil, fmt.Errorf("column %d: %w", j+1, &ledger.InvalidParticipantError{Participant: ledger.Participant(name)})
		}
		participants = append(participants, ledger.Participant(name))
	}

	if len(participants) == 0 {
		return nil, errors.New("header names no participants")
	}
	return participants, nil
}

func cell(row []string, i int) string {
	if i < len(row) {
		return strings.TrimSpace(row[i])
	}
	return ""
}

// extraCell returns the 1-based column of the first non-empty cell right of
// the participant columns, or 0.
func extraCell(row []string, participants int) int {
	for j := participants + 1; j < len(row); j++ {
		if strings.TrimSpace(row[j]) != "" {
			return j + 1
		}
	}
	return 0
}

func parseAmount(s string, precision int32) (money.Amount, error) {
	if s == "" {
		return 0, nil
	}

	a, err := money.Parse(s, precision)
	if err == nil || !errors.Is(err, money.ErrPrecision) {
		return a, err
	}

	// Spreadsheet cells hold binary floats: accept 12.100000000000001.
	d, derr := money.ParseDecimal(s)
	if derr != nil {
		return 0, err
	}
	rounded := d.Round(precision)
	if d.Sub(rounded).Abs().GreaterThan(floatNoise) {
		return 0, err
	}
	return money.FromDecimal(rounded, precision)
}

func parseShare(s string, percent bool) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}

	d, err := decimal.NewFromString(strings.TrimSuffix(s, "%"))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid share %q", s)
	}
	if percent {
		d = d.Div(hundred)
	}
	return d, nil
}
