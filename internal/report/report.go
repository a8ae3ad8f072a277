// =============================================================================
// Concourse - Settlement Reports
// =============================================================================
//
// Renders the outcome of a settlement run in one of several formats:
//
//   text  aligned table for the terminal
//   xml   <settlement> document
//   csv   one row per balance and transaction
//   json  the report as a JSON object
//   xlsx  workbook with Balances, Transactions and Bills sheets
//   pdf   printable summary
//
// Amounts are always rendered with the ledger precision ("30.00"), never
// as floats.
//
// =============================================================================

package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/ginjaninja78/concourse/internal/balance"
	"github.com/ginjaninja78/concourse/internal/ledger"
	"github.com/ginjaninja78/concourse/internal/money"
	"github.com/ginjaninja78/concourse/internal/settlement"
	"github.com/google/uuid"
)

// Formats lists the supported output formats.
var Formats = []string{"text", "xml", "csv", "json", "xlsx", "pdf"}

// Report is everything a rendered settlement shows.
type Report struct {
	RunID       string
	Project     string
	Precision   int32
	Solver      settlement.Solver
	GeneratedAt time.Time
	Balance     balance.Balance
	Settlement  settlement.Settlement
	Bills       []balance.BillContribution
}

// New creates a report with a fresh run id.
func New(project string, precision int32, solver settlement.Solver, b balance.Balance, s settlement.Settlement, bills []balance.BillContribution) *Report {
	return &Report{
		RunID:       uuid.New().String(),
		Project:     project,
		Precision:   precision,
		Solver:      solver,
		GeneratedAt: time.Now().UTC(),
		Balance:     b,
		Settlement:  s,
		Bills:       bills,
	}
}

// BalanceLine is one participant's net position.
type BalanceLine struct {
	Participant ledger.Participant
	Amount      string
	Status      string
}

// Balances returns the balances in participant order with their status:
// "receives", "pays" or "settled".
func (r *Report) Balances() []BalanceLine {
	lines := make([]BalanceLine, 0, len(r.Balance))
	for _, p := range r.Balance.Participants() {
		a := r.Balance[p]
		lines = append(lines, BalanceLine{Participant: p, Amount: a.Format(r.Precision), Status: statusOf(a)})
	}
	return lines
}

func statusOf(a money.Amount) string {
	switch {
	case a > 0:
		return "receives"
	case a < 0:
		return "pays"
	default:
		return "settled"
	}
}

// Volume is the total amount moved by the settlement.
func (r *Report) Volume() string {
	return r.Settlement.Total().Format(r.Precision)
}

// =============================================================================
// RENDERING
// =============================================================================

// Render encodes r in the given format.
func Render(format string, r *Report) ([]byte, error) {
	switch strings.ToLower(format) {
	case "", "text":
		return renderText(r)
	case "xml":
		return renderXML(r, DefaultXMLOptions())
	case "csv":
		return renderCSV(r)
	case "json":
		return renderJSON(r)
	case "xlsx":
		return renderXLSX(r)
	case "pdf":
		return renderPDF(r)
	default:
		return nil, fmt.Errorf("unsupported output format %q (expected one of %s)", format, strings.Join(Formats, ", "))
	}
}

// Extension returns the file extension for a format, with the dot.
func Extension(format string) string {
	switch strings.ToLower(format) {
	case "", "text":
		return ".txt"
	default:
		return "." + strings.ToLower(format)
	}
}
