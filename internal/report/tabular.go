package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/ginjaninja78/concourse/internal/config"
	"github.com/ginjaninja78/concourse/internal/csvparser"
	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"
)

// =============================================================================
// CSV
// =============================================================================

// renderCSV writes a single table. Balance rows leave payer and payee empty;
// transaction rows leave participant empty.
//
//   kind,n,participant,payer,payee,amount
//   balance,,A,,,60.00
//   transaction,1,,B,A,30.00
func renderCSV(r *Report) ([]byte, error) {
	rows := [][]string{{"kind", "n", "participant", "payer", "payee", "amount"}}

	for _, line := range r.Balances() {
		rows = append(rows, []string{"balance", "", string(line.Participant), "", "", line.Amount})
	}
	for i, t := range r.Settlement {
		rows = append(rows, []string{"transaction", strconv.Itoa(i + 1), "", string(t.Payer), string(t.Payee), t.Amount.Format(r.Precision)})
	}

	var buf bytes.Buffer
	if err := csvparser.WriteTo(&buf, rows, config.BookSettings{}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// =============================================================================
// JSON
// =============================================================================

type jsonReport struct {
	RunID        string            `json:"run_id"`
	Project      string            `json:"project"`
	Solver       string            `json:"solver"`
	GeneratedAt  time.Time         `json:"generated_at"`
	Balances     []jsonBalance     `json:"balances"`
	Transactions []jsonTransaction `json:"transactions"`
	Volume       string            `json:"volume"`
	Bills        []jsonBill        `json:"bills"`
}

type jsonBalance struct {
	Participant string `json:"participant"`
	Amount      string `json:"amount"`
	Status      string `json:"status"`
}

type jsonTransaction struct {
	Payer  string `json:"payer"`
	Payee  string `json:"payee"`
	Amount string `json:"amount"`
}

type jsonBill struct {
	ID    string     `json:"id"`
	Total string     `json:"total"`
	Parts []jsonPart `json:"parts"`
}

type jsonPart struct {
	Participant string `json:"participant"`
	Share       string `json:"share"`
	Paid        string `json:"paid"`
	Owed        string `json:"owed"`
	Net         string `json:"net"`
}

func renderJSON(r *Report) ([]byte, error) {
	out := jsonReport{
		RunID:        r.RunID,
		Project:      r.Project,
		Solver:       string(r.Solver),
		GeneratedAt:  r.GeneratedAt,
		Balances:     []jsonBalance{},
		Transactions: []jsonTransaction{},
		Volume:       r.Volume(),
		Bills:        []jsonBill{},
	}

	for _, line := range r.Balances() {
		out.Balances = append(out.Balances, jsonBalance{Participant: string(line.Participant), Amount: line.Amount, Status: line.Status})
	}
	for _, t := range r.Settlement {
		out.Transactions = append(out.Transactions, jsonTransaction{Payer: string(t.Payer), Payee: string(t.Payee), Amount: t.Amount.Format(r.Precision)})
	}
	for _, b := range r.Bills {
		bill := jsonBill{ID: b.BillID, Total: b.Total.Format(r.Precision), Parts: []jsonPart{}}
		for _, row := range b.Rows {
			bill.Parts = append(bill.Parts, jsonPart{
				Participant: string(row.Participant),
				Share:       row.Share.String(),
				Paid:        row.Paid.Format(r.Precision),
				Owed:        row.Owed.Format(r.Precision),
				Net:         row.Net.Format(r.Precision),
			})
		}
		out.Bills = append(out.Bills, bill)
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode JSON report: %w", err)
	}
	return append(data, '\n'), nil
}

// =============================================================================
// XLSX
// =============================================================================

// Sheet names of the workbook report.
const (
	SheetBalances     = "Balances"
	SheetTransactions = "Transactions"
	SheetBills        = "Bills"
)

func renderXLSX(r *Report) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetBalances); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}
	for _, name := range []string{SheetTransactions, SheetBills} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("failed to add sheet %s: %w", name, err)
		}
	}

	balances := [][]interface{}{{"Participant", "Balance", "Status"}}
	for _, p := range r.Balance.Participants() {
		line := statusOf(r.Balance[p])
		balances = append(balances, []interface{}{string(p), r.Balance[p].Decimal(r.Precision).InexactFloat64(), line})
	}

	transactions := [][]interface{}{{"#", "Payer", "Payee", "Amount"}}
	for i, t := range r.Settlement {
		transactions = append(transactions, []interface{}{i + 1, string(t.Payer), string(t.Payee), t.Amount.Decimal(r.Precision).InexactFloat64()})
	}

	bills := [][]interface{}{{"Bill", "Participant", "Share", "Paid", "Owed", "Net"}}
	for _, b := range r.Bills {
		for _, row := range b.Rows {
			bills = append(bills, []interface{}{
				b.BillID,
				string(row.Participant),
				row.Share.InexactFloat64(),
				row.Paid.Decimal(r.Precision).InexactFloat64(),
				row.Owed.Decimal(r.Precision).InexactFloat64(),
				row.Net.Decimal(r.Precision).InexactFloat64(),
			})
		}
	}

	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for sheet, rows := range map[string][][]interface{}{
		SheetBalances:     balances,
		SheetTransactions: transactions,
		SheetBills:        bills,
	} {
		for i, row := range rows {
			cell, err := excelize.CoordinatesToCellName(1, i+1)
			if err != nil {
				return nil, err
			}
			row := row
			if err := f.SetSheetRow(sheet, cell, &row); err != nil {
				return nil, fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
			}
		}

		last, err := excelize.CoordinatesToCellName(len(rows[0]), 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
			return nil, fmt.Errorf("failed to style %s header: %w", sheet, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// =============================================================================
// PDF
// =============================================================================

func renderPDF(r *Report) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, tr("Settlement: "+r.Project), "", 1, "L", false, 0, "")

	pdf.SetFont("Arial", "", 9)
	pdf.CellFormat(0, 5, fmt.Sprintf("Run %s, %s, solver %s", r.RunID, r.GeneratedAt.Format("2006-01-02 15:04 MST"), r.Solver), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(0, 8, "Balances", "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 11)
	for _, line := range r.Balances() {
		pdf.CellFormat(70, 7, tr(string(line.Participant)), "B", 0, "L", false, 0, "")
		pdf.CellFormat(40, 7, line.Amount, "B", 0, "R", false, 0, "")
		pdf.CellFormat(40, 7, line.Status, "B", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(0, 8, "Transactions", "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 11)
	if len(r.Settlement) == 0 {
		pdf.CellFormat(0, 7, "Nothing to settle.", "", 1, "L", false, 0, "")
	}
	for i, t := range r.Settlement {
		pdf.CellFormat(10, 7, strconv.Itoa(i+1), "", 0, "R", false, 0, "")
		pdf.CellFormat(0, 7, tr(" "+t.Format(r.Precision)), "", 1, "L", false, 0, "")
	}
	pdf.Ln(2)
	pdf.SetFont("Arial", "I", 10)
	pdf.CellFormat(0, 7, fmt.Sprintf("%d transaction(s), %s moved", len(r.Settlement), r.Volume()), "", 1, "L", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	return buf.Bytes(), nil
}
