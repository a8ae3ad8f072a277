package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"testing"
	"time"

	"github.com/ginjaninja78/concourse/internal/balance"
	"github.com/ginjaninja78/concourse/internal/ledger"
	"github.com/ginjaninja78/concourse/internal/money"
	"github.com/ginjaninja78/concourse/internal/settlement"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func dinnerReport(t *testing.T) *Report {
	t.Helper()

	l, err := ledger.New("trip & co", 2, "A", "B", "C")
	require.NoError(t, err)
	require.NoError(t, l.AddBill(ledger.NewEqualBill("dinner", l.Participants, map[ledger.Participant]money.Amount{"A": 9000})))

	tol := ledger.DefaultTolerance()
	b, err := balance.Calculate(l, tol)
	require.NoError(t, err)
	s, err := settlement.CalculateFlow(b, tol)
	require.NoError(t, err)
	bills, err := balance.Breakdown(l, tol)
	require.NoError(t, err)

	r := New(l.Name, l.Precision, settlement.SolverGreedy, b, s, bills)
	r.GeneratedAt = time.Date(2024, 1, 15, 14, 30, 0, 0, time.UTC)
	return r
}

func TestNew(t *testing.T) {
	t.Parallel()

	r := dinnerReport(t)
	assert.Len(t, r.RunID, 36)
	assert.Equal(t, "60.00", r.Volume())
	assert.Equal(t, []BalanceLine{
		{Participant: "A", Amount: "60.00", Status: "receives"},
		{Participant: "B", Amount: "-30.00", Status: "pays"},
		{Participant: "C", Amount: "-30.00", Status: "pays"},
	}, r.Balances())
}

func TestRender_Text(t *testing.T) {
	t.Parallel()

	out, err := Render("text", dinnerReport(t))
	require.NoError(t, err)

	text := string(out)
	assert.Contains(t, text, "Project: trip & co")
	assert.Contains(t, text, "1. B pays 30.00 to A\n")
	assert.Contains(t, text, "2. C pays 30.00 to A\n")
	assert.Contains(t, text, "2 transaction(s), 60.00 moved")

	empty := dinnerReport(t)
	empty.Settlement = settlement.Settlement{}
	out, err = Render("", empty)
	require.NoError(t, err)
	assert.Contains(t, string(out), "nothing to settle")
}

func TestRender_XML(t *testing.T) {
	t.Parallel()

	r := dinnerReport(t)
	out, err := RenderXML(r, XMLOptions{Indent: "\t", RootAttributes: map[string]string{"currency": "EUR"}})
	require.NoError(t, err)
	assert.NotContains(t, string(out), "<?xml")
	assert.Contains(t, string(out), `project="trip &amp; co"`)
	assert.Contains(t, string(out), `currency="EUR"`)

	out, err = Render("xml", r)
	require.NoError(t, err)
	assert.Contains(t, string(out), `<?xml version="1.0" encoding="UTF-8"?>`)

	var doc struct {
		Project  string `xml:"project,attr"`
		Balances []struct {
			Participant string `xml:"participant,attr"`
			Amount      string `xml:",chardata"`
		} `xml:"balances>balance"`
		Transactions struct {
			Count int    `xml:"count,attr"`
			Items []struct {
				Payer  string `xml:"payer"`
				Payee  string `xml:"payee"`
				Amount string `xml:"amount"`
			} `xml:"transaction"`
		} `xml:"transactions"`
		Bills []struct {
			ID    string `xml:"id,attr"`
			Parts []struct {
				Participant string `xml:"participant,attr"`
				Owed        string `xml:"owed,attr"`
			} `xml:"part"`
		} `xml:"bills>bill"`
	}
	require.NoError(t, xml.Unmarshal(out, &doc))

	assert.Equal(t, "trip & co", doc.Project)
	require.Len(t, doc.Balances, 3)
	assert.Equal(t, "-30.00", doc.Balances[1].Amount)
	assert.Equal(t, 2, doc.Transactions.Count)
	assert.Equal(t, "C", doc.Transactions.Items[1].Payer)
	assert.Equal(t, "30.00", doc.Transactions.Items[1].Amount)
	require.Len(t, doc.Bills, 1)
	assert.Len(t, doc.Bills[0].Parts, 3)
	assert.Equal(t, "30.00", doc.Bills[0].Parts[0].Owed)
}

func TestRender_CSV(t *testing.T) {
	t.Parallel()

	out, err := Render("csv", dinnerReport(t))
	require.NoError(t, err)

	rows, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"kind", "n", "participant", "payer", "payee", "amount"},
		{"balance", "", "A", "", "", "60.00"},
		{"balance", "", "B", "", "", "-30.00"},
		{"balance", "", "C", "", "", "-30.00"},
		{"transaction", "1", "", "B", "A", "30.00"},
		{"transaction", "2", "", "C", "A", "30.00"},
	}, rows)
}

func TestRender_JSON(t *testing.T) {
	t.Parallel()

	r := dinnerReport(t)
	r.Settlement = settlement.Settlement{}

	out, err := Render("JSON", r)
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &doc))
	assert.Equal(t, "trip & co", doc["project"])
	assert.Equal(t, "0.00", doc["volume"])
	assert.Equal(t, []interface{}{}, doc["transactions"])
	assert.Len(t, doc["balances"], 3)
}

func TestRender_XLSX(t *testing.T) {
	t.Parallel()

	out, err := Render("xlsx", dinnerReport(t))
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetBalances, SheetTransactions, SheetBills}, f.GetSheetList())

	rows, err := f.GetRows(SheetTransactions)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"1", "B", "A", "30"}, rows[1])

	rows, err = f.GetRows(SheetBills)
	require.NoError(t, err)
	assert.Len(t, rows, 4)
}

func TestRender_PDF(t *testing.T) {
	t.Parallel()

	out, err := Render("pdf", dinnerReport(t))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
}

func TestRender_Unknown(t *testing.T) {
	t.Parallel()

	_, err := Render("html", dinnerReport(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported output format")

	assert.Equal(t, ".txt", Extension("text"))
	assert.Equal(t, ".xlsx", Extension("XLSX"))
}
