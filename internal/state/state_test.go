package state

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ginjaninja78/concourse/internal/ledger"
	"github.com/ginjaninja78/concourse/internal/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trip(t *testing.T) *ledger.Ledger {
	t.Helper()

	l, err := ledger.New("ski-trip", ledger.DefaultPrecision, "carol", "alice", "bob")
	require.NoError(t, err)
	require.NoError(t, l.AddBill(ledger.NewEqualBill("dinner", l.Participants, map[ledger.Participant]money.Amount{"alice": 9000})))
	require.NoError(t, l.AddBill(ledger.NewEqualBill("taxi", []ledger.Participant{"alice", "bob"}, map[ledger.Participant]money.Amount{"bob": 1250})))
	return l
}

func assertSameLedger(t *testing.T, want, got *ledger.Ledger) {
	t.Helper()

	assert.Equal(t, want.Name, got.Name)
	assert.Equal(t, want.Precision, got.Precision)
	assert.Equal(t, want.Participants, got.Participants)
	require.Equal(t, want.BillIDs(), got.BillIDs())

	for _, id := range want.BillIDs() {
		wb, gb := want.Bills[id], got.Bills[id]
		require.Equal(t, wb.Participants(), gb.Participants(), "bill %s", id)
		for p, wr := range wb.Records {
			gr := gb.Records[p]
			assert.Equal(t, wr.Payment, gr.Payment, "bill %s, %s", id, p)
			assert.True(t, wr.Share.Equal(gr.Share), "bill %s, %s: %s != %s", id, p, wr.Share, gr.Share)
		}
	}
}

func TestSaveLoad(t *testing.T) {
	t.Parallel()

	for _, ext := range []string{".json", ".yaml", ".yml"} {
		ext := ext
		t.Run(ext, func(t *testing.T) {
			t.Parallel()

			want := trip(t)
			path := filepath.Join(t.TempDir(), "project"+ext)

			require.NoError(t, Save(path, want))
			got, err := Load(path)
			require.NoError(t, err)

			assertSameLedger(t, want, got)
			require.NoError(t, got.Validate(ledger.DefaultTolerance()))
		})
	}
}

func TestMarshal_JSONIsStable(t *testing.T) {
	t.Parallel()

	l := trip(t)

	first, err := Marshal(l, FormatJSON)
	require.NoError(t, err)
	second, err := Marshal(l.Clone(), FormatJSON)
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
	assert.Contains(t, string(first), `"payment": "90.00"`)
}

func TestLoad_DefaultsAndStructure(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "weekend.yaml")
	doc := `participants: [A, B, A]
bills:
  lunch:
    A: {payment: "20", share: "0.5"}
    B: {share: "0.5"}
    Z: {payment: "-1", share: "2"}
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	l, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "weekend", l.Name)
	assert.Equal(t, ledger.DefaultPrecision, l.Precision)
	assert.Equal(t, []ledger.Participant{"A", "B", "A"}, l.Participants)
	assert.Equal(t, money.Amount(2000), l.Bills["lunch"].Records["A"].Payment)
	assert.Equal(t, money.Amount(0), l.Bills["lunch"].Records["B"].Payment)

	// Structure is fine; the rule violations surface in validation.
	errs := l.ValidateAll(ledger.DefaultTolerance())
	require.NotEmpty(t, errs)
	assert.ErrorIs(t, errs[0], ledger.ErrDuplicateParticipant)
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		return path
	}

	tests := []struct {
		name    string
		path    string
		wantErr string
	}{
		{"extension", write("p.txt", "{}"), "unsupported project file"},
		{"json syntax", write("a.json", "{"), "failed to parse JSON"},
		{"unknown field", write("b.json", `{"name":"x","extra":1}`), "failed to parse JSON"},
		{"bad payment", write("c.json", `{"participants":["A"],"bills":{"x":{"A":{"payment":"abc","share":"1"}}}}`), `bill "x", participant "A"`},
		{"too precise", write("d.json", `{"precision":0,"participants":["A"],"bills":{"x":{"A":{"payment":"1.5","share":"1"}}}}`), "decimal places"},
		{"bad share", write("e.yaml", "participants: [A]\nbills:\n  x:\n    A: {payment: \"1\", share: half}\n"), "invalid share"},
		{"precision range", write("f.json", `{"precision":12}`), "out of range"},
		{"blank bill", write("g.json", `{"participants":["A"],"bills":{" ":{}}}`), "invalid bill"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	_, err := Load(filepath.Join(dir, "missing.json"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
