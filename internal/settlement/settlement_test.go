package settlement

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/ginjaninja78/concourse/internal/balance"
	"github.com/ginjaninja78/concourse/internal/ledger"
	"github.com/ginjaninja78/concourse/internal/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var zeroTol = ledger.DefaultTolerance()

func TestCalculateFlow_Scenarios(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		balance balance.Balance
		want    Settlement
	}{
		{
			name:    "one creditor two debtors",
			balance: balance.Balance{"A": 6000, "B": -3000, "C": -3000},
			want: Settlement{
				{Payer: "B", Payee: "A", Amount: 3000},
				{Payer: "C", Payee: "A", Amount: 3000},
			},
		},
		{
			name:    "two participants",
			balance: balance.Balance{"A": 1000, "B": -1000},
			want:    Settlement{{Payer: "B", Payee: "A", Amount: 1000}},
		},
		{
			name:    "tied creditors resolved by id",
			balance: balance.Balance{"B": 10, "A": 10, "C": -20},
			want: Settlement{
				{Payer: "C", Payee: "A", Amount: 10},
				{Payer: "C", Payee: "B", Amount: 10},
			},
		},
		{
			name:    "largest creditor first",
			balance: balance.Balance{"A": 5, "B": 15, "C": -12, "D": -8},
			want: Settlement{
				{Payer: "C", Payee: "B", Amount: 12},
				{Payer: "D", Payee: "A", Amount: 5},
				{Payer: "D", Payee: "B", Amount: 3},
			},
		},
		{
			name:    "settled participants are skipped",
			balance: balance.Balance{"A": 0, "B": 700, "C": -700},
			want:    Settlement{{Payer: "C", Payee: "B", Amount: 700}},
		},
		{
			name:    "everyone settled",
			balance: balance.Balance{"A": 0, "B": 0},
			want:    Settlement{},
		},
		{
			name:    "empty balance",
			balance: balance.Balance{},
			want:    Settlement{},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := CalculateFlow(tt.balance, zeroTol)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			require.NoError(t, Verify(tt.balance, got, zeroTol))
		})
	}
}

func TestCalculateFlow_EndToEnd(t *testing.T) {
	t.Parallel()

	l, err := ledger.New("trip", ledger.DefaultPrecision, "A", "B", "C")
	require.NoError(t, err)
	require.NoError(t, l.AddBill(ledger.NewEqualBill("dinner", l.Participants, map[ledger.Participant]money.Amount{"A": 9000})))

	b, err := balance.Calculate(l, zeroTol)
	require.NoError(t, err)

	got, err := CalculateFlow(b, zeroTol)
	require.NoError(t, err)

	lines := make([]string, len(got))
	for i, tx := range got {
		lines[i] = tx.Format(l.Precision)
	}
	assert.Equal(t, []string{"B pays 30.00 to A", "C pays 30.00 to A"}, lines)
	assert.Equal(t, money.Amount(6000), got.Total())
}

func TestCalculateFlow_Unbalanced(t *testing.T) {
	t.Parallel()

	_, err := CalculateFlow(balance.Balance{"A": 10, "B": -9}, zeroTol)

	var unbalanced *UnbalancedLedgerError
	require.ErrorAs(t, err, &unbalanced)
	assert.Equal(t, money.Amount(1), unbalanced.Sum)
	assert.ErrorIs(t, err, ErrUnbalancedLedger)
	assert.Equal(t, ledger.CodeUnbalancedLedger, ledger.CodeOf(err))
}

func TestCalculateFlow_AmountTolerance(t *testing.T) {
	t.Parallel()

	tol := ledger.Tolerance{Amount: 1}

	b := balance.Balance{"A": 10, "B": -10, "C": 1}

	got, err := CalculateFlow(b, tol)
	require.NoError(t, err)
	assert.Equal(t, Settlement{{Payer: "B", Payee: "A", Amount: 10}}, got)
	require.NoError(t, Verify(b, got, tol))

	_, err = CalculateFlow(balance.Balance{"A": 10, "B": -8}, tol)
	require.ErrorIs(t, err, ErrUnbalancedLedger)
}

func TestCalculateFlow_SmallBalancesAbsorbLargerOne(t *testing.T) {
	t.Parallel()

	tol := ledger.Tolerance{Amount: 1}

	// Only A is outside the tolerance; B and C must still pay it.
	b := balance.Balance{"A": 2, "B": -1, "C": -1}

	got, err := CalculateFlow(b, tol)
	require.NoError(t, err)
	assert.Equal(t, Settlement{{Payer: "B", Payee: "A", Amount: 1}}, got)
	require.NoError(t, Verify(b, got, tol))

	exact, err := CalculateFlowExact(b, tol, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, exact)
	require.NoError(t, Verify(b, exact, tol))

	// Nothing is paid when every entry is already inside the tolerance.
	b = balance.Balance{"A": 1, "B": -1}
	got, err = CalculateFlow(b, tol)
	require.NoError(t, err)
	assert.Empty(t, got)
	require.NoError(t, Verify(b, got, tol))
}

func TestCalculateFlow_DoesNotModifyInput(t *testing.T) {
	t.Parallel()

	b := balance.Balance{"A": 6000, "B": -3000, "C": -3000}
	_, err := CalculateFlow(b, zeroTol)
	require.NoError(t, err)
	assert.Equal(t, balance.Balance{"A": 6000, "B": -3000, "C": -3000}, b)
}

func TestCalculateFlow_Properties(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		b := randomBalance(rng, 1+rng.Intn(12))

		got, err := CalculateFlow(b, zeroTol)
		require.NoError(t, err, "case %d", i)

		// Settlement correctness, positivity and the n-1 bound.
		require.NoError(t, Verify(b, got, zeroTol), "case %d: %v", i, b)

		// Determinism, also across map construction order.
		again, err := CalculateFlow(reinsert(b), zeroTol)
		require.NoError(t, err)
		require.Equal(t, got, again, "case %d", i)
	}
}

func TestCalculateFlow_RandomLedgers(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 100; i++ {
		l := randomLedger(t, rng, 2+rng.Intn(6), 1+rng.Intn(6))

		b, err := balance.Calculate(l, zeroTol)
		require.NoError(t, err)
		require.Equal(t, money.Amount(0), b.Sum())

		got, err := CalculateFlow(b, zeroTol)
		require.NoError(t, err)
		require.NoError(t, Verify(b, got, zeroTol))
	}
}

func TestApply(t *testing.T) {
	t.Parallel()

	b := balance.Balance{"A": 1000, "B": -1000}

	got, err := Apply(b, Settlement{{Payer: "B", Payee: "A", Amount: 1000}})
	require.NoError(t, err)
	assert.Equal(t, balance.Balance{"A": 0, "B": 0}, got)
	assert.Equal(t, money.Amount(1000), b["A"])

	_, err = Apply(b, Settlement{{Payer: "Zed", Payee: "A", Amount: 1}})
	require.ErrorIs(t, err, ledger.ErrUnknownParticipant)
}

func TestVerify_Rejects(t *testing.T) {
	t.Parallel()

	b := balance.Balance{"A": 1000, "B": -600, "C": -400}

	tests := []struct {
		name string
		s    Settlement
	}{
		{name: "zero amount", s: Settlement{{Payer: "B", Payee: "A", Amount: 0}}},
		{name: "negative amount", s: Settlement{{Payer: "A", Payee: "B", Amount: -600}}},
		{name: "self payment", s: Settlement{{Payer: "A", Payee: "A", Amount: 5}}},
		{
			name: "too many transactions",
			s: Settlement{
				{Payer: "B", Payee: "A", Amount: 300},
				{Payer: "B", Payee: "A", Amount: 300},
				{Payer: "C", Payee: "A", Amount: 400},
			},
		},
		{name: "leaves a balance", s: Settlement{{Payer: "B", Payee: "A", Amount: 600}}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := Verify(b, tt.s, zeroTol)
			require.ErrorIs(t, err, ErrInvalidSettlement)
			assert.Equal(t, ledger.CodeInvalidSettlement, ledger.CodeOf(err))
		})
	}
}

func TestCalculateFlowExact_BeatsGreedy(t *testing.T) {
	t.Parallel()

	b := balance.Balance{"A": 6, "B": 4, "C": -4, "D": -3, "E": -3}

	greedyFlow, err := CalculateFlow(b, zeroTol)
	require.NoError(t, err)
	assert.Len(t, greedyFlow, 4)

	got, err := CalculateFlowExact(b, zeroTol, 0)
	require.NoError(t, err)
	assert.Equal(t, Settlement{
		{Payer: "D", Payee: "A", Amount: 3},
		{Payer: "E", Payee: "A", Amount: 3},
		{Payer: "C", Payee: "B", Amount: 4},
	}, got)
	require.NoError(t, Verify(b, got, zeroTol))
}

func TestCalculateFlowExact_Limits(t *testing.T) {
	t.Parallel()

	b := balance.Balance{"A": 3, "B": -1, "C": -1, "D": -1}

	_, err := CalculateFlowExact(b, zeroTol, 3)
	var tooMany *TooManyParticipantsError
	require.ErrorAs(t, err, &tooMany)
	assert.Equal(t, 4, tooMany.Count)
	assert.Equal(t, 3, tooMany.Limit)

	got, err := CalculateFlowExact(balance.Balance{"A": 0}, zeroTol, 3)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = CalculateFlowExact(balance.Balance{"A": 1}, zeroTol, 3)
	require.ErrorIs(t, err, ErrUnbalancedLedger)
}

func TestCalculateFlowExact_NeverWorseThanGreedy(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 200; i++ {
		b := smallBalance(rng, 2+rng.Intn(8))

		greedyFlow, err := CalculateFlow(b, zeroTol)
		require.NoError(t, err)

		got, err := CalculateFlowExact(b, zeroTol, 0)
		require.NoError(t, err)
		require.NoError(t, Verify(b, got, zeroTol), "case %d: %v", i, b)
		require.LessOrEqual(t, len(got), len(greedyFlow), "case %d: %v", i, b)
	}
}

func TestSolve(t *testing.T) {
	t.Parallel()

	b := balance.Balance{"A": 6, "B": 4, "C": -4, "D": -3, "E": -3}

	s, err := ParseSolver(" Exact ")
	require.NoError(t, err)
	assert.Equal(t, SolverExact, s)

	s, err = ParseSolver("")
	require.NoError(t, err)
	assert.Equal(t, SolverGreedy, s)

	_, err = ParseSolver("optimal")
	require.ErrorIs(t, err, ErrUnknownSolver)

	got, err := Solve(SolverExact, b, zeroTol, 0)
	require.NoError(t, err)
	assert.Len(t, got, 3)

	got, err = Solve(SolverGreedy, b, zeroTol, 0)
	require.NoError(t, err)
	assert.Len(t, got, 4)

	_, err = Solve("magic", b, zeroTol, 0)
	require.ErrorIs(t, err, ErrUnknownSolver)
}

// =============================================================================
// HELPERS
// =============================================================================

func name(i int) ledger.Participant {
	return ledger.Participant(fmt.Sprintf("p%02d", i))
}

// randomBalance returns n balances summing to zero, some of them zero.
func randomBalance(rng *rand.Rand, n int) balance.Balance {
	b := make(balance.Balance, n)
	var sum money.Amount
	for i := 0; i < n-1; i++ {
		var v money.Amount
		if rng.Intn(4) != 0 {
			v = money.Amount(rng.Int63n(20000) - 10000)
		}
		b[name(i)] = v
		sum += v
	}
	b[name(n-1)] = -sum
	return b
}

// smallBalance draws from a narrow range so zero-sum subsets are common.
func smallBalance(rng *rand.Rand, n int) balance.Balance {
	b := make(balance.Balance, n)
	var sum money.Amount
	for i := 0; i < n-1; i++ {
		v := money.Amount(rng.Intn(9) - 4)
		b[name(i)] = v
		sum += v
	}
	b[name(n-1)] = -sum
	return b
}

func reinsert(b balance.Balance) balance.Balance {
	ps := b.Participants()
	out := make(balance.Balance, len(b))
	for i := len(ps) - 1; i >= 0; i-- {
		out[ps[i]] = b[ps[i]]
	}
	return out
}

func randomLedger(t *testing.T, rng *rand.Rand, participants, bills int) *ledger.Ledger {
	t.Helper()

	names := make([]ledger.Participant, participants)
	for i := range names {
		names[i] = name(i)
	}

	l, err := ledger.New("random", ledger.DefaultPrecision, names...)
	require.NoError(t, err)

	for i := 0; i < bills; i++ {
		payments := make(map[ledger.Participant]money.Amount)
		payments[names[rng.Intn(participants)]] = money.Amount(1 + rng.Int63n(50000))
		require.NoError(t, l.AddBill(ledger.NewEqualBill(fmt.Sprintf("bill-%02d", i), names, payments)))
	}

	return l
}
