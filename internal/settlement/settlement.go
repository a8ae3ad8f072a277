// =============================================================================
// Concourse - Settlement Engine
// =============================================================================
//
// Turns a balance into a list of transactions that brings every participant
// back to zero.
//
// GREEDY FLOW:
//   Repeatedly match the largest remaining creditor with the largest
//   remaining debtor and move min(credit, -debit) between them. Equal
//   magnitudes are resolved by participant identifier, smallest first.
//   Every step clears at least one participant, so a balance with n
//   non-zero entries needs at most n-1 transactions. Entries inside the
//   amount tolerance still take part as counterparties.
//
// EXACT FLOW:
//   See exact.go. Only used when the caller asks for it by name.
//
// =============================================================================

package settlement

import (
	"fmt"

	"github.com/ginjaninja78/concourse/internal/balance"
	"github.com/ginjaninja78/concourse/internal/ledger"
	"github.com/ginjaninja78/concourse/internal/money"
)

// Transaction moves Amount from Payer to Payee.
type Transaction struct {
	Payer  ledger.Participant
	Payee  ledger.Participant
	Amount money.Amount
}

// Format renders t as "B pays 30.00 to A".
func (t Transaction) Format(precision int32) string {
	return fmt.Sprintf("%s pays %s to %s", t.Payer, t.Amount.Format(precision), t.Payee)
}

// Settlement is an ordered list of transactions.
type Settlement []Transaction

// Total is the volume of money moved by s.
func (s Settlement) Total() money.Amount {
	var total money.Amount
	for _, t := range s {
		total += t.Amount
	}
	return total
}

// CalculateFlow computes a settlement for b with the greedy engine.
//
// PARAMETERS:
//   - b: The balance to settle. It is not modified.
//   - tol: Balances within tol.Amount of zero count as settled.
//
// RETURNS:
//   - The transactions in the order they were produced. An already settled
//     balance yields an empty, non-nil settlement.
//   - *UnbalancedLedgerError when the balances do not sum to zero.
func CalculateFlow(b balance.Balance, tol ledger.Tolerance) (Settlement, error) {
	if err := checkConservation(b, tol); err != nil {
		return nil, err
	}
	return greedy(b, tol), nil
}

func checkConservation(b balance.Balance, tol ledger.Tolerance) error {
	if sum := b.Sum(); !tol.IsZero(sum) {
		return &UnbalancedLedgerError{Sum: sum}
	}
	return nil
}

type position struct {
	participant ledger.Participant
	amount      money.Amount
}

// greedy settles b without checking conservation. The exact solver calls it
// per zero-sum group.
func greedy(b balance.Balance, tol ledger.Tolerance) Settlement {
	var creditors, debtors []position

	// Participants come back sorted, so both slices stay ordered by id and a
	// strict comparison below keeps the smallest id on ties.
	//
	// Balances inside the tolerance are kept as counterparties: they may be
	// needed to absorb a larger balance on the other side.
	for _, p := range b.Participants() {
		v := b[p]
		switch {
		case v > 0:
			creditors = append(creditors, position{participant: p, amount: v})
		case v < 0:
			debtors = append(debtors, position{participant: p, amount: v})
		}
	}

	flow := Settlement{}
	for len(creditors) > 0 && len(debtors) > 0 {
		ci := largestCredit(creditors)
		di := largestDebt(debtors)

		if tol.IsZero(creditors[ci].amount) && tol.IsZero(debtors[di].amount) {
			break
		}

		amount := money.Min(creditors[ci].amount, -debtors[di].amount)
		flow = append(flow, Transaction{
			Payer:  debtors[di].participant,
			Payee:  creditors[ci].participant,
			Amount: amount,
		})

		creditors[ci].amount -= amount
		debtors[di].amount += amount

		if creditors[ci].amount == 0 {
			creditors = append(creditors[:ci], creditors[ci+1:]...)
		}
		if debtors[di].amount == 0 {
			debtors = append(debtors[:di], debtors[di+1:]...)
		}
	}

	return flow
}

func largestCredit(ps []position) int {
	best := 0
	for i := 1; i < len(ps); i++ {
		if ps[i].amount > ps[best].amount {
			best = i
		}
	}
	return best
}

func largestDebt(ps []position) int {
	best := 0
	for i := 1; i < len(ps); i++ {
		if ps[i].amount < ps[best].amount {
			best = i
		}
	}
	return best
}

// =============================================================================
// CHECKS
// =============================================================================

// Apply returns a copy of b with every transaction of s applied: the payer's
// balance rises by the amount and the payee's falls by it.
func Apply(b balance.Balance, s Settlement) (balance.Balance, error) {
	out := b.Clone()
	for _, t := range s {
		if _, ok := out[t.Payer]; !ok {
			return nil, &ledger.UnknownParticipantError{Participant: t.Payer}
		}
		if _, ok := out[t.Payee]; !ok {
			return nil, &ledger.UnknownParticipantError{Participant: t.Payee}
		}
		out[t.Payer] += t.Amount
		out[t.Payee] -= t.Amount
	}
	return out, nil
}

// Verify checks that s is a valid settlement of b: every amount is positive,
// nobody pays themselves, at most n-1 transactions are used for n non-zero
// balances, and applying s leaves every balance within tolerance.
func Verify(b balance.Balance, s Settlement, tol ledger.Tolerance) error {
	for i, t := range s {
		if t.Amount <= 0 {
			return &InvalidSettlementError{Index: i, Reason: fmt.Sprintf("amount %d is not positive", t.Amount)}
		}
		if t.Payer == t.Payee {
			return &InvalidSettlementError{Index: i, Reason: fmt.Sprintf("%q pays themselves", t.Payer)}
		}
	}

	nonZero := 0
	for _, v := range b {
		if v != 0 {
			nonZero++
		}
	}
	if limit := max(nonZero-1, 0); len(s) > limit {
		return &InvalidSettlementError{
			Index:  -1,
			Reason: fmt.Sprintf("%d transactions for %d non-zero balances", len(s), nonZero),
		}
	}

	applied, err := Apply(b, s)
	if err != nil {
		return err
	}
	for _, p := range applied.Participants() {
		if !tol.IsZero(applied[p]) {
			return &InvalidSettlementError{
				Index:  -1,
				Reason: fmt.Sprintf("%q is left with %d minor units", p, applied[p]),
			}
		}
	}

	return nil
}
