// =============================================================================
// Concourse - Balance Calculator
// =============================================================================
//
// Reduces a ledger to one net amount per participant:
//
//   balance[p] = Σ over bills ( payment[p] - share[p] * total )
//
// Positive means the group owes p money; negative means p owes the group.
//
// The share part of every bill is materialised with money.Allocate, so the
// owed amounts of one bill add up to the bill total to the last minor unit.
// That keeps the sum of all balances at exactly zero for every valid ledger.
//
// =============================================================================

package balance

import (
	"fmt"

	"github.com/ginjaninja78/concourse/internal/ledger"
	"github.com/ginjaninja78/concourse/internal/money"
	"github.com/shopspring/decimal"
)

// Balance maps every ledger participant to their net position.
type Balance map[ledger.Participant]money.Amount

// Sum adds up all balances. It is zero for any balance produced by Calculate.
func (b Balance) Sum() money.Amount {
	var sum money.Amount
	for _, v := range b {
		sum += v
	}
	return sum
}

// Participants returns the participants of b, sorted by identifier.
func (b Balance) Participants() []ledger.Participant {
	out := make([]ledger.Participant, 0, len(b))
	for p := range b {
		out = append(out, p)
	}
	ledger.SortParticipants(out)
	return out
}

// Clone returns an independent copy of b.
func (b Balance) Clone() Balance {
	c := make(Balance, len(b))
	for p, v := range b {
		c[p] = v
	}
	return c
}

// Settled reports whether every balance is within the amount tolerance.
func (b Balance) Settled(tol ledger.Tolerance) bool {
	for _, v := range b {
		if !tol.IsZero(v) {
			return false
		}
	}
	return true
}

// Calculate computes the balance of every ledger participant.
//
// PARAMETERS:
//   - l: The ledger. It is not modified.
//   - tol: Tolerances used for validation.
//
// RETURNS:
//   - A balance holding every ledger participant, including those who never
//     appear on a bill (their balance is zero).
//   - The first validation error of the ledger, unchanged, if it is invalid.
func Calculate(l *ledger.Ledger, tol ledger.Tolerance) (Balance, error) {
	if err := l.Validate(tol); err != nil {
		return nil, err
	}

	result := make(Balance, len(l.Participants))
	for _, p := range l.Participants {
		result[p] = 0
	}

	for _, id := range l.BillIDs() {
		rows, err := contribute(l.Bills[id])
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			result[row.Participant] += row.Net
		}
	}

	return result, nil
}

// =============================================================================
// BREAKDOWN
// =============================================================================

// ContributionRow is one participant's part of one bill.
type ContributionRow struct {
	Participant ledger.Participant
	Share       decimal.Decimal
	Paid        money.Amount
	Owed        money.Amount
	Net         money.Amount
}

// BillContribution explains how a single bill moves the balances.
type BillContribution struct {
	BillID string
	Total  money.Amount
	Rows   []ContributionRow
}

// Breakdown returns the per-bill contributions behind Calculate, ordered by
// bill id with rows ordered by participant.
func Breakdown(l *ledger.Ledger, tol ledger.Tolerance) ([]BillContribution, error) {
	if err := l.Validate(tol); err != nil {
		return nil, err
	}

	out := make([]BillContribution, 0, len(l.Bills))
	for _, id := range l.BillIDs() {
		b := l.Bills[id]
		rows, err := contribute(b)
		if err != nil {
			return nil, err
		}
		out = append(out, BillContribution{BillID: id, Total: b.Total(), Rows: rows})
	}

	return out, nil
}

func contribute(b *ledger.Bill) ([]ContributionRow, error) {
	participants := b.Participants()
	shares := make([]decimal.Decimal, len(participants))
	for i, p := range participants {
		shares[i] = b.Records[p].Share
	}

	owed, err := money.Allocate(b.Total(), shares)
	if err != nil {
		return nil, fmt.Errorf("bill %q: %w", b.ID, err)
	}

	rows := make([]ContributionRow, len(participants))
	for i, p := range participants {
		paid := b.Records[p].Payment
		rows[i] = ContributionRow{
			Participant: p,
			Share:       shares[i],
			Paid:        paid,
			Owed:        owed[i],
			Net:         paid - owed[i],
		}
	}

	return rows, nil
}
