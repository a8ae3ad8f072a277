package settlement

import (
	"math/bits"
	"sort"

	"github.com/ginjaninja78/concourse/internal/balance"
	"github.com/ginjaninja78/concourse/internal/ledger"
	"github.com/ginjaninja78/concourse/internal/money"
)

const (
	// DefaultExactLimit is the participant limit used when none is given.
	DefaultExactLimit = 16

	// MaxExactLimit caps the limit; the solver keeps 2^n subset sums.
	MaxExactLimit = 20
)

// CalculateFlowExact computes a settlement with the fewest possible
// transactions.
//
// The participants with a non-zero balance are partitioned into the largest
// number of groups whose balances sum to zero; each group is then settled with the
// greedy engine. A group of k participants never needs more than k-1
// transactions, so the result uses n minus the number of groups, which is
// optimal.
//
// PARAMETERS:
//   - b: The balance to settle. It is not modified.
//   - tol: Amount tolerance, as for CalculateFlow.
//   - limit: Largest number of non-zero balances accepted. Zero or
//     negative selects DefaultExactLimit; values above MaxExactLimit are
//     clamped.
//
// RETURNS:
//   - Transactions grouped by zero-sum group, groups ordered by their first
//     participant.
//   - *UnbalancedLedgerError or *TooManyParticipantsError.
func CalculateFlowExact(b balance.Balance, tol ledger.Tolerance, limit int) (Settlement, error) {
	if err := checkConservation(b, tol); err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = DefaultExactLimit
	}
	limit = min(limit, MaxExactLimit)

	var (
		names   []ledger.Participant
		amounts []money.Amount
	)
	for _, p := range b.Participants() {
		if v := b[p]; v != 0 {
			names = append(names, p)
			amounts = append(amounts, v)
		}
	}

	n := len(names)
	if n > limit {
		return nil, &TooManyParticipantsError{Count: n, Limit: limit}
	}
	if n == 0 {
		return Settlement{}, nil
	}

	flow := Settlement{}
	for _, group := range zeroSumGroups(amounts, tol) {
		part := make(balance.Balance, bits.OnesCount(group))
		for i := 0; i < n; i++ {
			if group&(1<<i) != 0 {
				part[names[i]] = amounts[i]
			}
		}
		flow = append(flow, greedy(part, tol)...)
	}

	return flow, nil
}

// zeroSumGroups partitions the indexes of amounts into the largest number of
// groups with a zero sum. Groups are returned as bitmasks ordered by their
// lowest set bit.
func zeroSumGroups(amounts []money.Amount, tol ledger.Tolerance) []uint {
	n := len(amounts)
	size := uint(1) << n
	full := size - 1

	sum := make([]money.Amount, size)
	for mask := uint(1); mask < size; mask++ {
		low := bits.TrailingZeros(mask)
		sum[mask] = sum[mask&(mask-1)] + amounts[low]
	}

	closes := func(mask uint) uint8 {
		if tol.IsZero(sum[mask]) {
			return 1
		}
		return 0
	}

	// best[mask] is the largest number of zero-sum prefixes over all
	// orderings of the members of mask.
	best := make([]uint8, size)
	for mask := uint(1); mask < size; mask++ {
		var top uint8
		for rest := mask; rest != 0; rest &= rest - 1 {
			bit := rest & -rest
			if v := best[mask^bit]; v > top {
				top = v
			}
		}
		best[mask] = top + closes(mask)
	}

	// Walk back from the full set, cutting a group at every zero-sum prefix.
	var groups []uint
	boundary := full
	for cur := full; cur != 0; {
		want := best[cur] - closes(cur)
		for rest := cur; rest != 0; rest &= rest - 1 {
			bit := rest & -rest
			if best[cur^bit] == want {
				cur ^= bit
				break
			}
		}
		if cur == 0 || closes(cur) == 1 {
			groups = append(groups, boundary^cur)
			boundary = cur
		}
	}

	sort.Slice(groups, func(i, j int) bool {
		return bits.TrailingZeros(groups[i]) < bits.TrailingZeros(groups[j])
	})

	return groups
}
