package ledger

import (
	"github.com/ginjaninja78/concourse/internal/money"
	"github.com/shopspring/decimal"
)

// Tolerance holds the "effectively zero" thresholds shared by the balance
// calculator and the settlement engine.
type Tolerance struct {
	// Share is the allowed deviation of a bill's share sum from 1.
	Share decimal.Decimal

	// Amount is the largest balance, in minor units, treated as settled.
	Amount money.Amount
}

// DefaultTolerance returns a share tolerance of 1e-6 and exact amounts.
func DefaultTolerance() Tolerance {
	return Tolerance{Share: decimal.New(1, -6), Amount: 0}
}

// IsZero reports whether a is within the amount tolerance of zero.
func (t Tolerance) IsZero(a money.Amount) bool {
	return a.Abs() <= t.Amount
}

var one = decimal.NewFromInt(1)

// Validate checks the ledger invariants and returns the first violation.
//
// Bills are checked in id order and participants in identifier order, so
// the reported error is deterministic. Within a bill the checks run in the
// order unknown participant, negative payment, share mismatch.
func (l *Ledger) Validate(tol Tolerance) error {
	errs := l.validate(tol, true)
	if len(errs) == 0 {
		return nil
	}
	return errs[0]
}

// ValidateAll checks the ledger invariants and returns every violation.
func (l *Ledger) ValidateAll(tol Tolerance) []error {
	return l.validate(tol, false)
}

func (l *Ledger) validate(tol Tolerance, stopOnFirst bool) []error {
	var errs []error

	members := make(map[Participant]struct{}, len(l.Participants))
	for _, p := range l.Participants {
		if _, dup := members[p]; dup {
			errs = append(errs, &DuplicateParticipantError{Participant: p})
			if stopOnFirst {
				return errs
			}
		}
		members[p] = struct{}{}
	}

	for _, id := range l.BillIDs() {
		for _, err := range validateBill(l.Bills[id], members, tol) {
			errs = append(errs, err)
			if stopOnFirst {
				return errs
			}
		}
	}

	return errs
}

func validateBill(b *Bill, members map[Participant]struct{}, tol Tolerance) []error {
	var errs []error
	participants := b.Participants()

	for _, p := range participants {
		if _, ok := members[p]; !ok {
			errs = append(errs, &UnknownParticipantError{BillID: b.ID, Participant: p})
		}
	}

	for _, p := range participants {
		if payment := b.Records[p].Payment; payment < 0 {
			errs = append(errs, &NegativePaymentError{BillID: b.ID, Participant: p, Payment: payment})
		}
	}

	for _, p := range participants {
		share := b.Records[p].Share
		if share.IsNegative() || share.GreaterThan(one) {
			errs = append(errs, &ShareMismatchError{BillID: b.ID, Sum: b.ShareSum(), Participant: p})
		}
	}

	sum := b.ShareSum()
	if sum.Sub(one).Abs().GreaterThan(tol.Share) {
		errs = append(errs, &ShareMismatchError{BillID: b.ID, Sum: sum})
	}

	return errs
}
