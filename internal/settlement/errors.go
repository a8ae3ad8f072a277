package settlement

import (
	"errors"
	"fmt"

	"github.com/ginjaninja78/concourse/internal/ledger"
	"github.com/ginjaninja78/concourse/internal/money"
)

var (
	// ErrUnbalancedLedger is returned when the balances handed to the engine
	// do not sum to zero within the amount tolerance.
	ErrUnbalancedLedger = errors.New("balances do not sum to zero")

	// ErrTooManyParticipants is returned by the exact solver above its limit.
	ErrTooManyParticipants = errors.New("too many participants for the exact solver")

	// ErrInvalidSettlement is returned by Verify.
	ErrInvalidSettlement = errors.New("invalid settlement")

	// ErrUnknownSolver is returned for a solver name that is not registered.
	ErrUnknownSolver = errors.New("unknown solver")
)

// UnbalancedLedgerError carries the non-zero sum of the rejected balance.
type UnbalancedLedgerError struct {
	Sum money.Amount
}

func (e *UnbalancedLedgerError) Error() string {
	return fmt.Sprintf("balances sum to %d minor units, expected 0", e.Sum)
}

func (e *UnbalancedLedgerError) Unwrap() error          { return ErrUnbalancedLedger }
func (e *UnbalancedLedgerError) ErrorCode() ledger.Code { return ledger.CodeUnbalancedLedger }

// TooManyParticipantsError reports an input the exact solver refuses.
type TooManyParticipantsError struct {
	Count int
	Limit int
}

func (e *TooManyParticipantsError) Error() string {
	return fmt.Sprintf("exact solver supports at most %d participants with a non-zero balance, got %d", e.Limit, e.Count)
}

func (e *TooManyParticipantsError) Unwrap() error          { return ErrTooManyParticipants }
func (e *TooManyParticipantsError) ErrorCode() ledger.Code { return ledger.CodeTooManyParticipants }

// InvalidSettlementError describes why Verify rejected a settlement. Index is
// the offending transaction, or -1 when the settlement as a whole is wrong.
type InvalidSettlementError struct {
	Index  int
	Reason string
}

func (e *InvalidSettlementError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("invalid settlement: %s", e.Reason)
	}
	return fmt.Sprintf("invalid settlement: transaction %d: %s", e.Index, e.Reason)
}

func (e *InvalidSettlementError) Unwrap() error          { return ErrInvalidSettlement }
func (e *InvalidSettlementError) ErrorCode() ledger.Code { return ledger.CodeInvalidSettlement }
