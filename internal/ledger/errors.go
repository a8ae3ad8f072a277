package ledger

import (
	"errors"
	"fmt"

	"github.com/ginjaninja78/concourse/internal/money"
	"github.com/shopspring/decimal"
)

// Code classifies ledger and settlement failures for reports and logs.
type Code string

const (
	CodeShareMismatch        Code = "SHARE_MISMATCH"
	CodeUnknownParticipant   Code = "UNKNOWN_PARTICIPANT"
	CodeNegativePayment      Code = "NEGATIVE_PAYMENT"
	CodeDuplicateParticipant Code = "DUPLICATE_PARTICIPANT"
	CodeInvalidParticipant   Code = "INVALID_PARTICIPANT"
	CodeParticipantInUse     Code = "PARTICIPANT_IN_USE"
	CodeDuplicateBill        Code = "DUPLICATE_BILL"
	CodeInvalidBill          Code = "INVALID_BILL"
	CodeUnknownBill          Code = "UNKNOWN_BILL"
	CodeUnbalancedLedger     Code = "UNBALANCED_LEDGER"
	CodeTooManyParticipants  Code = "TOO_MANY_PARTICIPANTS"
	CodeInvalidSettlement    Code = "INVALID_SETTLEMENT"
	CodeUnknown              Code = "UNKNOWN"
)

// Sentinels for errors.Is. Every typed error below unwraps to one of them.
var (
	ErrShareMismatch        = errors.New("shares do not sum to one")
	ErrUnknownParticipant   = errors.New("unknown participant")
	ErrNegativePayment      = errors.New("negative payment")
	ErrDuplicateParticipant = errors.New("duplicate participant")
	ErrInvalidParticipant   = errors.New("invalid participant")
	ErrParticipantInUse     = errors.New("participant in use")
	ErrDuplicateBill        = errors.New("duplicate bill")
	ErrInvalidBill          = errors.New("invalid bill")
	ErrUnknownBill          = errors.New("unknown bill")
)

// Coded is implemented by every domain error in this module.
type Coded interface {
	error
	ErrorCode() Code
}

// CodeOf returns the domain code carried by err, or CodeUnknown.
func CodeOf(err error) Code {
	var coded Coded
	if errors.As(err, &coded) {
		return coded.ErrorCode()
	}
	return CodeUnknown
}

// ShareMismatchError reports a bill whose shares do not sum to one, or a
// bill carrying a share outside [0, 1] (Participant is set in that case).
type ShareMismatchError struct {
	BillID      string
	Sum         decimal.Decimal
	Participant Participant
}

func (e *ShareMismatchError) Error() string {
	if e.Participant != "" {
		return fmt.Sprintf("bill %q: share of %q is outside [0, 1]", e.BillID, e.Participant)
	}
	return fmt.Sprintf("bill %q: shares sum to %s, expected 1", e.BillID, e.Sum.String())
}

func (e *ShareMismatchError) Unwrap() error   { return ErrShareMismatch }
func (e *ShareMismatchError) ErrorCode() Code { return CodeShareMismatch }

// UnknownParticipantError reports a participant that is not a ledger
// member. BillID is empty when the lookup was not bill related.
type UnknownParticipantError struct {
	BillID      string
	Participant Participant
}

func (e *UnknownParticipantError) Error() string {
	if e.BillID == "" {
		return fmt.Sprintf("unknown participant %q", e.Participant)
	}
	return fmt.Sprintf("bill %q: unknown participant %q", e.BillID, e.Participant)
}

func (e *UnknownParticipantError) Unwrap() error   { return ErrUnknownParticipant }
func (e *UnknownParticipantError) ErrorCode() Code { return CodeUnknownParticipant }

// NegativePaymentError reports a negative payment on a bill.
type NegativePaymentError struct {
	BillID      string
	Participant Participant
	Payment     money.Amount
}

func (e *NegativePaymentError) Error() string {
	return fmt.Sprintf("bill %q: payment of %q is negative (%d minor units)", e.BillID, e.Participant, e.Payment)
}

func (e *NegativePaymentError) Unwrap() error   { return ErrNegativePayment }
func (e *NegativePaymentError) ErrorCode() Code { return CodeNegativePayment }

// DuplicateParticipantError reports a participant listed twice.
type DuplicateParticipantError struct {
	Participant Participant
}

func (e *DuplicateParticipantError) Error() string {
	return fmt.Sprintf("participant %q is listed more than once", e.Participant)
}

func (e *DuplicateParticipantError) Unwrap() error   { return ErrDuplicateParticipant }
func (e *DuplicateParticipantError) ErrorCode() Code { return CodeDuplicateParticipant }

// InvalidParticipantError reports an empty participant identifier.
type InvalidParticipantError struct {
	Participant Participant
}

func (e *InvalidParticipantError) Error() string {
	return fmt.Sprintf("invalid participant identifier %q", e.Participant)
}

func (e *InvalidParticipantError) Unwrap() error   { return ErrInvalidParticipant }
func (e *InvalidParticipantError) ErrorCode() Code { return CodeInvalidParticipant }

// ParticipantInUseError is returned when removing a participant that a bill
// still references.
type ParticipantInUseError struct {
	Participant Participant
	BillID      string
}

func (e *ParticipantInUseError) Error() string {
	return fmt.Sprintf("participant %q is still referenced by bill %q", e.Participant, e.BillID)
}

func (e *ParticipantInUseError) Unwrap() error   { return ErrParticipantInUse }
func (e *ParticipantInUseError) ErrorCode() Code { return CodeParticipantInUse }

// DuplicateBillError reports a bill id that is already taken.
type DuplicateBillError struct {
	BillID string
}

func (e *DuplicateBillError) Error() string {
	return fmt.Sprintf("bill %q already exists", e.BillID)
}

func (e *DuplicateBillError) Unwrap() error   { return ErrDuplicateBill }
func (e *DuplicateBillError) ErrorCode() Code { return CodeDuplicateBill }

// InvalidBillError reports an empty bill identifier.
type InvalidBillError struct {
	BillID string
}

func (e *InvalidBillError) Error() string {
	return fmt.Sprintf("invalid bill identifier %q", e.BillID)
}

func (e *InvalidBillError) Unwrap() error   { return ErrInvalidBill }
func (e *InvalidBillError) ErrorCode() Code { return CodeInvalidBill }

// UnknownBillError reports a bill id that does not exist.
type UnknownBillError struct {
	BillID string
}

func (e *UnknownBillError) Error() string {
	return fmt.Sprintf("unknown bill %q", e.BillID)
}

func (e *UnknownBillError) Unwrap() error   { return ErrUnknownBill }
func (e *UnknownBillError) ErrorCode() Code { return CodeUnknownBill }
