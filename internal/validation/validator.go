// =============================================================================
// Concourse - Validation Engine
// =============================================================================
//
// Collects every problem in a ledger so a user can fix a book in one pass.
// Validation runs at two levels:
//   1. Ledger rules: the checks of ledger.ValidateAll. Any failure here is
//      an error and stops the settlement.
//   2. Advisory rules: things that are legal but usually a mistake, such as
//      a participant that appears on no bill. These are warnings.
//
// ERROR HANDLING:
//   - Errors are collected, not returned one at a time
//   - Each entry carries its code, bill and participant for the error log
//   - Warnings only fail validation with TreatWarningsAsErrors
//
// =============================================================================

package validation

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ginjaninja78/concourse/internal/book"
	"github.com/ginjaninja78/concourse/internal/ledger"
	"github.com/ginjaninja78/concourse/pkg/utils"
)

// Severity levels.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// Codes of the advisory rules.
const (
	CodeUnusedParticipant ledger.Code = "UNUSED_PARTICIPANT"
	CodeEmptyBill         ledger.Code = "EMPTY_BILL"
)

// =============================================================================
// VALIDATION ERROR TYPES
// =============================================================================

// ValidationError represents a single validation finding.
type ValidationError struct {
	// Severity is SeverityError or SeverityWarning.
	Severity string

	// Code classifies the finding.
	Code ledger.Code

	// BillID is the bill the finding is about, if any.
	BillID string

	// Participant is the participant the finding is about, if any.
	Participant ledger.Participant

	// Message is a human-readable message.
	Message string

	// RowNumber is the source row for grid books, 0 when unknown.
	RowNumber int

	// Err is the underlying error for ledger rule failures.
	Err error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", strings.ToUpper(e.Severity), e.Code, e.Message)
}

// Unwrap returns the underlying ledger error.
func (e *ValidationError) Unwrap() error { return e.Err }

// FromError describes err as a validation error, pulling bill, participant
// and row details out of the known error types.
func FromError(err error) *ValidationError {
	ve := &ValidationError{
		Severity: SeverityError,
		Code:     ledger.CodeOf(err),
		Message:  err.Error(),
		Err:      err,
	}

	var (
		share   *ledger.ShareMismatchError
		unknown *ledger.UnknownParticipantError
		neg     *ledger.NegativePaymentError
		dup     *ledger.DuplicateParticipantError
		invalid *ledger.InvalidParticipantError
		dupBill *ledger.DuplicateBillError
		badBill *ledger.InvalidBillError
		row     *book.RowError
	)
	switch {
	case errors.As(err, &share):
		ve.BillID, ve.Participant = share.BillID, share.Participant
	case errors.As(err, &unknown):
		ve.BillID, ve.Participant = unknown.BillID, unknown.Participant
	case errors.As(err, &neg):
		ve.BillID, ve.Participant = neg.BillID, neg.Participant
	case errors.As(err, &dup):
		ve.Participant = dup.Participant
	case errors.As(err, &invalid):
		ve.Participant = invalid.Participant
	case errors.As(err, &dupBill):
		ve.BillID = dupBill.BillID
	case errors.As(err, &badBill):
		ve.BillID = badBill.BillID
	}
	if errors.As(err, &row) {
		ve.RowNumber = row.Row
	}

	return ve
}

// =============================================================================
// VALIDATION RESULT
// =============================================================================

// ValidationResult contains the results of validation.
type ValidationResult struct {
	// IsValid is true if there are no fatal errors.
	IsValid bool

	// Errors contains all findings, errors first.
	Errors []*ValidationError

	// ErrorCount is the number of fatal errors.
	ErrorCount int

	// WarningCount is the number of warnings.
	WarningCount int

	// BillsValidated is the number of bills checked.
	BillsValidated int

	// ParticipantsValidated is the number of participants checked.
	ParticipantsValidated int
}

// Err returns the first fatal error, or nil.
func (r *ValidationResult) Err() error {
	for _, e := range r.Errors {
		if e.Severity == SeverityError {
			return e
		}
	}
	return nil
}

// =============================================================================
// VALIDATOR
// =============================================================================

// Rule is an advisory check. It returns warnings for the ledger.
type Rule func(l *ledger.Ledger) []*ValidationError

// ValidationOptions contains options for validation.
type ValidationOptions struct {
	// Tolerance is passed to the ledger rules.
	Tolerance ledger.Tolerance

	// StopOnFirstError stops after the first fatal error.
	StopOnFirstError bool

	// TreatWarningsAsErrors fails validation on warnings too.
	TreatWarningsAsErrors bool

	// Rules are the advisory rules. Nil selects DefaultRules.
	Rules []Rule
}

// DefaultValidationOptions returns the default validation options.
func DefaultValidationOptions() ValidationOptions {
	return ValidationOptions{
		Tolerance: ledger.DefaultTolerance(),
		Rules:     DefaultRules(),
	}
}

// DefaultRules returns the built-in advisory rules.
func DefaultRules() []Rule {
	return []Rule{UnusedParticipants, EmptyBills}
}

// Validator validates ledgers.
type Validator struct {
	options ValidationOptions
}

// NewValidator creates a Validator with default options and the given
// tolerance.
func NewValidator(tol ledger.Tolerance) *Validator {
	options := DefaultValidationOptions()
	options.Tolerance = tol
	return &Validator{options: options}
}

// NewValidatorWithOptions creates a Validator with custom options.
func NewValidatorWithOptions(options ValidationOptions) *Validator {
	if options.Rules == nil {
		options.Rules = DefaultRules()
	}
	return &Validator{options: options}
}

// =============================================================================
// MAIN VALIDATION FUNCTION
// =============================================================================

// Validate validates a ledger with default options and returns all findings.
func Validate(l *ledger.Ledger, tol ledger.Tolerance) []*ValidationError {
	return NewValidator(tol).ValidateAll(l).Errors
}

// ValidateAll validates a ledger and returns a detailed result.
func (v *Validator) ValidateAll(l *ledger.Ledger) *ValidationResult {
	result := &ValidationResult{
		IsValid:               true,
		BillsValidated:        len(l.Bills),
		ParticipantsValidated: len(l.Participants),
	}

	var ruleErrors []error
	if v.options.StopOnFirstError {
		if err := l.Validate(v.options.Tolerance); err != nil {
			ruleErrors = append(ruleErrors, err)
		}
	} else {
		ruleErrors = l.ValidateAll(v.options.Tolerance)
	}

	for _, err := range ruleErrors {
		result.add(FromError(err), v.options.TreatWarningsAsErrors)
	}
	if v.options.StopOnFirstError && !result.IsValid {
		return result
	}

	for _, rule := range v.options.Rules {
		for _, w := range rule(l) {
			result.add(w, v.options.TreatWarningsAsErrors)
		}
	}

	return result
}

func (r *ValidationResult) add(e *ValidationError, warningsAreErrors bool) {
	r.Errors = append(r.Errors, e)

	if e.Severity == SeverityError {
		r.ErrorCount++
		r.IsValid = false
		return
	}

	r.WarningCount++
	if warningsAreErrors {
		r.IsValid = false
	}
}

// =============================================================================
// ADVISORY RULES
// =============================================================================

// UnusedParticipants warns about participants that appear on no bill.
func UnusedParticipants(l *ledger.Ledger) []*ValidationError {
	used := make(map[ledger.Participant]bool)
	for _, b := range l.Bills {
		for p := range b.Records {
			used[p] = true
		}
	}

	var out []*ValidationError
	for _, p := range l.Participants {
		if used[p] {
			continue
		}
		out = append(out, &ValidationError{
			Severity:    SeverityWarning,
			Code:        CodeUnusedParticipant,
			Participant: p,
			Message:     fmt.Sprintf("participant %q is not on any bill", p),
		})
	}
	return out
}

// EmptyBills warns about bills nobody paid anything towards.
func EmptyBills(l *ledger.Ledger) []*ValidationError {
	var out []*ValidationError
	for _, id := range l.BillIDs() {
		if l.Bills[id].Total() != 0 {
			continue
		}
		out = append(out, &ValidationError{
			Severity: SeverityWarning,
			Code:     CodeEmptyBill,
			BillID:   id,
			Message:  fmt.Sprintf("bill %q has a total of zero", id),
		})
	}
	return out
}

// =============================================================================
// ERROR FORMATTING
// =============================================================================

// FormatErrors formats validation findings for display or logging.
func FormatErrors(errs []*ValidationError) string {
	if len(errs) == 0 {
		return "No validation errors."
	}

	var builder strings.Builder

	builder.WriteString(fmt.Sprintf("Validation completed with %d finding(s):\n\n", len(errs)))

	for i, err := range errs {
		builder.WriteString(fmt.Sprintf("%d. %s\n", i+1, err.Error()))
	}

	return builder.String()
}

// ToLogEntries converts findings into error log entries for fileName.
func ToLogEntries(fileName string, errs []*ValidationError) []utils.ErrorLogEntry {
	now := time.Now()

	entries := make([]utils.ErrorLogEntry, 0, len(errs))
	for _, e := range errs {
		entries = append(entries, utils.ErrorLogEntry{
			Timestamp:   now,
			FileName:    fileName,
			ErrorCode:   string(e.Code),
			Message:     e.Message,
			BillID:      e.BillID,
			Participant: string(e.Participant),
			RowNumber:   e.RowNumber,
		})
	}
	return entries
}

// WriteErrorLog writes findings to filePath.
func WriteErrorLog(errs []*ValidationError, filePath string) error {
	return utils.WriteFileAtomic(filePath, []byte(FormatErrors(errs)), 0o644)
}
