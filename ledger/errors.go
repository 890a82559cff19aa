package ledger

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

var (
	ErrInstallmentAlreadyPaid = errors.New("installment is already paid")
	ErrRecordAlreadyLinked    = errors.New("bank statement record is already reconciled")
	ErrEntryNotReviewable     = errors.New("ledger entry is not in a reviewable state")
	ErrPlanExists             = errors.New("enrollment already has an installment plan")
	ErrStorageUnavailable     = errors.New("storage unavailable")
)

// ValidationError is a missing or malformed field on one input row. The row
// is skipped and the batch continues.
type ValidationError struct {
	Row    int    `json:"row"`
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e *ValidationError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("row %d: %s %s", e.Row, e.Field, e.Reason)
	}
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// DuplicateError means the event was already recorded. Batches count it as
// skipped; self-service callers get Message back.
type DuplicateError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (e *DuplicateError) Error() string {
	return e.Message
}

func IsDuplicate(err error) bool {
	var dup *DuplicateError
	return errors.As(err, &dup)
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsUniqueViolation recognizes unique-index violations from postgres and
// sqlite, translated or not.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}

type WarningKind string

const (
	WarningUnresolvedMatch    WarningKind = "unresolved_match"
	WarningAmountMismatch     WarningKind = "amount_mismatch"
	WarningReferenceRemainder WarningKind = "reference_remainder"
	WarningAmbiguousMatch     WarningKind = "ambiguous_match"
)

// Warning is persisted alongside the data it concerns and queued for an
// operator to look at.
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Row     int         `json:"row,omitempty"`
	Message string      `json:"message"`
}

func (w Warning) String() string {
	if w.Row > 0 {
		return fmt.Sprintf("row %d: [%s] %s", w.Row, w.Kind, w.Message)
	}
	return fmt.Sprintf("[%s] %s", w.Kind, w.Message)
}

// WarningSink receives warnings that need operator attention.
type WarningSink interface {
	Push(w Warning)
}
