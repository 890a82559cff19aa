package models

// InstallmentStatus is the settlement state of a scheduled due amount.
type InstallmentStatus string

const (
	InstallmentPending InstallmentStatus = "pending"
	InstallmentPaid    InstallmentStatus = "paid"
)

// LedgerStatus is the review state of a payment ledger entry.
type LedgerStatus string

const (
	LedgerPendingReview LedgerStatus = "pending_review"
	LedgerInReview      LedgerStatus = "in_review"
	LedgerApproved      LedgerStatus = "approved"
	LedgerRejected      LedgerStatus = "rejected"
	LedgerVoided        LedgerStatus = "voided"
)

// Reviewable reports whether an entry can still be matched by a bank record.
func (s LedgerStatus) Reviewable() bool {
	return s == LedgerPendingReview || s == LedgerInReview
}

// LedgerSource records which path created a ledger entry.
type LedgerSource string

const (
	SourceSelfService LedgerSource = "self_service"
	SourceHistorical  LedgerSource = "historical_import"
	SourceManual      LedgerSource = "manual"
)

// BankRecordStatus is the reconciliation state of a bank statement line.
type BankRecordStatus string

const (
	BankRecordUploaded   BankRecordStatus = "uploaded"
	BankRecordReconciled BankRecordStatus = "reconciled"
	BankRecordRejected   BankRecordStatus = "rejected"
)

// EnrollmentStatus is the lifecycle state of an enrollment.
type EnrollmentStatus string

const (
	EnrollmentActive    EnrollmentStatus = "active"
	EnrollmentCompleted EnrollmentStatus = "completed"
	EnrollmentWithdrawn EnrollmentStatus = "withdrawn"
)

type ImportKind string

const (
	ImportBankStatement ImportKind = "bank_statement"
	ImportHistorical    ImportKind = "historical"
)

type ImportStatus string

const (
	ImportRunning   ImportStatus = "running"
	ImportCompleted ImportStatus = "completed"
	ImportAborted   ImportStatus = "aborted"
)
