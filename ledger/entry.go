// Package ledger holds the installment and payment ledger rules: how entries
// are created, how an installment gets settled, plan generation and the
// batch-scoped lookup cache.
package ledger

import (
	"time"

	"github.com/anjiri1684/tuition_billing/fingerprint"
	"github.com/anjiri1684/tuition_billing/models"
	"github.com/anjiri1684/tuition_billing/normalize"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreationMode is chosen explicitly by every path that creates a ledger
// entry; it decides the entry's initial status.
type CreationMode string

const (
	ModeSelfService CreationMode = "self_service"
	ModeHistorical  CreationMode = "historical_import"
	ModeManual      CreationMode = "manual"
)

func (m CreationMode) InitialStatus() models.LedgerStatus {
	switch m {
	case ModeSelfService, ModeHistorical:
		return models.LedgerApproved
	default:
		return models.LedgerPendingReview
	}
}

func (m CreationMode) Source() models.LedgerSource {
	switch m {
	case ModeSelfService:
		return models.SourceSelfService
	case ModeHistorical:
		return models.SourceHistorical
	default:
		return models.SourceManual
	}
}

type EntryInput struct {
	EnrollmentID  uuid.UUID
	InstallmentID *uuid.UUID
	Amount        decimal.Decimal
	PaymentDate   time.Time
	ReceiptDate   *time.Time
	Bank          string
	ReceiptNumber string
	ProofFileHash *string
	ProofURL      *string
	Concept       *string
	ActorID       *uuid.UUID
}

// NewEntry builds an unsaved ledger entry with normalized fields and its
// uniqueness key. The second return value is any compound-reference remainder
// the caller should log.
func NewEntry(mode CreationMode, in EntryInput, now time.Time) (models.PaymentLedgerEntry, string) {
	bankNorm := normalize.Bank(in.Bank)
	receiptNorm, remainder := normalize.Reference(in.ReceiptNumber)
	paymentDate := normalize.Day(in.PaymentDate)

	entry := models.PaymentLedgerEntry{
		EnrollmentID:      in.EnrollmentID,
		InstallmentID:     in.InstallmentID,
		Amount:            in.Amount,
		PaymentDate:       paymentDate,
		ReceiptDate:       in.ReceiptDate,
		Bank:              in.Bank,
		BankNormalized:    bankNorm,
		ReceiptNumber:     in.ReceiptNumber,
		ReceiptNormalized: receiptNorm,
		ProofFileHash:     in.ProofFileHash,
		ProofURL:          in.ProofURL,
		EntryKey:          fingerprint.LedgerKey(in.EnrollmentID, bankNorm, receiptNorm, paymentDate),
		Source:            mode.Source(),
		Concept:           in.Concept,
		Status:            mode.InitialStatus(),
	}
	if entry.Status == models.LedgerApproved {
		at := now
		entry.ApprovedAt = &at
		entry.ApprovedBy = in.ActorID
	}
	return entry, remainder
}

// BankFingerprint recomputes the bank-record fingerprint an entry would have
// if the bank reported it.
func BankFingerprint(e models.PaymentLedgerEntry) string {
	return fingerprint.Bank(e.BankNormalized, e.ReceiptNormalized, e.Amount, e.PaymentDate)
}

// Insert saves a new entry. Unique-index hits come back as *DuplicateError.
func Insert(tx *gorm.DB, entry *models.PaymentLedgerEntry) error {
	if err := tx.Omit(clause.Associations).Create(entry).Error; err != nil {
		if IsUniqueViolation(err) {
			return &DuplicateError{Kind: "ledger_entry", Message: "this payment was already recorded for the enrollment"}
		}
		return err
	}
	return nil
}
