package services

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/anjiri1684/tuition_billing/ledger"
	"github.com/anjiri1684/tuition_billing/models"
	"github.com/anjiri1684/tuition_billing/reconciliation"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ManualEntryIn is a payment an operator types in from paper evidence.
type ManualEntryIn struct {
	EnrollmentID  uuid.UUID       `json:"enrollment_id" validate:"required"`
	InstallmentID *uuid.UUID      `json:"installment_id"`
	Amount        decimal.Decimal `json:"amount" validate:"-"`
	PaymentDate   time.Time       `json:"payment_date" validate:"required"`
	Bank          string          `json:"bank" validate:"required,max=120"`
	ReceiptNumber string          `json:"receipt_number" validate:"required,max=120"`
	Concept       string          `json:"concept" validate:"max=255"`
	ActorID       *uuid.UUID      `json:"-"`
}

type EntryResult struct {
	Entry        models.PaymentLedgerEntry   `json:"entry"`
	Installment  *models.Installment         `json:"installment,omitempty"`
	LinkedRecord *models.BankStatementRecord `json:"linked_bank_record,omitempty"`
	Warnings     []ledger.Warning            `json:"warnings"`
}

type LedgerService struct {
	Deps
	Recon *reconciliation.Service
}

// ManualEntry records a pending_review entry. If the bank already reported
// the same movement the entry is reconciled and settled right away.
func (s *LedgerService) ManualEntry(ctx context.Context, in ManualEntryIn) (*EntryResult, error) {
	if err := validate.Struct(in); err != nil {
		return nil, validationError(err)
	}
	if !in.Amount.IsPositive() {
		return nil, &ledger.ValidationError{Field: "amount", Reason: "must be positive"}
	}
	db := s.DB.WithContext(ctx)

	var enrollment models.Enrollment
	if err := db.First(&enrollment, "id = ?", in.EnrollmentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &ledger.ValidationError{Field: "enrollment_id", Reason: "does not exist"}
		}
		return nil, err
	}
	if in.InstallmentID != nil {
		var inst models.Installment
		err := db.First(&inst, "id = ? AND enrollment_id = ?", *in.InstallmentID, enrollment.ID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &ledger.ValidationError{Field: "installment_id", Reason: "does not belong to the enrollment"}
		}
		if err != nil {
			return nil, err
		}
	}

	input := ledger.EntryInput{
		EnrollmentID:  enrollment.ID,
		InstallmentID: in.InstallmentID,
		Amount:        in.Amount,
		PaymentDate:   in.PaymentDate,
		Bank:          in.Bank,
		ReceiptNumber: in.ReceiptNumber,
		ActorID:       in.ActorID,
	}
	if in.Concept != "" {
		concept := in.Concept
		input.Concept = &concept
	}

	var settlement *ledger.Settlement
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		settlement, err = ledger.Record(tx, ledger.ModeManual, input, nil, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}
	for _, w := range settlement.Warnings {
		s.warn(w)
	}
	result := &EntryResult{Entry: settlement.Entry, Warnings: settlement.Warnings}
	log.Printf("✅ Manual entry %s recorded for enrollment %s", settlement.Entry.ReceiptNumber, enrollment.ID)

	if s.Recon == nil {
		return result, nil
	}
	var record models.BankStatementRecord
	err = db.Where("fingerprint = ? AND status = ? AND linked_ledger_entry_id IS NULL",
		ledger.BankFingerprint(settlement.Entry), models.BankRecordUploaded).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return result, nil
	}
	if err != nil {
		return nil, err
	}

	out, err := s.Recon.Reconcile(ctx, &record)
	if err != nil {
		// The entry is committed; the next reconciliation pass retries the link.
		log.Printf("⚠️ Manual entry %s could not be reconciled yet: %v", settlement.Entry.ID, err)
		return result, nil
	}
	if out != nil && out.Entry.ID == settlement.Entry.ID {
		linked := out.Record
		result.Entry = out.Entry
		result.LinkedRecord = &linked
		if out.Settlement != nil {
			result.Installment = out.Settlement.Installment
			result.Warnings = append(result.Warnings, out.Settlement.Warnings...)
		}
	}
	return result, nil
}

// Review applies an operator decision. An approval settles an installment
// and links the bank record if the statement is already in.
func (s *LedgerService) Review(ctx context.Context, entryID uuid.UUID, decision ledger.Decision, actor *uuid.UUID, note string) (*EntryResult, error) {
	if !decision.Valid() {
		return nil, &ledger.ValidationError{Field: "decision", Reason: "must be one of start, approve, reject, void"}
	}
	var (
		settlement *ledger.Settlement
		linked     *models.BankStatementRecord
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		settlement, err = ledger.Review(tx, entryID, decision, actor, note, s.now())
		if err != nil {
			return err
		}
		if decision == ledger.DecisionApprove {
			linked, err = reconciliation.ReconcileEntry(tx, &settlement.Entry)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	s.announce(settlement, linked)
	log.Printf("✅ Ledger entry %s: %s", entryID, decision)
	return &EntryResult{
		Entry:        settlement.Entry,
		Installment:  settlement.Installment,
		LinkedRecord: linked,
		Warnings:     settlement.Warnings,
	}, nil
}

func (s *LedgerService) GeneratePlan(ctx context.Context, enrollmentID uuid.UUID, rebuild bool) ([]models.Installment, error) {
	return ledger.GeneratePlan(s.DB.WithContext(ctx), enrollmentID, rebuild)
}

func (s *LedgerService) DeleteInstallment(ctx context.Context, installmentID uuid.UUID) error {
	return ledger.DeleteInstallment(s.DB.WithContext(ctx), installmentID)
}
