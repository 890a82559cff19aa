package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/anjiri1684/tuition_billing/fingerprint"
	"github.com/anjiri1684/tuition_billing/ledger"
	"github.com/anjiri1684/tuition_billing/matching"
	"github.com/anjiri1684/tuition_billing/models"
	"github.com/anjiri1684/tuition_billing/normalize"
	"github.com/anjiri1684/tuition_billing/reconciliation"
	"github.com/anjiri1684/tuition_billing/storage"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ReceiptIn is a self-service proof-of-payment upload. Either StudentID or
// InstallmentID identifies the payer; when both are set the installment must
// belong to the student.
type ReceiptIn struct {
	StudentID     uuid.UUID       `validate:"required_without=InstallmentID"`
	InstallmentID *uuid.UUID      `validate:"omitempty"`
	ReceiptNumber string          `validate:"required,max=120"`
	Bank          string          `validate:"required,max=120"`
	Amount        decimal.Decimal `validate:"-"`
	PaymentDate   time.Time       `validate:"required"`
	Proof         []byte          `validate:"required,min=1"`
	ActorID       *uuid.UUID
}

type ReceiptResult struct {
	Entry        models.PaymentLedgerEntry   `json:"entry"`
	Installment  *models.Installment         `json:"installment,omitempty"`
	LinkedRecord *models.BankStatementRecord `json:"linked_bank_record,omitempty"`
	Warnings     []ledger.Warning            `json:"warnings"`
}

type ReceiptService struct {
	Deps
	Store storage.ProofStore
}

// Submit records a self-service receipt. The entry is approved on creation,
// settles an installment and is linked to its bank record when the statement
// was already imported.
func (s *ReceiptService) Submit(ctx context.Context, in ReceiptIn) (*ReceiptResult, error) {
	if err := validate.Struct(in); err != nil {
		return nil, validationError(err)
	}
	if !in.Amount.IsPositive() {
		return nil, &ledger.ValidationError{Field: "amount", Reason: "must be positive"}
	}
	db := s.DB.WithContext(ctx)

	enrollmentID, studentID, err := s.resolveEnrollment(db, in)
	if err != nil {
		return nil, err
	}
	in.StudentID = studentID

	proofHash := fingerprint.File(in.Proof)
	if err := s.checkDuplicates(db, in, proofHash); err != nil {
		return nil, err
	}

	var proofURL *string
	if s.Store != nil {
		url, err := s.Store.Save(ctx, proofHash, in.Proof)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ledger.ErrStorageUnavailable, err)
		}
		proofURL = &url
	}

	result := &ReceiptResult{}
	var settlement *ledger.Settlement
	err = db.Transaction(func(tx *gorm.DB) error {
		var err error
		settlement, err = ledger.Record(tx, ledger.ModeSelfService, ledger.EntryInput{
			EnrollmentID:  enrollmentID,
			InstallmentID: in.InstallmentID,
			Amount:        in.Amount,
			PaymentDate:   in.PaymentDate,
			Bank:          in.Bank,
			ReceiptNumber: in.ReceiptNumber,
			ProofFileHash: &proofHash,
			ProofURL:      proofURL,
			ActorID:       in.ActorID,
		}, nil, s.now())
		if err != nil {
			return err
		}
		result.LinkedRecord, err = reconciliation.ReconcileEntry(tx, &settlement.Entry)
		return err
	})
	if err != nil {
		if proofURL != nil {
			s.discardProof(proofHash)
		}
		return nil, err
	}

	s.announce(settlement, result.LinkedRecord)
	result.Entry = settlement.Entry
	result.Installment = settlement.Installment
	result.Warnings = settlement.Warnings
	log.Printf("✅ Receipt %s recorded for enrollment %s", in.ReceiptNumber, enrollmentID)
	return result, nil
}

// discardProof removes an uploaded proof whose entry was never committed.
// Proofs are stored by hash, so a file another entry already references is
// left in place.
func (s *ReceiptService) discardProof(hash string) {
	var refs int64
	if err := s.DB.Model(&models.PaymentLedgerEntry{}).Where("proof_file_hash = ?", hash).Count(&refs).Error; err != nil {
		log.Printf("⚠️ Could not check references of proof %s, leaving it stored: %v", hash, err)
		return
	}
	if refs > 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.Store.Delete(ctx, hash); err != nil {
		log.Printf("⚠️ Orphaned proof %s could not be deleted: %v", hash, err)
	}
}

// resolveEnrollment returns the enrollment the receipt pays and the student
// it belongs to.
func (s *ReceiptService) resolveEnrollment(db *gorm.DB, in ReceiptIn) (uuid.UUID, uuid.UUID, error) {
	if in.InstallmentID != nil {
		var inst models.Installment
		if err := db.First(&inst, "id = ?", *in.InstallmentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return uuid.Nil, uuid.Nil, &ledger.ValidationError{Field: "installment_id", Reason: "does not exist"}
			}
			return uuid.Nil, uuid.Nil, err
		}
		var enrollment models.Enrollment
		if err := db.First(&enrollment, "id = ?", inst.EnrollmentID).Error; err != nil {
			return uuid.Nil, uuid.Nil, err
		}
		if in.StudentID != uuid.Nil && enrollment.StudentID != in.StudentID {
			return uuid.Nil, uuid.Nil, &ledger.ValidationError{Field: "installment_id", Reason: "does not belong to the student"}
		}
		return enrollment.ID, enrollment.StudentID, nil
	}

	cache := ledger.NewBatchCache(db)
	candidates, err := cache.Candidates(in.StudentID)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	chosen, _, ok := matching.SelectEnrollment(matching.Payment{Amount: in.Amount, Date: in.PaymentDate}, candidates)
	if !ok {
		return uuid.Nil, uuid.Nil, &ledger.ValidationError{Field: "student_id", Reason: "has no active enrollment"}
	}
	return chosen.Enrollment.ID, in.StudentID, nil
}

// checkDuplicates rejects a proof file or a bank receipt that was already
// submitted, telling the student whether it was their own earlier upload.
func (s *ReceiptService) checkDuplicates(db *gorm.DB, in ReceiptIn, proofHash string) error {
	var byProof []models.PaymentLedgerEntry
	if err := db.Preload("Enrollment").
		Where("proof_file_hash = ?", proofHash).
		Limit(1).Find(&byProof).Error; err != nil {
		return err
	}
	if len(byProof) > 0 {
		if ownedBy(byProof[0], in.StudentID) {
			return &ledger.DuplicateError{Kind: "proof", Message: "you already submitted this proof of payment"}
		}
		return &ledger.DuplicateError{Kind: "proof", Message: "this proof of payment was already used by another student"}
	}

	refNorm, _ := normalize.Reference(in.ReceiptNumber)
	var byReceipt []models.PaymentLedgerEntry
	if err := db.Preload("Enrollment").
		Where("bank_normalized = ? AND receipt_normalized = ? AND status <> ?", normalize.Bank(in.Bank), refNorm, models.LedgerVoided).
		Limit(1).Find(&byReceipt).Error; err != nil {
		return err
	}
	if len(byReceipt) > 0 {
		if ownedBy(byReceipt[0], in.StudentID) {
			return &ledger.DuplicateError{Kind: "receipt", Message: fmt.Sprintf("you already registered receipt %s from %s", in.ReceiptNumber, in.Bank)}
		}
		return &ledger.DuplicateError{Kind: "receipt", Message: fmt.Sprintf("receipt %s from %s was already registered by another student", in.ReceiptNumber, in.Bank)}
	}
	return nil
}

func ownedBy(e models.PaymentLedgerEntry, studentID uuid.UUID) bool {
	return e.Enrollment != nil && e.Enrollment.StudentID == studentID
}

// validationError turns the first validator failure into a ValidationError.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return &ledger.ValidationError{Field: verrs[0].Field(), Reason: "failed on the '" + verrs[0].Tag() + "' rule"}
	}
	return err
}
