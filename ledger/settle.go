package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/anjiri1684/tuition_billing/matching"
	"github.com/anjiri1684/tuition_billing/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var reviewableStatuses = []models.LedgerStatus{models.LedgerPendingReview, models.LedgerInReview}

// Settlement describes what approving an entry changed.
type Settlement struct {
	Entry       models.PaymentLedgerEntry
	Installment *models.Installment
	Match       *matching.Match
	Warnings    []Warning
}

// MarkInstallmentPaid moves an installment from pending to paid. It fails with
// ErrInstallmentAlreadyPaid unless exactly one pending row was updated, so an
// installment can never be settled twice.
func MarkInstallmentPaid(tx *gorm.DB, installmentID uuid.UUID, at time.Time) error {
	res := tx.Model(&models.Installment{}).
		Where("id = ? AND status = ?", installmentID, models.InstallmentPending).
		Updates(map[string]any{"status": models.InstallmentPaid, "paid_at": at})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return ErrInstallmentAlreadyPaid
	}
	return nil
}

// PendingInstallments loads an enrollment's pending installments ordered by
// due date, locking them for the surrounding transaction.
func PendingInstallments(tx *gorm.DB, enrollmentID uuid.UUID) ([]models.Installment, error) {
	var pending []models.Installment
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("enrollment_id = ? AND status = ?", enrollmentID, models.InstallmentPending).
		Order("due_date asc, sequence_number asc").
		Find(&pending).Error
	return pending, err
}

// resolveInstallment keeps the entry's own installment while it is still
// pending; otherwise it asks the matching engine for another one.
func resolveInstallment(tx *gorm.DB, entry *models.PaymentLedgerEntry, approvedFee *decimal.Decimal) (*models.Installment, *matching.Match, error) {
	if entry.InstallmentID != nil {
		var inst models.Installment
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&inst, "id = ?", *entry.InstallmentID).Error
		switch {
		case err == nil && inst.IsPending():
			return &inst, nil, nil
		case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
			return nil, nil, err
		}
	}

	pending, err := PendingInstallments(tx, entry.EnrollmentID)
	if err != nil {
		return nil, nil, err
	}
	sel := matching.SelectInstallment(matching.Payment{
		Amount:      entry.Amount,
		Date:        entry.PaymentDate,
		ApprovedFee: approvedFee,
	}, pending)
	if !sel.Resolved() {
		return nil, nil, nil
	}
	inst := sel.Match.Installment
	return &inst, sel.Match, nil
}

// ApproveEntry approves a reviewable entry and settles the installment it
// pays, all inside tx. An entry whose installment was already settled by
// someone else is moved to the next pending installment the matching engine
// picks; with nothing pending it is approved unassigned and a warning is
// returned.
func ApproveEntry(tx *gorm.DB, entry *models.PaymentLedgerEntry, approvedBy *uuid.UUID, at time.Time) (*Settlement, error) {
	if !entry.Status.Reviewable() {
		return nil, ErrEntryNotReviewable
	}

	inst, match, err := resolveInstallment(tx, entry, nil)
	if err != nil {
		return nil, err
	}

	settlement := &Settlement{Match: match}
	updates := map[string]any{
		"status":      models.LedgerApproved,
		"approved_at": at,
		"approved_by": approvedBy,
	}
	if inst != nil {
		if err := settleInstallment(tx, inst, at); err != nil {
			return nil, err
		}
		updates["installment_id"] = inst.ID
		settlement.Installment = inst
	} else {
		updates["installment_id"] = nil
		settlement.Warnings = append(settlement.Warnings, unresolvedWarning(entry))
	}
	if w, ok := mismatchWarning(entry, inst, match); ok {
		settlement.Warnings = append(settlement.Warnings, w)
	}

	res := tx.Model(&models.PaymentLedgerEntry{}).
		Where("id = ? AND status IN ?", entry.ID, reviewableStatuses).
		Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected != 1 {
		return nil, ErrEntryNotReviewable
	}

	approvedAt := at
	entry.Status = models.LedgerApproved
	entry.ApprovedAt = &approvedAt
	entry.ApprovedBy = approvedBy
	if inst != nil {
		id := inst.ID
		entry.InstallmentID = &id
	} else {
		entry.InstallmentID = nil
	}
	settlement.Entry = *entry
	return settlement, nil
}

// Record creates an entry in the given mode. Entries born approved settle an
// installment right away: the requested one while it is still pending,
// otherwise whichever the matching engine picks. approvedFee is the
// officially approved monthly fee when the caller knows it.
func Record(tx *gorm.DB, mode CreationMode, in EntryInput, approvedFee *decimal.Decimal, at time.Time) (*Settlement, error) {
	entry, remainder := NewEntry(mode, in, at)
	settlement := &Settlement{}
	if remainder != "" {
		settlement.Warnings = append(settlement.Warnings, Warning{
			Kind:    WarningReferenceRemainder,
			Message: fmt.Sprintf("receipt %q kept %s, dropped %q", in.ReceiptNumber, entry.ReceiptNormalized, remainder),
		})
	}

	if entry.Status != models.LedgerApproved {
		if err := Insert(tx, &entry); err != nil {
			return nil, err
		}
		settlement.Entry = entry
		return settlement, nil
	}

	inst, match, err := resolveInstallment(tx, &entry, approvedFee)
	if err != nil {
		return nil, err
	}
	if inst != nil {
		id := inst.ID
		entry.InstallmentID = &id
	} else {
		entry.InstallmentID = nil
	}
	if err := Insert(tx, &entry); err != nil {
		return nil, err
	}

	if inst != nil {
		if err := settleInstallment(tx, inst, at); err != nil {
			return nil, err
		}
	} else {
		settlement.Warnings = append(settlement.Warnings, unresolvedWarning(&entry))
	}
	if w, ok := mismatchWarning(&entry, inst, match); ok {
		settlement.Warnings = append(settlement.Warnings, w)
	}
	settlement.Entry = entry
	settlement.Installment = inst
	settlement.Match = match
	return settlement, nil
}

func settleInstallment(tx *gorm.DB, inst *models.Installment, at time.Time) error {
	if err := MarkInstallmentPaid(tx, inst.ID, at); err != nil {
		return err
	}
	paidAt := at
	inst.Status = models.InstallmentPaid
	inst.PaidAt = &paidAt
	return nil
}

func unresolvedWarning(entry *models.PaymentLedgerEntry) Warning {
	return Warning{
		Kind:    WarningUnresolvedMatch,
		Message: fmt.Sprintf("payment %s of %s recorded without a pending installment to settle", entry.ReceiptNumber, entry.Amount.StringFixed(2)),
	}
}

func mismatchWarning(entry *models.PaymentLedgerEntry, inst *models.Installment, match *matching.Match) (Warning, bool) {
	if inst == nil || match == nil || !match.AmountMismatch {
		return Warning{}, false
	}
	return Warning{
		Kind: WarningAmountMismatch,
		Message: fmt.Sprintf("payment %s of %s settled installment #%d of %s by due date only",
			entry.ReceiptNumber, entry.Amount.StringFixed(2), inst.SequenceNumber, inst.Amount.StringFixed(2)),
	}, true
}
