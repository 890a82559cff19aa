package ledger

import (
	"time"

	"github.com/anjiri1684/tuition_billing/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Decision is an operator action on a manually created entry.
type Decision string

const (
	DecisionStart   Decision = "start"
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
	DecisionVoid    Decision = "void"
)

func (d Decision) Valid() bool {
	switch d {
	case DecisionStart, DecisionApprove, DecisionReject, DecisionVoid:
		return true
	}
	return false
}

// Review applies an operator decision inside tx. Only approve touches the
// installment; start, reject and void move the entry alone.
func Review(tx *gorm.DB, entryID uuid.UUID, decision Decision, actor *uuid.UUID, note string, at time.Time) (*Settlement, error) {
	var entry models.PaymentLedgerEntry
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&entry, "id = ?", entryID).Error; err != nil {
		return nil, err
	}

	if decision == DecisionApprove {
		settlement, err := ApproveEntry(tx, &entry, actor, at)
		if err != nil {
			return nil, err
		}
		if note != "" {
			if err := tx.Model(&models.PaymentLedgerEntry{}).Where("id = ?", entry.ID).Update("review_note", note).Error; err != nil {
				return nil, err
			}
			settlement.Entry.ReviewNote = &note
		}
		return settlement, nil
	}

	var from []models.LedgerStatus
	var to models.LedgerStatus
	switch decision {
	case DecisionStart:
		from, to = []models.LedgerStatus{models.LedgerPendingReview}, models.LedgerInReview
	case DecisionReject:
		from, to = reviewableStatuses, models.LedgerRejected
	case DecisionVoid:
		from, to = []models.LedgerStatus{models.LedgerPendingReview, models.LedgerInReview, models.LedgerRejected}, models.LedgerVoided
	default:
		return nil, &ValidationError{Field: "decision", Reason: "must be one of start, approve, reject, void"}
	}

	updates := map[string]any{"status": to}
	if note != "" {
		updates["review_note"] = note
	}
	res := tx.Model(&models.PaymentLedgerEntry{}).
		Where("id = ? AND status IN ?", entry.ID, from).
		Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected != 1 {
		return nil, ErrEntryNotReviewable
	}

	entry.Status = to
	if note != "" {
		entry.ReviewNote = &note
	}
	return &Settlement{Entry: entry}, nil
}
