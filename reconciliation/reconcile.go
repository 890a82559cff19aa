package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/anjiri1684/tuition_billing/events"
	"github.com/anjiri1684/tuition_billing/ledger"
	"github.com/anjiri1684/tuition_billing/models"
	"github.com/anjiri1684/tuition_billing/normalize"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Outcome is what a reconciliation attempt did to a bank record.
type Outcome struct {
	Record     models.BankStatementRecord
	Entry      models.PaymentLedgerEntry
	Settlement *ledger.Settlement
}

// Settled reports whether the attempt also approved the entry and settled an
// installment, as opposed to linking an entry that was already approved.
func (o *Outcome) Settled() bool {
	return o != nil && o.Settlement != nil
}

var reviewable = []models.LedgerStatus{models.LedgerPendingReview, models.LedgerInReview}

// Reconcile looks for the ledger entry a bank record corroborates. An entry
// still under review is approved, its installment settled and the record
// marked reconciled in one transaction. Failing that, an approved entry with
// the same fingerprint and no bank record yet is linked without touching the
// installment. A nil Outcome with a nil error means nothing matched and the
// record stays uploaded.
func (s *Service) Reconcile(ctx context.Context, record *models.BankStatementRecord) (*Outcome, error) {
	if record.Status != models.BankRecordUploaded || record.LinkedLedgerEntryID != nil {
		return nil, ledger.ErrRecordAlreadyLinked
	}
	db := s.DB.WithContext(ctx)

	candidate, err := findReviewable(db, record)
	if err != nil {
		return nil, err
	}
	if candidate != nil {
		return s.settle(ctx, record, candidate)
	}

	approved, err := findApprovedUnlinked(db, record)
	if err != nil || approved == nil {
		return nil, err
	}
	var out *Outcome
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := linkRecord(tx, record.ID, approved.ID); err != nil {
			return err
		}
		out = &Outcome{Record: *record, Entry: *approved}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.markLinked(out, approved.ID)
	return out, nil
}

// findReviewable returns the earliest-created entry under review that reports
// the same movement as the record.
func findReviewable(db *gorm.DB, record *models.BankStatementRecord) (*models.PaymentLedgerEntry, error) {
	var entries []models.PaymentLedgerEntry
	err := db.Where("bank_normalized = ? AND (receipt_normalized = ? OR receipt_number = ?) AND status IN ?",
		record.BankNormalized, record.ReferenceNormalized, record.Reference, reviewable).
		Order("created_at asc").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if sameMovement(&entries[i], record) {
			return &entries[i], nil
		}
	}
	return nil, nil
}

func findApprovedUnlinked(db *gorm.DB, record *models.BankStatementRecord) (*models.PaymentLedgerEntry, error) {
	var entries []models.PaymentLedgerEntry
	err := db.Where("bank_normalized = ? AND receipt_normalized = ? AND status = ?",
		record.BankNormalized, record.ReferenceNormalized, models.LedgerApproved).
		Order("created_at asc").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	for i := range entries {
		e := &entries[i]
		if !sameMovement(e, record) {
			continue
		}
		var linked int64
		if err := db.Model(&models.BankStatementRecord{}).
			Where("linked_ledger_entry_id = ?", e.ID).
			Count(&linked).Error; err != nil {
			return nil, err
		}
		if linked == 0 {
			return e, nil
		}
	}
	return nil, nil
}

func sameMovement(e *models.PaymentLedgerEntry, r *models.BankStatementRecord) bool {
	return normalize.SameDay(e.PaymentDate, r.Date) && e.Amount.Equal(r.Amount)
}

// linkRecord marks a record reconciled against an entry. The update only
// applies to an uploaded, unlinked record so a link is never reassigned.
func linkRecord(tx *gorm.DB, recordID, entryID uuid.UUID) error {
	res := tx.Model(&models.BankStatementRecord{}).
		Where("id = ? AND status = ? AND linked_ledger_entry_id IS NULL", recordID, models.BankRecordUploaded).
		Updates(map[string]any{
			"status":                 models.BankRecordReconciled,
			"linked_ledger_entry_id": entryID,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return ledger.ErrRecordAlreadyLinked
	}
	return nil
}

func (s *Service) settle(ctx context.Context, record *models.BankStatementRecord, candidate *models.PaymentLedgerEntry) (*Outcome, error) {
	ctx, span := tracer.Start(ctx, "reconciliation.Settle", trace.WithAttributes(
		attribute.String("bank_record.id", record.ID.String()),
		attribute.String("ledger_entry.id", candidate.ID.String()),
	))
	defer span.End()

	var out *Outcome
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var entry models.PaymentLedgerEntry
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&entry, "id = ?", candidate.ID).Error; err != nil {
			return err
		}
		settlement, err := ledger.ApproveEntry(tx, &entry, record.UploadedBy, s.now())
		if err != nil {
			return err
		}
		if err := linkRecord(tx, record.ID, entry.ID); err != nil {
			return err
		}
		out = &Outcome{Record: *record, Entry: settlement.Entry, Settlement: settlement}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("reconcile record %s with entry %s: %w", record.ID, candidate.ID, err)
	}

	s.markLinked(out, out.Entry.ID)
	for _, w := range out.Settlement.Warnings {
		s.warn(w)
	}
	if inst := out.Settlement.Installment; inst != nil {
		ev := events.InstallmentSettledEvent{
			InstallmentID: inst.ID,
			EnrollmentID:  inst.EnrollmentID,
			LedgerEntryID: out.Entry.ID,
			Amount:        out.Entry.Amount,
			PaidAt:        *inst.PaidAt,
		}
		if m := out.Settlement.Match; m != nil {
			ev.Shortfall = m.Shortfall
		}
		s.publish(events.InstallmentSettled, ev)
	}
	return out, nil
}

func (s *Service) markLinked(out *Outcome, entryID uuid.UUID) {
	id := entryID
	out.Record.Status = models.BankRecordReconciled
	out.Record.LinkedLedgerEntryID = &id
	log.Printf("✅ Bank record %s reconciled with ledger entry %s", out.Record.ID, entryID)
	s.publish(events.BankRecordReconciled, events.BankRecordReconciledEvent{
		BankRecordID:  out.Record.ID,
		LedgerEntryID: entryID,
		Fingerprint:   out.Record.Fingerprint,
	})
}

// ReconcileEntry links an approved entry to an uploaded bank record carrying
// the same fingerprint. It runs inside the caller's transaction and leaves the
// entry and its installment untouched. It returns the linked record, or nil.
func ReconcileEntry(tx *gorm.DB, entry *models.PaymentLedgerEntry) (*models.BankStatementRecord, error) {
	if entry.Status != models.LedgerApproved {
		return nil, nil
	}
	var record models.BankStatementRecord
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("fingerprint = ? AND status = ? AND linked_ledger_entry_id IS NULL",
			ledger.BankFingerprint(*entry), models.BankRecordUploaded).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := linkRecord(tx, record.ID, entry.ID); err != nil {
		return nil, err
	}
	id := entry.ID
	record.Status = models.BankRecordReconciled
	record.LinkedLedgerEntryID = &id
	return &record, nil
}

// PassSummary reports a reconciliation pass over uploaded records.
type PassSummary struct {
	Examined   int            `json:"examined"`
	Reconciled int            `json:"reconciled"`
	Unmatched  int            `json:"unmatched"`
	Errors     int            `json:"errors"`
	Details    ledger.Details `json:"details"`
}

// ReconcilePending retries every uploaded record. Failures are counted and
// the pass continues.
func (s *Service) ReconcilePending(ctx context.Context) (*PassSummary, error) {
	ctx, span := tracer.Start(ctx, "reconciliation.ReconcilePending")
	defer span.End()

	var ids []uuid.UUID
	if err := s.DB.WithContext(ctx).Model(&models.BankStatementRecord{}).
		Where("status = ? AND linked_ledger_entry_id IS NULL", models.BankRecordUploaded).
		Order("date asc, created_at asc").
		Pluck("id", &ids).Error; err != nil {
		span.RecordError(err)
		return nil, err
	}

	summary := &PassSummary{Details: ledger.NewDetails()}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		var record models.BankStatementRecord
		if err := s.DB.WithContext(ctx).First(&record, "id = ?", id).Error; err != nil {
			summary.Errors++
			summary.Details.AddError(0, fmt.Errorf("record %s: %w", id, err))
			continue
		}
		summary.Examined++
		out, err := s.Reconcile(ctx, &record)
		switch {
		case errors.Is(err, ledger.ErrRecordAlreadyLinked):
		case err != nil:
			summary.Errors++
			summary.Details.AddError(0, err)
		case out == nil:
			summary.Unmatched++
		default:
			summary.Reconciled++
			if out.Settlement != nil {
				for _, w := range out.Settlement.Warnings {
					summary.Details.AddWarning(w)
				}
			}
		}
	}
	span.SetAttributes(attribute.Int("reconciled", summary.Reconciled))
	log.Printf("✅ Reconciliation pass: %d examined, %d reconciled, %d errors", summary.Examined, summary.Reconciled, summary.Errors)
	return summary, nil
}
