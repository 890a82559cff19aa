package reconciliation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/anjiri1684/tuition_billing/database"
	"github.com/anjiri1684/tuition_billing/events"
	"github.com/anjiri1684/tuition_billing/fingerprint"
	"github.com/anjiri1684/tuition_billing/ledger"
	"github.com/anjiri1684/tuition_billing/models"
	"github.com/anjiri1684/tuition_billing/normalize"
	"github.com/anjiri1684/tuition_billing/statements"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/datatypes"
	"gorm.io/gorm/clause"
)

type ImportStatementIn struct {
	FileName   string
	Data       []byte
	UploadedBy *uuid.UUID
}

// StatementSummary is returned for every statement import, partial or not.
type StatementSummary struct {
	BatchID       uuid.UUID      `json:"batch_id"`
	FileHash      string         `json:"file_hash"`
	TotalRows     int            `json:"total_rows"`
	ProcessedRows int            `json:"processed_rows"`
	Created       int            `json:"created"`
	Updated       int            `json:"updated"`
	Skipped       int            `json:"skipped"`
	Reconciled    int            `json:"reconciled"`
	Errors        int            `json:"errors"`
	Aborted       bool           `json:"aborted"`
	Details       ledger.Details `json:"details"`
}

type rowOutcome int

const (
	rowCreated rowOutcome = iota
	rowUpdated
	rowSkipped
)

// ImportStatement upserts every line of a bank statement by fingerprint and
// reconciles the records still waiting for a ledger entry. Malformed rows are
// skipped and failing rows counted; if storage stops answering the batch is
// aborted and the summary says how far it got.
func (s *Service) ImportStatement(ctx context.Context, in ImportStatementIn) (*StatementSummary, error) {
	fileHash := fingerprint.File(in.Data)
	ctx, span := tracer.Start(ctx, "reconciliation.ImportStatement")
	span.SetAttributes(attribute.String("file.name", in.FileName), attribute.String("file.hash", fileHash))
	defer span.End()

	if s.Locker != nil {
		release, err := s.Locker.Acquire(ctx, fileHash, importLockTTL)
		if err != nil {
			return nil, err
		}
		defer release()
	}

	table, err := statements.Parse(in.FileName, in.Data, statements.StatementColumns)
	if err != nil {
		return nil, err
	}

	db := s.DB.WithContext(ctx)
	batch := models.ImportBatch{
		Kind:       models.ImportBankStatement,
		FileName:   in.FileName,
		FileHash:   fileHash,
		UploadedBy: in.UploadedBy,
		Status:     models.ImportRunning,
		StartedAt:  s.now(),
	}
	if err := db.Create(&batch).Error; err != nil {
		return nil, fmt.Errorf("create import batch: %w", err)
	}

	summary := &StatementSummary{
		BatchID:   batch.ID,
		FileHash:  fileHash,
		TotalRows: len(table.Rows),
		Details:   ledger.NewDetails(),
	}

	var abortErr error
	for _, row := range table.Rows {
		if err := ctx.Err(); err != nil {
			abortErr = err
			break
		}
		if err := s.importRow(ctx, &batch, in.UploadedBy, row, summary); err != nil {
			summary.Errors++
			summary.Details.AddError(row.Number, err)
			log.Printf("🔥 Statement row %d failed: %v", row.Number, err)
			if pingErr := database.Ping(s.DB); pingErr != nil {
				abortErr = fmt.Errorf("%w: %v", ledger.ErrStorageUnavailable, pingErr)
				break
			}
		}
		summary.ProcessedRows++
	}

	status := models.ImportCompleted
	if abortErr != nil {
		summary.Aborted = true
		status = models.ImportAborted
		span.RecordError(abortErr)
		span.SetStatus(codes.Error, abortErr.Error())
	}
	s.FinishBatch(ctx, &batch, status, summary)

	span.SetAttributes(
		attribute.Int("rows.created", summary.Created),
		attribute.Int("rows.reconciled", summary.Reconciled),
	)
	log.Printf("✅ Statement %s: %d created, %d updated, %d skipped, %d reconciled, %d errors",
		in.FileName, summary.Created, summary.Updated, summary.Skipped, summary.Reconciled, summary.Errors)
	s.publish(events.ImportCompleted, events.ImportCompletedEvent{
		BatchID: batch.ID,
		Kind:    string(batch.Kind),
		Status:  string(status),
		Summary: summary,
	})
	return summary, abortErr
}

// importRow returns an error only for failures that count as row errors.
func (s *Service) importRow(ctx context.Context, batch *models.ImportBatch, uploadedBy *uuid.UUID, row statements.Row, summary *StatementSummary) error {
	record, warning, err := parseRow(row)
	if err != nil {
		summary.Skipped++
		summary.Details.AddSkip(row.Number, err)
		return nil
	}
	if warning != nil {
		s.warn(*warning)
		summary.Details.AddWarning(*warning)
	}
	record.UploadedBy = uploadedBy
	record.ImportBatchID = &batch.ID

	stored, outcome, err := s.upsert(ctx, record)
	if err != nil {
		if ledger.IsDuplicate(err) {
			summary.Skipped++
			summary.Details.AddSkip(row.Number, err)
			return nil
		}
		return err
	}
	switch outcome {
	case rowCreated:
		summary.Created++
	case rowUpdated:
		summary.Updated++
	default:
		summary.Skipped++
	}

	if stored.Status != models.BankRecordUploaded || stored.LinkedLedgerEntryID != nil {
		return nil
	}
	out, err := s.Reconcile(ctx, stored)
	if err != nil {
		return err
	}
	if out != nil {
		summary.Reconciled++
		if out.Settlement != nil {
			for _, w := range out.Settlement.Warnings {
				w.Row = row.Number
				summary.Details.AddWarning(w)
			}
		}
	}
	return nil
}

// parseRow validates and normalizes one statement line. A compound reference
// comes back as a warning naming the dropped remainder.
func parseRow(row statements.Row) (*models.BankStatementRecord, *ledger.Warning, error) {
	bank := row.Get(statements.FieldBank)
	if bank == "" {
		return nil, nil, &ledger.ValidationError{Row: row.Number, Field: "bank", Reason: "is required"}
	}
	reference := row.Get(statements.FieldReference)
	refNorm, remainder := normalize.Reference(reference)
	if refNorm == "" {
		return nil, nil, &ledger.ValidationError{Row: row.Number, Field: "reference", Reason: "is required"}
	}
	amount, err := normalize.Amount(row.Get(statements.FieldAmount))
	if err != nil {
		reason := "is not a valid amount"
		if errors.Is(err, normalize.ErrEmptyAmount) {
			reason = "is required"
		}
		return nil, nil, &ledger.ValidationError{Row: row.Number, Field: "amount", Reason: reason}
	}
	if !amount.IsPositive() {
		return nil, nil, &ledger.ValidationError{Row: row.Number, Field: "amount", Reason: "must be positive"}
	}
	date, ok := normalize.Date(row.Get(statements.FieldDate))
	if !ok {
		return nil, nil, &ledger.ValidationError{Row: row.Number, Field: "date", Reason: "is not a valid date"}
	}
	var warning *ledger.Warning
	if remainder != "" {
		warning = &ledger.Warning{
			Kind:    ledger.WarningReferenceRemainder,
			Row:     row.Number,
			Message: fmt.Sprintf("reference %q kept %s, dropped %q", reference, refNorm, remainder),
		}
	}

	bankNorm := normalize.Bank(bank)
	record := &models.BankStatementRecord{
		Bank:                bank,
		BankNormalized:      bankNorm,
		Reference:           reference,
		ReferenceNormalized: refNorm,
		Amount:              amount,
		Date:                date,
		Status:              models.BankRecordUploaded,
		Fingerprint:         fingerprint.Bank(bankNorm, refNorm, amount, date),
	}
	if auth := row.Get(statements.FieldAuthNumber); auth != "" {
		record.AuthNumber = &auth
	}
	return record, warning, nil
}

// upsert stores the record by fingerprint. Identical rows are left alone;
// rows whose raw fields changed are updated in place.
func (s *Service) upsert(ctx context.Context, record *models.BankStatementRecord) (*models.BankStatementRecord, rowOutcome, error) {
	db := s.DB.WithContext(ctx)

	var existing []models.BankStatementRecord
	if err := db.Where("fingerprint = ?", record.Fingerprint).Limit(1).Find(&existing).Error; err != nil {
		return nil, rowSkipped, err
	}
	if len(existing) == 0 {
		if err := db.Omit(clause.Associations).Create(record).Error; err != nil {
			if ledger.IsUniqueViolation(err) {
				return nil, rowSkipped, &ledger.DuplicateError{Kind: "bank_record", Message: "bank movement was imported concurrently"}
			}
			return nil, rowSkipped, err
		}
		return record, rowCreated, nil
	}

	current := &existing[0]
	changes := diff(current, record)
	if len(changes) == 0 {
		return current, rowSkipped, nil
	}
	if err := db.Model(&models.BankStatementRecord{}).Where("id = ?", current.ID).Updates(changes).Error; err != nil {
		return nil, rowSkipped, err
	}
	if err := db.First(current, "id = ?", current.ID).Error; err != nil {
		return nil, rowSkipped, err
	}
	return current, rowUpdated, nil
}

// diff lists the raw fields of incoming that differ from current. The
// normalized fields are equal by construction of the fingerprint.
func diff(current, incoming *models.BankStatementRecord) map[string]any {
	changes := map[string]any{}
	if current.Bank != incoming.Bank {
		changes["bank"] = incoming.Bank
	}
	if current.Reference != incoming.Reference {
		changes["reference"] = incoming.Reference
	}
	if !equalStrings(current.AuthNumber, incoming.AuthNumber) {
		changes["auth_number"] = incoming.AuthNumber
	}
	return changes
}

func equalStrings(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// FinishBatch closes an import batch row with its final status and summary.
// It runs even when ctx was cancelled so aborted imports are still recorded.
func (s *Service) FinishBatch(ctx context.Context, batch *models.ImportBatch, status models.ImportStatus, summary any) {
	raw, err := json.Marshal(summary)
	if err != nil {
		log.Printf("🔥 Failed to encode summary of import batch %s: %v", batch.ID, err)
		raw = []byte("{}")
	}
	finished := s.now()
	batch.Status = status
	batch.FinishedAt = &finished
	batch.Summary = datatypes.JSON(raw)
	if err := s.DB.WithContext(context.WithoutCancel(ctx)).Model(&models.ImportBatch{}).
		Where("id = ?", batch.ID).
		Updates(map[string]any{
			"status":      status,
			"finished_at": finished,
			"summary":     batch.Summary,
		}).Error; err != nil {
		log.Printf("🔥 Failed to close import batch %s: %v", batch.ID, err)
	}
}
