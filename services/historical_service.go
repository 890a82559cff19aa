package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/anjiri1684/tuition_billing/cache"
	"github.com/anjiri1684/tuition_billing/database"
	"github.com/anjiri1684/tuition_billing/events"
	"github.com/anjiri1684/tuition_billing/fingerprint"
	"github.com/anjiri1684/tuition_billing/ledger"
	"github.com/anjiri1684/tuition_billing/matching"
	"github.com/anjiri1684/tuition_billing/models"
	"github.com/anjiri1684/tuition_billing/normalize"
	"github.com/anjiri1684/tuition_billing/reconciliation"
	"github.com/anjiri1684/tuition_billing/statements"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("github.com/anjiri1684/tuition_billing/services")

const historicalLockTTL = 30 * time.Minute

// HistoricalRow is one historical payment. Amount, PaymentDate and
// ApprovedMonthlyFee accept numbers or strings, the way spreadsheets and
// JSON clients send them.
type HistoricalRow struct {
	Row                int    `json:"-"`
	Carnet             string `json:"carnet" validate:"required_without=StudentID"`
	StudentID          string `json:"studentId" validate:"omitempty,uuid"`
	StudentName        string `json:"studentName"`
	ReceiptNumber      string `json:"receiptNumber" validate:"required"`
	Amount             any    `json:"amount" validate:"required"`
	PaymentDate        any    `json:"paymentDate" validate:"required"`
	ApprovedMonthlyFee any    `json:"approvedMonthlyFee"`
	Bank               string `json:"bank"`
	Concept            string `json:"concept"`
}

type HistoricalSummary struct {
	BatchID              uuid.UUID       `json:"batch_id"`
	TotalRows            int             `json:"total_rows"`
	Processed            int             `json:"processed"`
	LedgerEntriesCreated int             `json:"ledger_entries_created"`
	InstallmentsUpdated  int             `json:"installments_updated"`
	Reconciliations      int             `json:"reconciliations"`
	PartialPayments      int             `json:"partial_payments"`
	TotalDiscrepancy     decimal.Decimal `json:"total_discrepancy"`
	Skipped              int             `json:"skipped"`
	Aborted              bool            `json:"aborted"`
	ledger.Details
}

// HistoricalImportService loads payments made before the system existed.
// Batches records the import audit row and is required.
type HistoricalImportService struct {
	Deps
	Locker  cache.Locker
	Batches *reconciliation.Service
}

// historicalPayment is a validated row bound to its student.
type historicalPayment struct {
	row         int
	studentID   uuid.UUID
	receipt     string
	bank        string
	concept     string
	amount      decimal.Decimal
	date        time.Time
	approvedFee *decimal.Decimal
}

// ImportFile parses a CSV or XLSX export and imports it.
func (s *HistoricalImportService) ImportFile(ctx context.Context, fileName string, data []byte, uploadedBy *uuid.UUID) (*HistoricalSummary, error) {
	table, err := statements.Parse(fileName, data, statements.HistoricalColumns)
	if err != nil {
		return nil, err
	}
	if _, ok := table.Mapping[statements.FieldCarnet]; !ok {
		if _, ok := table.Mapping[statements.FieldStudentID]; !ok {
			return nil, &statements.MissingColumnsError{Fields: []statements.Field{statements.FieldCarnet}}
		}
	}

	rows := make([]HistoricalRow, 0, len(table.Rows))
	for _, r := range table.Rows {
		row := HistoricalRow{
			Row:           r.Number,
			Carnet:        r.Get(statements.FieldCarnet),
			StudentID:     r.Get(statements.FieldStudentID),
			StudentName:   r.Get(statements.FieldStudentName),
			ReceiptNumber: r.Get(statements.FieldReference),
			Bank:          r.Get(statements.FieldBank),
			Concept:       r.Get(statements.FieldConcept),
		}
		if v := r.Get(statements.FieldAmount); v != "" {
			row.Amount = v
		}
		if v := r.Get(statements.FieldDate); v != "" {
			row.PaymentDate = v
		}
		if v := r.Get(statements.FieldApprovedFee); v != "" {
			row.ApprovedMonthlyFee = v
		}
		rows = append(rows, row)
	}
	return s.Import(ctx, fileName, fingerprint.File(data), rows, uploadedBy)
}

// ImportJSON imports rows posted as JSON. Rows are numbered from 1.
func (s *HistoricalImportService) ImportJSON(ctx context.Context, raw []byte, uploadedBy *uuid.UUID) (*HistoricalSummary, error) {
	var rows []HistoricalRow
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, &ledger.ValidationError{Field: "rows", Reason: "must be a JSON array of payments"}
	}
	for i := range rows {
		rows[i].Row = i + 1
	}
	return s.Import(ctx, "rows.json", fingerprint.File(raw), rows, uploadedBy)
}

// Import records historical payments as approved ledger entries. Rows are
// grouped per student and applied in payment-date order so each payment
// settles the installment that was pending at the time.
func (s *HistoricalImportService) Import(ctx context.Context, fileName, fileHash string, rows []HistoricalRow, uploadedBy *uuid.UUID) (*HistoricalSummary, error) {
	ctx, span := tracer.Start(ctx, "services.HistoricalImport")
	span.SetAttributes(attribute.String("file.hash", fileHash), attribute.Int("rows", len(rows)))
	defer span.End()

	if s.Locker != nil {
		release, err := s.Locker.Acquire(ctx, fileHash, historicalLockTTL)
		if err != nil {
			return nil, err
		}
		defer release()
	}

	db := s.DB.WithContext(ctx)
	batch := models.ImportBatch{
		Kind:       models.ImportHistorical,
		FileName:   fileName,
		FileHash:   fileHash,
		UploadedBy: uploadedBy,
		Status:     models.ImportRunning,
		StartedAt:  s.now(),
	}
	if err := db.Create(&batch).Error; err != nil {
		return nil, fmt.Errorf("create import batch: %w", err)
	}

	summary := &HistoricalSummary{
		BatchID:          batch.ID,
		TotalRows:        len(rows),
		TotalDiscrepancy: decimal.Zero,
		Details:          ledger.NewDetails(),
	}
	batchCache := ledger.NewBatchCache(db)
	defer batchCache.Reset()

	groups, order := s.group(rows, batchCache, summary)

	var abortErr error
students:
	for _, studentID := range order {
		for _, p := range groups[studentID] {
			if err := ctx.Err(); err != nil {
				abortErr = err
				break students
			}
			if err := s.apply(ctx, p, uploadedBy, batchCache, summary); err != nil {
				summary.AddError(p.row, err)
				log.Printf("🔥 Historical row %d failed: %v", p.row, err)
				if pingErr := database.Ping(s.DB); pingErr != nil {
					abortErr = fmt.Errorf("%w: %v", ledger.ErrStorageUnavailable, pingErr)
					break students
				}
			}
			summary.Processed++
		}
	}

	status := models.ImportCompleted
	if abortErr != nil {
		summary.Aborted = true
		status = models.ImportAborted
		span.RecordError(abortErr)
	}
	s.Batches.FinishBatch(ctx, &batch, status, summary)
	log.Printf("✅ Historical import %s: %d entries, %d installments, %d reconciliations, %d errors",
		fileName, summary.LedgerEntriesCreated, summary.InstallmentsUpdated, summary.Reconciliations, summary.ErrorCount)
	s.publish(events.ImportCompleted, events.ImportCompletedEvent{
		BatchID: batch.ID,
		Kind:    string(batch.Kind),
		Status:  string(status),
		Summary: summary,
	})
	return summary, abortErr
}

// group validates rows, resolves their student and returns them grouped per
// student in first-seen order, each group sorted by payment date.
func (s *HistoricalImportService) group(rows []HistoricalRow, batchCache *ledger.BatchCache, summary *HistoricalSummary) (map[uuid.UUID][]historicalPayment, []uuid.UUID) {
	groups := make(map[uuid.UUID][]historicalPayment)
	var order []uuid.UUID

	for _, row := range rows {
		p, err := s.bind(row, batchCache)
		if err != nil {
			summary.AddError(row.Row, err)
			summary.Processed++
			continue
		}
		if _, seen := groups[p.studentID]; !seen {
			order = append(order, p.studentID)
		}
		groups[p.studentID] = append(groups[p.studentID], p)
	}

	for _, id := range order {
		g := groups[id]
		sort.SliceStable(g, func(i, j int) bool { return g[i].date.Before(g[j].date) })
	}
	return groups, order
}

func (s *HistoricalImportService) bind(row HistoricalRow, batchCache *ledger.BatchCache) (historicalPayment, error) {
	row.Carnet = strings.TrimSpace(row.Carnet)
	row.StudentID = strings.TrimSpace(row.StudentID)
	row.ReceiptNumber = strings.TrimSpace(row.ReceiptNumber)
	if err := validate.Struct(row); err != nil {
		v := validationError(err)
		var ve *ledger.ValidationError
		if errors.As(v, &ve) {
			ve.Row = row.Row
		}
		return historicalPayment{}, v
	}

	amount, err := normalize.Amount(row.Amount)
	if err != nil || !amount.IsPositive() {
		return historicalPayment{}, &ledger.ValidationError{Row: row.Row, Field: "amount", Reason: "is not a valid amount"}
	}
	date, ok := normalize.Date(row.PaymentDate)
	if !ok {
		return historicalPayment{}, &ledger.ValidationError{Row: row.Row, Field: "paymentDate", Reason: "is not a valid date"}
	}
	var approvedFee *decimal.Decimal
	if row.ApprovedMonthlyFee != nil {
		if fee, err := normalize.Amount(row.ApprovedMonthlyFee); err == nil && fee.IsPositive() {
			approvedFee = &fee
		}
	}

	var student *models.Student
	if row.StudentID != "" {
		id, _ := uuid.Parse(row.StudentID)
		student, err = batchCache.StudentByID(id)
	} else {
		student, err = batchCache.StudentByCarnet(row.Carnet)
	}
	if err != nil {
		return historicalPayment{}, err
	}
	if student == nil {
		who := row.Carnet
		if who == "" {
			who = row.StudentID
		}
		return historicalPayment{}, &ledger.ValidationError{Row: row.Row, Field: "student", Reason: fmt.Sprintf("%q was not found", who)}
	}

	return historicalPayment{
		row:         row.Row,
		studentID:   student.ID,
		receipt:     row.ReceiptNumber,
		bank:        strings.TrimSpace(row.Bank),
		concept:     strings.TrimSpace(row.Concept),
		amount:      amount,
		date:        date,
		approvedFee: approvedFee,
	}, nil
}

// apply records one payment. Duplicates are skipped without an error.
func (s *HistoricalImportService) apply(ctx context.Context, p historicalPayment, actor *uuid.UUID, batchCache *ledger.BatchCache, summary *HistoricalSummary) error {
	candidates, err := batchCache.Candidates(p.studentID)
	if err != nil {
		return err
	}
	payment := matching.Payment{Amount: p.amount, Date: p.date, ApprovedFee: p.approvedFee}
	chosen, rule, ok := matching.SelectEnrollment(payment, candidates)
	if !ok {
		w := ledger.Warning{Kind: ledger.WarningUnresolvedMatch, Row: p.row, Message: "student has no active enrollment"}
		summary.AddWarning(w)
		s.warn(w)
		return &ledger.ValidationError{Row: p.row, Field: "enrollment", Reason: "no active enrollment for the student"}
	}
	if rule == matching.EnrollmentMostRecent {
		w := ledger.Warning{Kind: ledger.WarningAmbiguousMatch, Row: p.row,
			Message: fmt.Sprintf("payment %s assigned to the most recent of %d enrollments", p.receipt, len(candidates))}
		summary.AddWarning(w)
		s.warn(w)
	}

	in := ledger.EntryInput{
		EnrollmentID:  chosen.Enrollment.ID,
		Amount:        p.amount,
		PaymentDate:   p.date,
		Bank:          p.bank,
		ReceiptNumber: p.receipt,
		ActorID:       actor,
	}
	if p.concept != "" {
		concept := p.concept
		in.Concept = &concept
	}

	var (
		settlement *ledger.Settlement
		linked     *models.BankStatementRecord
	)
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		settlement, err = ledger.Record(tx, ledger.ModeHistorical, in, p.approvedFee, s.now())
		if err != nil {
			return err
		}
		linked, err = reconciliation.ReconcileEntry(tx, &settlement.Entry)
		return err
	})
	if ledger.IsDuplicate(err) {
		summary.Skipped++
		summary.AddSkip(p.row, err)
		return nil
	}
	if err != nil {
		batchCache.Invalidate(chosen.Enrollment.ID)
		return err
	}

	summary.LedgerEntriesCreated++
	if inst := settlement.Installment; inst != nil {
		summary.InstallmentsUpdated++
		batchCache.MarkPaid(chosen.Enrollment.ID, inst.ID)
	}
	if m := settlement.Match; m != nil {
		if m.Partial {
			summary.PartialPayments++
		}
		summary.TotalDiscrepancy = summary.TotalDiscrepancy.Add(m.Shortfall)
	}
	if linked != nil {
		summary.Reconciliations++
	}
	for _, w := range settlement.Warnings {
		w.Row = p.row
		summary.AddWarning(w)
	}
	s.announce(settlement, linked)
	return nil
}
