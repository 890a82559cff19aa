package jobs

import (
	"testing"
	"time"

	"github.com/anjiri1684/tuition_billing/database"
	"github.com/anjiri1684/tuition_billing/events"
	"github.com/anjiri1684/tuition_billing/fingerprint"
	"github.com/anjiri1684/tuition_billing/ledger"
	"github.com/anjiri1684/tuition_billing/models"
	"github.com/anjiri1684/tuition_billing/normalize"
	"github.com/anjiri1684/tuition_billing/reconciliation"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcileUploadedRecordsSettlesLateEntries(t *testing.T) {
	db, err := database.OpenInMemory()
	require.NoError(t, err)

	start := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	student := models.Student{Carnet: "2024-001", FullName: "Ana López"}
	require.NoError(t, db.Create(&student).Error)
	enrollment := models.Enrollment{
		StudentID:      student.ID,
		ProgramID:      uuid.New(),
		StartDate:      start,
		EndDate:        start.AddDate(0, 3, 0),
		DurationMonths: 3,
		MonthlyFee:     decimal.NewFromInt(1000),
		Status:         models.EnrollmentActive,
	}
	require.NoError(t, db.Create(&enrollment).Error)
	plan, err := ledger.GeneratePlan(db, enrollment.ID, false)
	require.NoError(t, err)

	bank := normalize.Bank("BI")
	record := models.BankStatementRecord{
		Bank:                "BI",
		BankNormalized:      bank,
		Reference:           "R100",
		ReferenceNormalized: "R100",
		Amount:              decimal.NewFromInt(1000),
		Date:                start,
		Status:              models.BankRecordUploaded,
		Fingerprint:         fingerprint.Bank(bank, "R100", decimal.NewFromInt(1000), start),
	}
	require.NoError(t, db.Create(&record).Error)

	entry, _ := ledger.NewEntry(ledger.ModeManual, ledger.EntryInput{
		EnrollmentID:  enrollment.ID,
		Amount:        decimal.NewFromInt(1000),
		PaymentDate:   start,
		Bank:          "Banco Industrial",
		ReceiptNumber: "R-100",
	}, start)
	require.NoError(t, ledger.Insert(db, &entry))

	svc := reconciliation.NewService(db, &events.Recorder{}, nil, nil)
	ReconcileUploadedRecords(svc)()

	var stored models.BankStatementRecord
	require.NoError(t, db.First(&stored, "id = ?", record.ID).Error)
	assert.Equal(t, models.BankRecordReconciled, stored.Status)

	var inst models.Installment
	require.NoError(t, db.First(&inst, "id = ?", plan[0].ID).Error)
	assert.Equal(t, models.InstallmentPaid, inst.Status)
}
