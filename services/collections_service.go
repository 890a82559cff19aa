package services

import (
	"context"
	"errors"
	"time"

	"github.com/anjiri1684/tuition_billing/collections"
	"github.com/anjiri1684/tuition_billing/ledger"
	"github.com/anjiri1684/tuition_billing/models"
	"github.com/anjiri1684/tuition_billing/normalize"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type OverdueInstallment struct {
	Installment models.Installment `json:"installment"`
	DaysLate    int                `json:"days_late"`
	LateFee     decimal.Decimal    `json:"late_fee"`
}

type CollectionsStatus struct {
	EnrollmentID    uuid.UUID             `json:"enrollment_id"`
	AsOf            time.Time             `json:"as_of"`
	Overdue         []OverdueInstallment  `json:"overdue"`
	OverdueAmount   decimal.Decimal       `json:"overdue_amount"`
	TotalLateFees   decimal.Decimal       `json:"total_late_fees"`
	BlockedServices []collections.Service `json:"blocked_services"`
}

type CollectionsService struct {
	Deps
}

// Status reports what an enrollment owes as of a day. Blocking follows the
// oldest overdue installment. Nothing is written.
func (s *CollectionsService) Status(ctx context.Context, enrollmentID uuid.UUID, asOf time.Time) (*CollectionsStatus, error) {
	db := s.DB.WithContext(ctx)
	var enrollment models.Enrollment
	if err := db.First(&enrollment, "id = ?", enrollmentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &ledger.ValidationError{Field: "enrollment_id", Reason: "does not exist"}
		}
		return nil, err
	}

	day := normalize.Day(asOf)
	var pending []models.Installment
	if err := db.Where("enrollment_id = ? AND status = ?", enrollment.ID, models.InstallmentPending).
		Order("due_date ASC, sequence_number ASC").
		Find(&pending).Error; err != nil {
		return nil, err
	}

	var feeRule *models.LateFeeRule
	var rules []models.LateFeeRule
	if err := db.Where("active = ?", true).Order("created_at ASC").Limit(1).Find(&rules).Error; err != nil {
		return nil, err
	}
	if len(rules) > 0 {
		feeRule = &rules[0]
	}
	var blocking []models.BlockingRule
	if err := db.Where("active = ?", true).Find(&blocking).Error; err != nil {
		return nil, err
	}

	status := &CollectionsStatus{
		EnrollmentID:    enrollment.ID,
		AsOf:            day,
		Overdue:         []OverdueInstallment{},
		OverdueAmount:   decimal.Zero,
		TotalLateFees:   decimal.Zero,
		BlockedServices: []collections.Service{},
	}
	maxDaysLate := 0
	for _, inst := range pending {
		daysLate := int(day.Sub(normalize.Day(inst.DueDate)).Hours() / 24)
		if daysLate <= 0 {
			continue
		}
		fee := collections.LateFee(inst.Amount, daysLate, feeRule)
		status.Overdue = append(status.Overdue, OverdueInstallment{Installment: inst, DaysLate: daysLate, LateFee: fee})
		status.OverdueAmount = status.OverdueAmount.Add(inst.Amount)
		status.TotalLateFees = status.TotalLateFees.Add(fee)
		if daysLate > maxDaysLate {
			maxDaysLate = daysLate
		}
	}
	if maxDaysLate > 0 {
		status.BlockedServices = collections.BlockedServices(maxDaysLate, blocking)
	}
	return status, nil
}
