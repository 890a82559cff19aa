package ledger

import (
	"errors"
	"time"

	"github.com/anjiri1684/tuition_billing/models"
	"github.com/anjiri1684/tuition_billing/normalize"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BuildSchedule returns the unsaved installments of an enrollment: the
// enrollment fee as sequence 0 when there is one, then one monthly fee per
// month of the program, due on the start day of each month.
func BuildSchedule(e models.Enrollment) []models.Installment {
	start := normalize.Day(e.StartDate)
	schedule := make([]models.Installment, 0, e.DurationMonths+1)
	if e.EnrollmentFee.IsPositive() {
		schedule = append(schedule, models.Installment{
			EnrollmentID:   e.ID,
			SequenceNumber: 0,
			DueDate:        start,
			Amount:         e.EnrollmentFee,
			Status:         models.InstallmentPending,
		})
	}
	for i := 1; i <= e.DurationMonths; i++ {
		schedule = append(schedule, models.Installment{
			EnrollmentID:   e.ID,
			SequenceNumber: i,
			DueDate:        addMonths(start, i-1),
			Amount:         e.MonthlyFee,
			Status:         models.InstallmentPending,
		})
	}
	return schedule
}

// addMonths moves t forward by n months, clamping to the last day of the
// target month.
func addMonths(t time.Time, n int) time.Time {
	firstOfTarget := time.Date(t.Year(), t.Month()+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	lastDay := firstOfTarget.AddDate(0, 1, -1).Day()
	d := t.Day()
	if d > lastDay {
		d = lastDay
	}
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), d, 0, 0, 0, 0, time.UTC)
}

// GeneratePlan creates the installment plan of an enrollment. With rebuild,
// pending installments no ledger entry points to are replaced; paid or
// referenced ones are kept and their sequence numbers are not regenerated.
func GeneratePlan(db *gorm.DB, enrollmentID uuid.UUID, rebuild bool) ([]models.Installment, error) {
	var plan []models.Installment
	err := db.Transaction(func(tx *gorm.DB) error {
		var enrollment models.Enrollment
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&enrollment, "id = ?", enrollmentID).Error; err != nil {
			return err
		}

		var existing []models.Installment
		if err := tx.Where("enrollment_id = ?", enrollmentID).Find(&existing).Error; err != nil {
			return err
		}
		if len(existing) > 0 && !rebuild {
			return ErrPlanExists
		}

		var referenced []uuid.UUID
		if err := tx.Model(&models.PaymentLedgerEntry{}).
			Where("enrollment_id = ? AND installment_id IS NOT NULL", enrollmentID).
			Pluck("installment_id", &referenced).Error; err != nil {
			return err
		}
		isReferenced := make(map[uuid.UUID]bool, len(referenced))
		for _, id := range referenced {
			isReferenced[id] = true
		}

		kept := make(map[int]bool)
		var removable []uuid.UUID
		for _, inst := range existing {
			if inst.IsPending() && !isReferenced[inst.ID] {
				removable = append(removable, inst.ID)
				continue
			}
			kept[inst.SequenceNumber] = true
		}
		if len(removable) > 0 {
			if err := tx.Where("id IN ?", removable).Delete(&models.Installment{}).Error; err != nil {
				return err
			}
		}

		var fresh []models.Installment
		for _, inst := range BuildSchedule(enrollment) {
			if !kept[inst.SequenceNumber] {
				fresh = append(fresh, inst)
			}
		}
		if len(fresh) > 0 {
			if err := tx.Create(&fresh).Error; err != nil {
				return err
			}
		}

		return tx.Where("enrollment_id = ?", enrollmentID).
			Order("sequence_number asc").
			Find(&plan).Error
	})
	return plan, err
}

// DeleteInstallment removes a single installment unless a ledger entry points
// to it, in which case models.ErrInstallmentReferenced is returned.
func DeleteInstallment(db *gorm.DB, installmentID uuid.UUID) error {
	var inst models.Installment
	if err := db.First(&inst, "id = ?", installmentID).Error; err != nil {
		return err
	}
	if err := db.Delete(&inst).Error; err != nil {
		if errors.Is(err, models.ErrInstallmentReferenced) {
			return models.ErrInstallmentReferenced
		}
		return err
	}
	return nil
}
