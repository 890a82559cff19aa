package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Enrollment struct {
	ID              uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	StudentID       uuid.UUID        `gorm:"type:uuid;not null;index" json:"student_id"`
	ProgramID       uuid.UUID        `gorm:"type:uuid;not null" json:"program_id"`
	StartDate       time.Time        `gorm:"type:date;not null" json:"start_date"`
	EndDate         time.Time        `gorm:"type:date;not null" json:"end_date"`
	DurationMonths  int              `gorm:"not null" json:"duration_months"`
	MonthlyFee      decimal.Decimal  `gorm:"type:numeric(12,2);not null" json:"monthly_fee"`
	EnrollmentFee   decimal.Decimal  `gorm:"type:numeric(12,2);not null;default:0" json:"enrollment_fee"`
	TotalInvestment decimal.Decimal  `gorm:"type:numeric(12,2);not null;default:0" json:"total_investment"`
	Status          EnrollmentStatus `gorm:"size:20;not null;default:'active';index" json:"status"`

	Installments []Installment `gorm:"foreignKey:EnrollmentID;constraint:OnDelete:CASCADE" json:"installments,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (e *Enrollment) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// Window returns the payment-date window used to attribute a payment to this
// enrollment: one month of slack on either side of the program dates.
func (e *Enrollment) Window() (time.Time, time.Time) {
	return e.StartDate.AddDate(0, 0, -30), e.EndDate.AddDate(0, 0, 30)
}
