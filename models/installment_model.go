package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ErrInstallmentReferenced is returned when deleting an installment that a
// ledger entry still points to.
var ErrInstallmentReferenced = errors.New("installment is referenced by a payment ledger entry")

// Installment is one scheduled due amount. Sequence 0 is the enrollment fee,
// 1..N are the monthly fees.
type Installment struct {
	ID             uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	EnrollmentID   uuid.UUID         `gorm:"type:uuid;not null;uniqueIndex:idx_installment_enrollment_seq,priority:1" json:"enrollment_id"`
	SequenceNumber int               `gorm:"not null;uniqueIndex:idx_installment_enrollment_seq,priority:2" json:"sequence_number"`
	DueDate        time.Time         `gorm:"type:date;not null;index" json:"due_date"`
	Amount         decimal.Decimal   `gorm:"type:numeric(12,2);not null" json:"amount"`
	Status         InstallmentStatus `gorm:"size:20;not null;default:'pending';index" json:"status"`
	PaidAt         *time.Time        `json:"paid_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (i *Installment) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

func (i *Installment) BeforeDelete(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		return nil
	}
	var refs int64
	if err := tx.Session(&gorm.Session{NewDB: true}).
		Model(&PaymentLedgerEntry{}).
		Where("installment_id = ?", i.ID).
		Count(&refs).Error; err != nil {
		return err
	}
	if refs > 0 {
		return ErrInstallmentReferenced
	}
	return nil
}

func (i *Installment) IsPending() bool {
	return i.Status == InstallmentPending
}
