package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PaymentLedgerEntry is an internal record that money was received.
type PaymentLedgerEntry struct {
	ID                uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	EnrollmentID      uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_ledger_enrollment_receipt,priority:1;uniqueIndex:idx_ledger_enrollment_proof,priority:1" json:"enrollment_id"`
	InstallmentID     *uuid.UUID      `gorm:"type:uuid;index" json:"installment_id"`
	Amount            decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	PaymentDate       time.Time       `gorm:"type:date;not null;index" json:"payment_date"`
	ReceiptDate       *time.Time      `gorm:"type:date" json:"receipt_date,omitempty"`
	Bank              string          `gorm:"size:120;not null" json:"bank"`
	BankNormalized    string          `gorm:"size:120;not null;uniqueIndex:idx_ledger_enrollment_receipt,priority:2;index" json:"bank_normalized"`
	ReceiptNumber     string          `gorm:"size:120;not null" json:"receipt_number"`
	ReceiptNormalized string          `gorm:"size:120;not null;uniqueIndex:idx_ledger_enrollment_receipt,priority:3;index" json:"receipt_normalized"`
	ProofFileHash     *string         `gorm:"size:64;uniqueIndex:idx_ledger_enrollment_proof,priority:2" json:"proof_file_hash,omitempty"`
	ProofURL          *string         `gorm:"type:text" json:"proof_url,omitempty"`
	EntryKey          string          `gorm:"size:64;uniqueIndex" json:"entry_key"`
	Source            LedgerSource    `gorm:"size:30;not null" json:"source"`
	Concept           *string         `gorm:"size:255" json:"concept,omitempty"`
	Status            LedgerStatus    `gorm:"size:20;not null;index" json:"status"`
	ApprovedAt        *time.Time      `json:"approved_at,omitempty"`
	ApprovedBy        *uuid.UUID      `gorm:"type:uuid" json:"approved_by,omitempty"`
	ReviewNote        *string         `gorm:"type:text" json:"review_note,omitempty"`

	Enrollment  *Enrollment  `gorm:"foreignKey:EnrollmentID" json:"-"`
	Installment *Installment `gorm:"foreignKey:InstallmentID;constraint:OnDelete:RESTRICT" json:"installment,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p *PaymentLedgerEntry) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
