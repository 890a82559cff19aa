package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// BankStatementRecord is one line of an imported bank statement. Records are
// upserted by Fingerprint so re-importing a file never duplicates a movement.
type BankStatementRecord struct {
	ID                  uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	Bank                string           `gorm:"size:120;not null" json:"bank"`
	BankNormalized      string           `gorm:"size:120;not null;index" json:"bank_normalized"`
	Reference           string           `gorm:"size:120;not null" json:"reference"`
	ReferenceNormalized string           `gorm:"size:120;not null;index" json:"reference_normalized"`
	Amount              decimal.Decimal  `gorm:"type:numeric(12,2);not null" json:"amount"`
	Date                time.Time        `gorm:"type:date;not null;index" json:"date"`
	AuthNumber          *string          `gorm:"size:120" json:"auth_number,omitempty"`
	Status              BankRecordStatus `gorm:"size:20;not null;default:'uploaded';index" json:"status"`
	Fingerprint         string           `gorm:"size:64;not null;uniqueIndex" json:"fingerprint"`
	LinkedLedgerEntryID *uuid.UUID       `gorm:"type:uuid;index" json:"linked_ledger_entry_id,omitempty"`
	UploadedBy          *uuid.UUID       `gorm:"type:uuid" json:"uploaded_by,omitempty"`
	ImportBatchID       *uuid.UUID       `gorm:"type:uuid;index" json:"import_batch_id,omitempty"`

	LinkedLedgerEntry *PaymentLedgerEntry `gorm:"foreignKey:LinkedLedgerEntryID" json:"linked_ledger_entry,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (b *BankStatementRecord) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}
