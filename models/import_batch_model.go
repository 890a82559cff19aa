package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ImportBatch is the audit row for one import invocation.
type ImportBatch struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Kind       ImportKind     `gorm:"size:30;not null;index" json:"kind"`
	FileName   string         `gorm:"size:255" json:"file_name"`
	FileHash   string         `gorm:"size:64;index" json:"file_hash"`
	UploadedBy *uuid.UUID     `gorm:"type:uuid" json:"uploaded_by,omitempty"`
	Status     ImportStatus   `gorm:"size:20;not null" json:"status"`
	StartedAt  time.Time      `gorm:"not null" json:"started_at"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
	Summary    datatypes.JSON `json:"summary"`
}

func (b *ImportBatch) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}
