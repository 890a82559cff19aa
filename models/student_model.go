package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Student is owned by the user administration layer; reconciliation only reads it.
type Student struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Carnet   string    `gorm:"size:50;not null;uniqueIndex" json:"carnet"`
	FullName string    `gorm:"size:255;not null" json:"full_name"`

	Enrollments []Enrollment `gorm:"foreignKey:StudentID" json:"enrollments,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *Student) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
