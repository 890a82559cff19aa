package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// LateFeeRule configures late-fee accrual. An amount of at most 1 is a
// fraction of the overdue principal per elapsed month; above 1 it is a flat
// amount per elapsed month.
type LateFeeRule struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	LateFeeAmount decimal.Decimal `gorm:"type:numeric(12,4);not null" json:"late_fee_amount"`
	Active        bool            `gorm:"default:true" json:"active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (r *LateFeeRule) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

type BlockingRule struct {
	ID               uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Name             string         `gorm:"size:120;not null" json:"name"`
	DaysAfterDue     int            `gorm:"not null" json:"days_after_due"`
	AffectedServices datatypes.JSON `json:"affected_services"`
	Active           bool           `gorm:"default:true" json:"active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (r *BlockingRule) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// Services decodes AffectedServices; malformed JSON yields no services.
func (r *BlockingRule) Services() []string {
	var out []string
	if len(r.AffectedServices) == 0 {
		return out
	}
	if err := json.Unmarshal(r.AffectedServices, &out); err != nil {
		return nil
	}
	return out
}

func (r *BlockingRule) SetServices(services []string) error {
	raw, err := json.Marshal(services)
	if err != nil {
		return err
	}
	r.AffectedServices = datatypes.JSON(raw)
	return nil
}
