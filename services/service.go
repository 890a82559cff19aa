package services

import (
	"log"
	"time"

	"github.com/anjiri1684/tuition_billing/events"
	"github.com/anjiri1684/tuition_billing/ledger"
	"github.com/anjiri1684/tuition_billing/models"
	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

var validate = validator.New()

// Deps is what every service here shares.
type Deps struct {
	DB        *gorm.DB
	Publisher events.Publisher
	Sink      ledger.WarningSink
	Now       func() time.Time
}

func (d Deps) now() time.Time {
	if d.Now == nil {
		return time.Now()
	}
	return d.Now()
}

func (d Deps) warn(w ledger.Warning) {
	log.Printf("⚠️ %s", w)
	if d.Sink != nil {
		d.Sink.Push(w)
	}
}

func (d Deps) publish(eventType string, payload any) {
	if d.Publisher != nil {
		d.Publisher.Publish(eventType, payload)
	}
}

// announce publishes what a committed settlement changed and queues its
// warnings.
func (d Deps) announce(s *ledger.Settlement, linked *models.BankStatementRecord) {
	for _, w := range s.Warnings {
		d.warn(w)
	}
	if inst := s.Installment; inst != nil && inst.PaidAt != nil {
		ev := events.InstallmentSettledEvent{
			InstallmentID: inst.ID,
			EnrollmentID:  inst.EnrollmentID,
			LedgerEntryID: s.Entry.ID,
			Amount:        s.Entry.Amount,
			PaidAt:        *inst.PaidAt,
		}
		if s.Match != nil {
			ev.Shortfall = s.Match.Shortfall
		}
		d.publish(events.InstallmentSettled, ev)
	}
	if linked != nil {
		d.publish(events.BankRecordReconciled, events.BankRecordReconciledEvent{
			BankRecordID:  linked.ID,
			LedgerEntryID: s.Entry.ID,
			Fingerprint:   linked.Fingerprint,
		})
	}
}
