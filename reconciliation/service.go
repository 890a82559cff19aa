// Package reconciliation links bank statement records to payment ledger
// entries and settles the installments they pay.
package reconciliation

import (
	"log"
	"time"

	"github.com/anjiri1684/tuition_billing/cache"
	"github.com/anjiri1684/tuition_billing/events"
	"github.com/anjiri1684/tuition_billing/ledger"
	"go.opentelemetry.io/otel"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("github.com/anjiri1684/tuition_billing/reconciliation")

// importLockTTL bounds how long a crashed import can keep a file locked.
const importLockTTL = 15 * time.Minute

type Service struct {
	DB        *gorm.DB
	Publisher events.Publisher
	Sink      ledger.WarningSink
	Locker    cache.Locker
	Now       func() time.Time
}

func NewService(db *gorm.DB, publisher events.Publisher, sink ledger.WarningSink, locker cache.Locker) *Service {
	if publisher == nil {
		publisher = events.LogPublisher{}
	}
	return &Service{DB: db, Publisher: publisher, Sink: sink, Locker: locker, Now: time.Now}
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func (s *Service) warn(w ledger.Warning) {
	log.Printf("⚠️ %s", w)
	if s.Sink != nil {
		s.Sink.Push(w)
	}
}

func (s *Service) publish(eventType string, payload any) {
	if s.Publisher != nil {
		s.Publisher.Publish(eventType, payload)
	}
}
