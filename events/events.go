// Package events announces reconciliation outcomes to other systems.
package events

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	InstallmentSettled   = "installment.settled"
	BankRecordReconciled = "bank_record.reconciled"
	ImportCompleted      = "import.completed"
)

// Publisher delivers events on a best-effort basis. Publishing never fails
// the operation that produced the event.
type Publisher interface {
	Publish(eventType string, payload any)
}

type InstallmentSettledEvent struct {
	InstallmentID uuid.UUID       `json:"installment_id"`
	EnrollmentID  uuid.UUID       `json:"enrollment_id"`
	LedgerEntryID uuid.UUID       `json:"ledger_entry_id"`
	Amount        decimal.Decimal `json:"amount"`
	Shortfall     decimal.Decimal `json:"shortfall"`
	PaidAt        time.Time       `json:"paid_at"`
}

type BankRecordReconciledEvent struct {
	BankRecordID  uuid.UUID `json:"bank_record_id"`
	LedgerEntryID uuid.UUID `json:"ledger_entry_id"`
	Fingerprint   string    `json:"fingerprint"`
}

type ImportCompletedEvent struct {
	BatchID uuid.UUID `json:"batch_id"`
	Kind    string    `json:"kind"`
	Status  string    `json:"status"`
	Summary any       `json:"summary"`
}

// Multi fans an event out to several publishers.
type Multi []Publisher

func (m Multi) Publish(eventType string, payload any) {
	for _, p := range m {
		if p != nil {
			p.Publish(eventType, payload)
		}
	}
}

// LogPublisher only logs; it is used when no broker is configured.
type LogPublisher struct{}

func (LogPublisher) Publish(eventType string, payload any) {
	log.Printf("📤 %s: %+v", eventType, payload)
}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Recorded
}

type Recorded struct {
	Type    string
	Payload any
}

func (r *Recorder) Publish(eventType string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Recorded{Type: eventType, Payload: payload})
}

// Of returns the recorded events of one type in publish order.
func (r *Recorder) Of(eventType string) []Recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Recorded
	for _, e := range r.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}
