package reconciliation

import (
	"context"
	"time"

	"github.com/anjiri1684/tuition_billing/ledger"
	"github.com/anjiri1684/tuition_billing/models"
	"github.com/anjiri1684/tuition_billing/normalize"
	"github.com/google/uuid"
)

// Filter narrows the read paths to a day range. Zero bounds are open.
type Filter struct {
	From time.Time
	To   time.Time
}

func (f Filter) contains(t time.Time) bool {
	d := normalize.Day(t)
	if !f.From.IsZero() && d.Before(normalize.Day(f.From)) {
		return false
	}
	if !f.To.IsZero() && d.After(normalize.Day(f.To)) {
		return false
	}
	return true
}

// PendingMatch is a ledger entry no bank record corroborates yet.
type PendingMatch struct {
	Entry       models.PaymentLedgerEntry `json:"entry"`
	Fingerprint string                    `json:"fingerprint"`
}

// MatchedPair is a bank record and the ledger entry it corresponds to, either
// through the stored link or because their fingerprints agree.
type MatchedPair struct {
	Record   models.BankStatementRecord `json:"record"`
	Entry    models.PaymentLedgerEntry  `json:"entry"`
	LinkedBy string                     `json:"linked_by"`
}

const (
	LinkedByReference   = "link"
	LinkedByFingerprint = "fingerprint"
)

var liveStatuses = []models.LedgerStatus{
	models.LedgerPendingReview, models.LedgerInReview, models.LedgerApproved,
}

// UnmatchedBankRecords lists records still waiting for a ledger entry.
func (s *Service) UnmatchedBankRecords(ctx context.Context, f Filter) ([]models.BankStatementRecord, error) {
	var records []models.BankStatementRecord
	if err := s.DB.WithContext(ctx).
		Where("status = ?", models.BankRecordUploaded).
		Order("date asc, created_at asc").
		Find(&records).Error; err != nil {
		return nil, err
	}
	out := make([]models.BankStatementRecord, 0, len(records))
	for _, r := range records {
		if f.contains(r.Date) {
			out = append(out, r)
		}
	}
	return out, nil
}

// PendingMatches recomputes the bank fingerprint of every live ledger entry
// and reports those with no bank record, linked or not.
func (s *Service) PendingMatches(ctx context.Context, f Filter) ([]PendingMatch, error) {
	entries, err := s.liveEntries(ctx, f)
	if err != nil {
		return nil, err
	}
	byFingerprint, linked, err := s.recordIndex(ctx, entries)
	if err != nil {
		return nil, err
	}

	out := []PendingMatch{}
	for _, e := range entries {
		fp := ledger.BankFingerprint(e)
		if _, ok := linked[e.ID]; ok {
			continue
		}
		if _, ok := byFingerprint[fp]; ok {
			continue
		}
		out = append(out, PendingMatch{Entry: e, Fingerprint: fp})
	}
	return out, nil
}

// ReconciledMatches pairs live ledger entries with their bank records.
func (s *Service) ReconciledMatches(ctx context.Context, f Filter) ([]MatchedPair, error) {
	entries, err := s.liveEntries(ctx, f)
	if err != nil {
		return nil, err
	}
	byFingerprint, linked, err := s.recordIndex(ctx, entries)
	if err != nil {
		return nil, err
	}

	out := []MatchedPair{}
	for _, e := range entries {
		if r, ok := linked[e.ID]; ok {
			out = append(out, MatchedPair{Record: r, Entry: e, LinkedBy: LinkedByReference})
			continue
		}
		if r, ok := byFingerprint[ledger.BankFingerprint(e)]; ok {
			out = append(out, MatchedPair{Record: r, Entry: e, LinkedBy: LinkedByFingerprint})
		}
	}
	return out, nil
}

func (s *Service) liveEntries(ctx context.Context, f Filter) ([]models.PaymentLedgerEntry, error) {
	var entries []models.PaymentLedgerEntry
	if err := s.DB.WithContext(ctx).
		Where("status IN ?", liveStatuses).
		Order("payment_date asc, created_at asc").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	out := entries[:0]
	for _, e := range entries {
		if f.contains(e.PaymentDate) {
			out = append(out, e)
		}
	}
	return out, nil
}

// lookupChunk keeps IN lists under driver parameter limits.
const lookupChunk = 500

// recordIndex loads the bank records relevant to entries, keyed by
// fingerprint and by linked entry.
func (s *Service) recordIndex(ctx context.Context, entries []models.PaymentLedgerEntry) (map[string]models.BankStatementRecord, map[uuid.UUID]models.BankStatementRecord, error) {
	byFingerprint := make(map[string]models.BankStatementRecord)
	linked := make(map[uuid.UUID]models.BankStatementRecord)

	fps := make([]string, 0, len(entries))
	ids := make([]uuid.UUID, 0, len(entries))
	for _, e := range entries {
		fps = append(fps, ledger.BankFingerprint(e))
		ids = append(ids, e.ID)
	}

	db := s.DB.WithContext(ctx)
	for start := 0; start < len(entries); start += lookupChunk {
		end := min(start+lookupChunk, len(entries))

		var records []models.BankStatementRecord
		if err := db.Where("fingerprint IN ? OR linked_ledger_entry_id IN ?", fps[start:end], ids[start:end]).
			Find(&records).Error; err != nil {
			return nil, nil, err
		}
		for _, r := range records {
			byFingerprint[r.Fingerprint] = r
			if r.LinkedLedgerEntryID != nil {
				linked[*r.LinkedLedgerEntryID] = r
			}
		}
	}
	return byFingerprint, linked, nil
}
