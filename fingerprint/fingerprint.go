// Package fingerprint derives the identity keys used for idempotent ingestion
// of bank statement lines and ledger entries.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/anjiri1684/tuition_billing/normalize"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const delimiter = "|"

// Key is the readable composite identity of a financial event. Inputs must
// already be normalized.
func Key(bankNorm, refNorm string, amount decimal.Decimal, date time.Time) string {
	return strings.Join([]string{
		bankNorm,
		refNorm,
		amount.StringFixed(2),
		normalize.Day(date).Format("2006-01-02"),
	}, delimiter)
}

// Bank is the stored fingerprint of a bank statement record: the SHA-256 of Key.
func Bank(bankNorm, refNorm string, amount decimal.Decimal, date time.Time) string {
	return digest(Key(bankNorm, refNorm, amount, date))
}

// LedgerKey is the uniqueness key of a ledger entry. The enrollment is part of
// it because students sharing one teller receipt carry the same bank reference.
func LedgerKey(enrollmentID uuid.UUID, bankNorm, refNorm string, paymentDate time.Time) string {
	return digest(strings.Join([]string{
		enrollmentID.String(),
		bankNorm,
		refNorm,
		normalize.Day(paymentDate).Format("2006-01-02"),
	}, delimiter))
}

// File hashes uploaded proof or statement files.
func File(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func digest(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
