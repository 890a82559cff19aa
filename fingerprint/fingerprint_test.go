package fingerprint

import (
	"testing"
	"time"

	"github.com/anjiri1684/tuition_billing/normalize"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func ref(raw string) string {
	canonical, _ := normalize.Reference(raw)
	return canonical
}

func TestBankFingerprintIsStableAcrossSpellings(t *testing.T) {
	date := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)

	a := Bank(normalize.Bank("BI"), ref("ab-12"), decimal.RequireFromString("100.00"), date)
	b := Bank(normalize.Bank("Banco Industrial"), ref("AB12"), decimal.NewFromFloat(100.0), date)

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestKeyFormat(t *testing.T) {
	date := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "BANCO INDUSTRIAL|AB12|100.00|2024-01-05",
		Key("BANCO INDUSTRIAL", "AB12", decimal.NewFromInt(100), date))
}

func TestBankFingerprintDiffersPerField(t *testing.T) {
	date := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	base := Bank("BANRURAL", "R1", decimal.NewFromInt(100), date)

	assert.NotEqual(t, base, Bank("BANRURAL", "R2", decimal.NewFromInt(100), date))
	assert.NotEqual(t, base, Bank("BANRURAL", "R1", decimal.NewFromInt(101), date))
	assert.NotEqual(t, base, Bank("BANRURAL", "R1", decimal.NewFromInt(100), date.AddDate(0, 0, 1)))
	assert.NotEqual(t, base, Bank("BAC CREDOMATIC", "R1", decimal.NewFromInt(100), date))
}

func TestLedgerKeySeparatesEnrollments(t *testing.T) {
	date := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	first, second := uuid.New(), uuid.New()

	assert.NotEqual(t,
		LedgerKey(first, "BANRURAL", "R1", date),
		LedgerKey(second, "BANRURAL", "R1", date))
	assert.Equal(t,
		LedgerKey(first, "BANRURAL", "R1", date),
		LedgerKey(first, "BANRURAL", "R1", date))
}

func TestFileHash(t *testing.T) {
	assert.Equal(t, File([]byte("proof")), File([]byte("proof")))
	assert.NotEqual(t, File([]byte("proof")), File([]byte("proof2")))
}
