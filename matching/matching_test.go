package matching

import (
	"testing"
	"time"

	"github.com/anjiri1684/tuition_billing/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func installment(seq int, amount int64, due time.Time) models.Installment {
	return models.Installment{
		ID:             uuid.New(),
		SequenceNumber: seq,
		DueDate:        due,
		Amount:         dec(amount),
		Status:         models.InstallmentPending,
	}
}

func TestApprovedFeeWinsOverAmount(t *testing.T) {
	pending := []models.Installment{
		installment(1, 500, day(2024, 1, 5)),
		installment(2, 1000, day(2024, 2, 5)),
		installment(3, 1500, day(2024, 3, 5)),
	}
	fee := dec(1000)

	sel := SelectInstallment(Payment{Amount: dec(1005), Date: day(2024, 2, 1), ApprovedFee: &fee}, pending)

	require.True(t, sel.Resolved())
	assert.Equal(t, RuleApprovedFee, sel.Match.Rule)
	assert.Equal(t, pending[1].ID, sel.Match.Installment.ID)
}

func TestAmountMatchPicksEarliestWithinTolerance(t *testing.T) {
	pending := []models.Installment{
		installment(3, 1000, day(2024, 3, 5)),
		installment(1, 2000, day(2024, 1, 5)),
		installment(2, 1000, day(2024, 2, 5)),
	}

	sel := SelectInstallment(Payment{Amount: dec(1000)}, pending)

	require.True(t, sel.Resolved())
	assert.Equal(t, RuleAmount, sel.Match.Rule)
	assert.Equal(t, 2, sel.Match.Installment.SequenceNumber)
	assert.True(t, sel.Match.Shortfall.IsZero())
	assert.False(t, sel.Match.Partial)
}

func TestPartialPaymentIsMatchedWithShortfall(t *testing.T) {
	pending := []models.Installment{installment(1, 1000, day(2024, 1, 5))}

	sel := SelectInstallment(Payment{Amount: dec(600)}, pending)

	require.True(t, sel.Resolved())
	assert.True(t, sel.Match.Partial)
	assert.True(t, sel.Match.Shortfall.Equal(dec(400)))
}

func TestPartialStrategyInIsolation(t *testing.T) {
	pending := []models.Installment{
		installment(1, 3000, day(2024, 1, 5)),
		installment(2, 2000, day(2024, 2, 5)),
	}

	m, ok := PartialMatch(Payment{Amount: dec(1200)}, pending)
	require.True(t, ok)
	assert.Equal(t, 2, m.Installment.SequenceNumber)
	assert.True(t, m.Shortfall.Equal(dec(800)))

	_, ok = PartialMatch(Payment{Amount: dec(900)}, pending)
	assert.False(t, ok, "below half of every installment")

	_, ok = PartialMatch(Payment{Amount: dec(2000)}, []models.Installment{installment(1, 2000, day(2024, 1, 5))})
	assert.False(t, ok, "full coverage is not partial")
}

func TestChronologicalFallbackFlagsLargeMismatch(t *testing.T) {
	pending := []models.Installment{
		installment(2, 3000, day(2024, 2, 5)),
		installment(1, 3000, day(2024, 1, 5)),
	}

	sel := SelectInstallment(Payment{Amount: dec(200)}, pending)

	require.True(t, sel.Resolved())
	assert.Equal(t, RuleChronological, sel.Match.Rule)
	assert.Equal(t, 1, sel.Match.Installment.SequenceNumber)
	assert.True(t, sel.Match.AmountMismatch)
}

func TestNoPendingInstallmentIsUnresolved(t *testing.T) {
	paid := installment(1, 1000, day(2024, 1, 5))
	paid.Status = models.InstallmentPaid

	sel := SelectInstallment(Payment{Amount: dec(1000)}, []models.Installment{paid})
	assert.False(t, sel.Resolved())

	assert.False(t, SelectInstallment(Payment{Amount: dec(1000)}, nil).Resolved())
}

func TestRunRespectsStrategyOrder(t *testing.T) {
	pending := []models.Installment{
		installment(1, 300, day(2024, 1, 5)),
		installment(2, 1000, day(2024, 2, 5)),
	}

	sel := Run(Payment{Amount: dec(550)}, pending, PartialMatch, AmountMatch)
	require.True(t, sel.Resolved())
	assert.Equal(t, RulePartial, sel.Match.Rule)
	assert.Equal(t, 2, sel.Match.Installment.SequenceNumber)

	sel = Run(Payment{Amount: dec(550)}, pending, AmountMatch, PartialMatch)
	require.True(t, sel.Resolved())
	assert.Equal(t, RuleAmount, sel.Match.Rule)
	assert.Equal(t, 1, sel.Match.Installment.SequenceNumber)
}

func candidate(created time.Time, start, end time.Time, amounts ...int64) Candidate {
	c := Candidate{Enrollment: models.Enrollment{
		ID:        uuid.New(),
		StartDate: start,
		EndDate:   end,
		CreatedAt: created,
	}}
	for i, a := range amounts {
		c.Pending = append(c.Pending, installment(i+1, a, start.AddDate(0, i, 0)))
	}
	return c
}

func TestSelectEnrollmentSingleAndEmpty(t *testing.T) {
	_, _, ok := SelectEnrollment(Payment{Amount: dec(100)}, nil)
	assert.False(t, ok)

	only := candidate(day(2023, 1, 1), day(2023, 1, 1), day(2023, 12, 1), 1000)
	got, rule, ok := SelectEnrollment(Payment{Amount: dec(100)}, []Candidate{only})
	require.True(t, ok)
	assert.Equal(t, EnrollmentOnly, rule)
	assert.Equal(t, only.Enrollment.ID, got.Enrollment.ID)
}

func TestSelectEnrollmentByApprovedFee(t *testing.T) {
	diploma := candidate(day(2023, 1, 1), day(2023, 1, 1), day(2024, 12, 1), 1500)
	master := candidate(day(2024, 1, 1), day(2024, 1, 1), day(2025, 12, 1), 3000)
	fee := dec(1450)

	got, rule, ok := SelectEnrollment(Payment{Amount: dec(3000), Date: day(2024, 3, 1), ApprovedFee: &fee}, []Candidate{master, diploma})
	require.True(t, ok)
	assert.Equal(t, EnrollmentApprovedFee, rule)
	assert.Equal(t, diploma.Enrollment.ID, got.Enrollment.ID)
}

func TestSelectEnrollmentByDateWindow(t *testing.T) {
	old := candidate(day(2022, 1, 1), day(2022, 1, 1), day(2022, 12, 1), 1000)
	current := candidate(day(2024, 1, 1), day(2024, 1, 1), day(2024, 12, 1), 1000)

	got, rule, ok := SelectEnrollment(Payment{Amount: dec(1000), Date: day(2022, 12, 20)}, []Candidate{current, old})
	require.True(t, ok)
	assert.Equal(t, EnrollmentDateWindow, rule)
	assert.Equal(t, old.Enrollment.ID, got.Enrollment.ID)
}

func TestSelectEnrollmentByAmountThenMostRecent(t *testing.T) {
	cheap := candidate(day(2021, 1, 1), day(2021, 1, 1), day(2021, 6, 1), 800)
	pricey := candidate(day(2022, 1, 1), day(2022, 1, 1), day(2022, 6, 1), 5000)

	got, rule, ok := SelectEnrollment(Payment{Amount: dec(4800), Date: day(2024, 5, 1)}, []Candidate{cheap, pricey})
	require.True(t, ok)
	assert.Equal(t, EnrollmentAmount, rule)
	assert.Equal(t, pricey.Enrollment.ID, got.Enrollment.ID)

	got, rule, ok = SelectEnrollment(Payment{Amount: dec(20000), Date: day(2024, 5, 1)}, []Candidate{pricey, cheap})
	require.True(t, ok)
	assert.Equal(t, EnrollmentMostRecent, rule)
	assert.Equal(t, pricey.Enrollment.ID, got.Enrollment.ID)
}
