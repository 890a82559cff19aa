// Package matching decides which enrollment and which pending installment a
// payment settles. Each tier of the heuristic is a pure strategy so tiers can
// be tested and reordered in isolation.
package matching

import (
	"sort"
	"time"

	"github.com/anjiri1684/tuition_billing/models"
	"github.com/shopspring/decimal"
)

var (
	ApprovedFeeTolerance = decimal.NewFromInt(100)
	AmountTolerance      = decimal.NewFromInt(500)
	partialFloor         = decimal.RequireFromString("0.5")
	one                  = decimal.NewFromInt(1)
)

// Payment is the evidence being matched. ApprovedFee is the officially
// approved monthly fee when the import carries it.
type Payment struct {
	Amount      decimal.Decimal
	Date        time.Time
	ApprovedFee *decimal.Decimal
}

type Rule string

const (
	RuleApprovedFee   Rule = "approved_fee"
	RuleAmount        Rule = "amount"
	RulePartial       Rule = "partial"
	RuleChronological Rule = "chronological"
)

// Match is a selected installment together with the statistics the caller
// records for it.
type Match struct {
	Installment models.Installment
	Rule        Rule
	// Difference is installment amount minus payment.
	Difference decimal.Decimal
	Shortfall  decimal.Decimal
	Partial    bool
	// AmountMismatch flags a chronological fallback whose amount is far off.
	AmountMismatch bool
}

// Strategy inspects pending installments, already ordered by due date, and
// returns a match when its rule applies.
type Strategy func(p Payment, pending []models.Installment) (Match, bool)

// Selection is the outcome of running the strategies. Match is nil when the
// enrollment has nothing pending.
type Selection struct {
	Match *Match
}

func (s Selection) Resolved() bool {
	return s.Match != nil
}

var DefaultStrategies = []Strategy{
	ApprovedFeeMatch,
	AmountMatch,
	PartialMatch,
	ChronologicalMatch,
}

// SelectInstallment runs the default strategies in priority order.
func SelectInstallment(p Payment, pending []models.Installment) Selection {
	return Run(p, pending, DefaultStrategies...)
}

// Run evaluates strategies in order and stops at the first match. Installments
// that are not pending are ignored.
func Run(p Payment, installments []models.Installment, strategies ...Strategy) Selection {
	pending := PendingByDueDate(installments)
	if len(pending) == 0 {
		return Selection{}
	}
	for _, strategy := range strategies {
		if m, ok := strategy(p, pending); ok {
			return Selection{Match: &m}
		}
	}
	return Selection{}
}

// PendingByDueDate filters pending installments and orders them by due date,
// then sequence number.
func PendingByDueDate(installments []models.Installment) []models.Installment {
	pending := make([]models.Installment, 0, len(installments))
	for _, inst := range installments {
		if inst.IsPending() {
			pending = append(pending, inst)
		}
	}
	sort.SliceStable(pending, func(i, j int) bool {
		if !pending[i].DueDate.Equal(pending[j].DueDate) {
			return pending[i].DueDate.Before(pending[j].DueDate)
		}
		return pending[i].SequenceNumber < pending[j].SequenceNumber
	})
	return pending
}

func ApprovedFeeMatch(p Payment, pending []models.Installment) (Match, bool) {
	if p.ApprovedFee == nil {
		return Match{}, false
	}
	for _, inst := range pending {
		if inst.Amount.Sub(*p.ApprovedFee).Abs().LessThanOrEqual(ApprovedFeeTolerance) {
			return newMatch(RuleApprovedFee, p, inst), true
		}
	}
	return Match{}, false
}

func AmountMatch(p Payment, pending []models.Installment) (Match, bool) {
	for _, inst := range pending {
		if inst.Amount.Sub(p.Amount).Abs().LessThanOrEqual(AmountTolerance) {
			return newMatch(RuleAmount, p, inst), true
		}
	}
	return Match{}, false
}

// PartialMatch selects the first installment the payment covers at least half
// of, without covering it fully.
func PartialMatch(p Payment, pending []models.Installment) (Match, bool) {
	for _, inst := range pending {
		if isPartial(p.Amount, inst.Amount) {
			return newMatch(RulePartial, p, inst), true
		}
	}
	return Match{}, false
}

func ChronologicalMatch(p Payment, pending []models.Installment) (Match, bool) {
	if len(pending) == 0 {
		return Match{}, false
	}
	m := newMatch(RuleChronological, p, pending[0])
	m.AmountMismatch = m.Difference.Abs().GreaterThan(AmountTolerance)
	return m, true
}

func newMatch(rule Rule, p Payment, inst models.Installment) Match {
	diff := inst.Amount.Sub(p.Amount)
	shortfall := decimal.Zero
	if diff.IsPositive() {
		shortfall = diff
	}
	return Match{
		Installment: inst,
		Rule:        rule,
		Difference:  diff,
		Shortfall:   shortfall,
		Partial:     isPartial(p.Amount, inst.Amount),
	}
}

func isPartial(payment, due decimal.Decimal) bool {
	if !due.IsPositive() {
		return false
	}
	ratio := payment.Div(due)
	return ratio.GreaterThanOrEqual(partialFloor) && ratio.LessThan(one)
}
