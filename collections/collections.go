// Package collections computes late fees and service blocks for overdue
// installments. Everything here is derived; nothing is persisted.
package collections

import (
	"sort"

	"github.com/anjiri1684/tuition_billing/models"
	"github.com/shopspring/decimal"
)

// Service is something a student loses access to while in arrears.
type Service string

var (
	defaultLateFeeRate = decimal.RequireFromString("0.02")
	one                = decimal.NewFromInt(1)
)

// MonthsLate counts started 30-day periods.
func MonthsLate(daysLate int) int {
	if daysLate <= 0 {
		return 0
	}
	return (daysLate + 29) / 30
}

// LateFee accrues per started month of delay. A rule amount of at most 1 is
// a rate over the principal; above 1 it is a flat amount. With no rule the
// rate is 2%.
func LateFee(principal decimal.Decimal, daysLate int, rule *models.LateFeeRule) decimal.Decimal {
	months := MonthsLate(daysLate)
	if months == 0 {
		return decimal.Zero
	}
	m := decimal.NewFromInt(int64(months))

	var fee decimal.Decimal
	switch {
	case rule == nil:
		fee = principal.Mul(defaultLateFeeRate).Mul(m)
	case rule.LateFeeAmount.LessThanOrEqual(one):
		fee = principal.Mul(rule.LateFeeAmount).Mul(m)
	default:
		fee = rule.LateFeeAmount.Mul(m)
	}
	return fee.Round(2)
}

// BlockedServices unions the services of every rule already triggered,
// strictest rule first, without repeats.
func BlockedServices(daysLate int, rules []models.BlockingRule) []Service {
	triggered := make([]models.BlockingRule, 0, len(rules))
	for _, r := range rules {
		if r.DaysAfterDue <= daysLate {
			triggered = append(triggered, r)
		}
	}
	sort.SliceStable(triggered, func(i, j int) bool {
		return triggered[i].DaysAfterDue > triggered[j].DaysAfterDue
	})

	seen := make(map[Service]bool)
	blocked := []Service{}
	for _, r := range triggered {
		for _, name := range r.Services() {
			s := Service(name)
			if !seen[s] {
				seen[s] = true
				blocked = append(blocked, s)
			}
		}
	}
	return blocked
}
