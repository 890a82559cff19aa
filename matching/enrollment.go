package matching

import (
	"sort"

	"github.com/anjiri1684/tuition_billing/models"
	"github.com/anjiri1684/tuition_billing/normalize"
	"github.com/shopspring/decimal"
)

var (
	disambiguationFloor = decimal.NewFromInt(500)
	disambiguationRatio = decimal.RequireFromString("0.33")
)

// Candidate is one active enrollment of a student with its pending installments.
type Candidate struct {
	Enrollment models.Enrollment
	Pending    []models.Installment
}

type EnrollmentRule string

const (
	EnrollmentOnly        EnrollmentRule = "single"
	EnrollmentApprovedFee EnrollmentRule = "approved_fee"
	EnrollmentDateWindow  EnrollmentRule = "date_window"
	EnrollmentAmount      EnrollmentRule = "amount"
	EnrollmentMostRecent  EnrollmentRule = "most_recent"
)

// SelectEnrollment picks the enrollment a payment belongs to when a student
// has several. Each step is evaluated over every candidate before falling
// through to the next; ties go to the most recently created enrollment.
func SelectEnrollment(p Payment, candidates []Candidate) (Candidate, EnrollmentRule, bool) {
	switch len(candidates) {
	case 0:
		return Candidate{}, "", false
	case 1:
		return candidates[0], EnrollmentOnly, true
	}

	ordered := make([]Candidate, len(candidates))
	copy(ordered, candidates)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Enrollment.CreatedAt.After(ordered[j].Enrollment.CreatedAt)
	})

	if p.ApprovedFee != nil {
		if c, ok := closestWithin(ordered, *p.ApprovedFee); ok {
			return c, EnrollmentApprovedFee, true
		}
	}

	day := normalize.Day(p.Date)
	for _, c := range ordered {
		from, to := c.Enrollment.Window()
		from, to = normalize.Day(from), normalize.Day(to)
		if !day.Before(from) && !day.After(to) {
			return c, EnrollmentDateWindow, true
		}
	}

	if c, ok := closestWithin(ordered, p.Amount); ok {
		return c, EnrollmentAmount, true
	}

	return ordered[0], EnrollmentMostRecent, true
}

// closestWithin returns the candidate holding the pending installment nearest
// to target, provided it is within max(500, target * 0.33).
func closestWithin(ordered []Candidate, target decimal.Decimal) (Candidate, bool) {
	tolerance := decimal.Max(disambiguationFloor, target.Mul(disambiguationRatio))

	var best Candidate
	var bestDiff decimal.Decimal
	found := false
	for _, c := range ordered {
		for _, inst := range c.Pending {
			if !inst.IsPending() {
				continue
			}
			diff := inst.Amount.Sub(target).Abs()
			if diff.GreaterThan(tolerance) {
				continue
			}
			if !found || diff.LessThan(bestDiff) {
				best, bestDiff, found = c, diff, true
			}
		}
	}
	return best, found
}
