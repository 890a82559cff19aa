package collections

import (
	"testing"

	"github.com/anjiri1684/tuition_billing/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLateFee(t *testing.T) {
	principal := decimal.NewFromInt(1000)
	rate := &models.LateFeeRule{LateFeeAmount: decimal.RequireFromString("0.05")}
	flat := &models.LateFeeRule{LateFeeAmount: decimal.NewFromInt(75)}

	cases := []struct {
		name     string
		daysLate int
		rule     *models.LateFeeRule
		want     string
	}{
		{"not late", 0, nil, "0"},
		{"default rate one month", 1, nil, "20"},
		{"default rate two months", 31, nil, "40"},
		{"rate rule", 30, rate, "50"},
		{"rate rule three months", 61, rate, "150"},
		{"flat rule", 45, flat, "150"},
		{"rate of exactly one", 10, &models.LateFeeRule{LateFeeAmount: decimal.NewFromInt(1)}, "1000"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := LateFee(principal, tc.daysLate, tc.rule)
			assert.True(t, got.Equal(decimal.RequireFromString(tc.want)), "got %s", got)
		})
	}
}

func rule(t *testing.T, days int, services ...string) models.BlockingRule {
	t.Helper()
	r := models.BlockingRule{DaysAfterDue: days}
	require.NoError(t, r.SetServices(services))
	return r
}

func TestBlockedServices(t *testing.T) {
	rules := []models.BlockingRule{
		rule(t, 15, "platform"),
		rule(t, 60, "exams", "certificates"),
		rule(t, 30, "exams", "library"),
	}

	assert.Empty(t, BlockedServices(10, rules))
	assert.Equal(t, []Service{"platform"}, BlockedServices(15, rules))
	assert.Equal(t, []Service{"exams", "library", "platform"}, BlockedServices(45, rules))
	assert.Equal(t, []Service{"exams", "certificates", "library", "platform"}, BlockedServices(90, rules))
}
