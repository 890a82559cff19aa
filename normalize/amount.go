package normalize

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

var (
	ErrEmptyAmount   = errors.New("amount is empty")
	ErrInvalidAmount = errors.New("amount is not a number")
)

var currencyCodes = []string{"GTQ", "USD"}

// Amount parses a monetary value. Numbers are taken as they are; strings may
// carry Q, GTQ, $ or USD, spaces and either "1.234,56" or "1,234.56"
// grouping. When both separators appear, the last one is the decimal point.
// Any other character makes the value invalid.
func Amount(raw any) (decimal.Decimal, error) {
	switch v := raw.(type) {
	case nil:
		return decimal.Zero, ErrEmptyAmount
	case decimal.Decimal:
		return v, nil
	case *decimal.Decimal:
		if v == nil {
			return decimal.Zero, ErrEmptyAmount
		}
		return *v, nil
	case float64:
		return decimal.NewFromFloat(v), nil
	case float32:
		return decimal.NewFromFloat32(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int32:
		return decimal.NewFromInt32(v), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case string:
		return parseAmountString(v)
	default:
		return decimal.Zero, fmt.Errorf("%w: unsupported type %T", ErrInvalidAmount, raw)
	}
}

func parseAmountString(raw string) (decimal.Decimal, error) {
	value := strings.ToUpper(strings.TrimSpace(raw))
	for _, code := range currencyCodes {
		value = strings.ReplaceAll(value, code, "")
	}

	var b strings.Builder
	negative := false
	for _, r := range value {
		switch {
		case r >= '0' && r <= '9', r == '.', r == ',':
			b.WriteRune(r)
		case r == '-' || r == '(':
			negative = true
		case r == ')', r == 'Q', r == '$', unicode.IsSpace(r):
		default:
			return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
		}
	}
	value = strings.Trim(b.String(), ".,")
	if value == "" {
		if strings.TrimSpace(raw) == "" {
			return decimal.Zero, ErrEmptyAmount
		}
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}

	lastDot := strings.LastIndex(value, ".")
	lastComma := strings.LastIndex(value, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			value = strings.ReplaceAll(value, ".", "")
			value = strings.Replace(value, ",", ".", 1)
		} else {
			value = strings.ReplaceAll(value, ",", "")
		}
	case lastComma >= 0:
		value = resolveSeparator(value, ",")
	case lastDot >= 0:
		value = resolveSeparator(value, ".")
	}

	amount, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	if negative {
		amount = amount.Neg()
	}
	return amount, nil
}

// resolveSeparator decides whether a lone separator kind is grouping or the
// decimal point: repeated, or followed by exactly three digits, means grouping.
func resolveSeparator(value, sep string) string {
	if strings.Count(value, sep) > 1 {
		return strings.ReplaceAll(value, sep, "")
	}
	idx := strings.Index(value, sep)
	if len(value)-idx-1 == 3 {
		return strings.ReplaceAll(value, sep, "")
	}
	return strings.Replace(value, sep, ".", 1)
}
