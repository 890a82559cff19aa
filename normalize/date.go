package normalize

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Spreadsheet serial day 0.
var serialEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

const maxSerial = 2958465 // 9999-12-31

var dateLayouts = []string{
	"2/1/2006",
	"2006-01-02",
	"2006-1-2",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2/1/2006 15:04:05",
	"2/1/2006 15:04",
	"2-1-2006",
	"2006/1/2",
	"2 Jan 2006",
	"2-Jan-2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"20060102",
	"2/1/06",
}

// Day truncates t to midnight UTC keeping its calendar date.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// SameDay reports whether a and b fall on the same calendar date.
func SameDay(a, b time.Time) bool {
	return Day(a).Equal(Day(b))
}

// Date parses spreadsheet serials, dd/mm/yyyy, yyyy-mm-dd and a handful of
// common layouts. ok is false when nothing matches; callers treat that as a
// validation failure of the row.
func Date(raw any) (time.Time, bool) {
	switch v := raw.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		if v.IsZero() {
			return time.Time{}, false
		}
		return Day(v), true
	case *time.Time:
		if v == nil || v.IsZero() {
			return time.Time{}, false
		}
		return Day(*v), true
	case float64:
		return fromSerial(v)
	case int:
		return fromSerial(float64(v))
	case int64:
		return fromSerial(float64(v))
	case string:
		return parseDateString(v)
	default:
		return time.Time{}, false
	}
}

func fromSerial(serial float64) (time.Time, bool) {
	if serial < 1 || serial > maxSerial || math.IsNaN(serial) {
		return time.Time{}, false
	}
	return serialEpoch.AddDate(0, 0, int(math.Floor(serial))), true
}

func parseDateString(raw string) (time.Time, bool) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return time.Time{}, false
	}
	if serial, err := strconv.ParseFloat(value, 64); err == nil {
		if t, ok := fromSerial(serial); ok {
			return t, true
		}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return Day(t), true
		}
	}
	return time.Time{}, false
}
