package ledger

import (
	"errors"
	"fmt"
)

// MaxSampledDetails caps how many error and warning details a summary carries.
const MaxSampledDetails = 50

// Details collects sampled row-level errors, skip reasons and warnings for an
// import summary.
type Details struct {
	Errors       []string  `json:"errors"`
	Skips        []string  `json:"skips"`
	Warnings     []Warning `json:"warnings"`
	ErrorCount   int       `json:"error_count"`
	WarningCount int       `json:"warning_count"`
}

func NewDetails() Details {
	return Details{Errors: []string{}, Skips: []string{}, Warnings: []Warning{}}
}

func (d *Details) AddSkip(row int, reason error) {
	if len(d.Skips) < MaxSampledDetails {
		d.Skips = append(d.Skips, rowMessage(row, reason))
	}
}

func (d *Details) AddError(row int, err error) {
	d.ErrorCount++
	if len(d.Errors) < MaxSampledDetails {
		d.Errors = append(d.Errors, rowMessage(row, err))
	}
}

func (d *Details) AddWarning(w Warning) {
	d.WarningCount++
	if len(d.Warnings) < MaxSampledDetails {
		d.Warnings = append(d.Warnings, w)
	}
}

func rowMessage(row int, err error) string {
	var v *ValidationError
	if errors.As(err, &v) && v.Row > 0 {
		return v.Error()
	}
	if row <= 0 {
		return err.Error()
	}
	return fmt.Sprintf("row %d: %v", row, err)
}
