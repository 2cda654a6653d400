// Package core holds the expense domain: the entity, the validation and
// normalization applied to submitted forms, and the aggregation shown on
// the listing page.
package core

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// isoLayouts are the accepted ISO-8601 forms of a calendar date, with or
// without a time-of-day component. The time part is discarded on parse.
var isoLayouts = []string{
	DateLayout,
	"20060102",
	"2006-01-02T15",
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05Z07:00",
}

// ParseDate parses an ISO-8601 date (optionally with a time) and returns
// the calendar day at midnight UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrInvalidDate
	}
	for _, layout := range isoLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			y, m, d := t.Date()
			if y < 1 {
				return time.Time{}, ErrInvalidDate
			}
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, ErrInvalidDate
}

// NormalizeDate returns s in canonical YYYY-MM-DD form.
func NormalizeDate(s string) (string, error) {
	t, err := ParseDate(s)
	if err != nil {
		return "", err
	}
	return t.Format(DateLayout), nil
}

// ParseAmount parses a decimal number. No sign or range rule applies,
// but NaN, infinities and hex floats are not numbers a user can mean.
func ParseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if isHexLiteral(s) {
		return 0, ErrAmountNotNumber
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, ErrAmountNotNumber
	}
	return v, nil
}

func isHexLiteral(s string) bool {
	s = strings.TrimLeft(s, "+-")
	return len(s) > 1 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}

// FormatAmount renders an amount as plain numeric text ("3.5", "1200").
func FormatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Trimmed returns a copy of the form with surrounding whitespace removed
// from every field.
func (f ExpenseForm) Trimmed() ExpenseForm {
	return ExpenseForm{
		Title:    strings.TrimSpace(f.Title),
		Amount:   strings.TrimSpace(f.Amount),
		Category: strings.TrimSpace(f.Category),
		Date:     strings.TrimSpace(f.Date),
		Notes:    strings.TrimSpace(f.Notes),
	}
}

// ParseSubmission validates and normalizes a submitted form. Rules are
// checked in order and the first failure is returned as a *ValidationError.
func ParseSubmission(f ExpenseForm) (Submission, error) {
	f = f.Trimmed()

	if f.Title == "" || f.Amount == "" || f.Date == "" {
		field := "title"
		switch {
		case f.Title == "":
		case f.Amount == "":
			field = "amount"
		default:
			field = "date"
		}
		return Submission{}, &ValidationError{Field: field, Err: ErrRequiredFields}
	}

	amount, err := ParseAmount(f.Amount)
	if err != nil {
		return Submission{}, &ValidationError{Field: "amount", Err: err}
	}

	date, err := NormalizeDate(f.Date)
	if err != nil {
		return Submission{}, &ValidationError{Field: "date", Err: err}
	}

	return Submission{
		Title:    f.Title,
		Amount:   amount,
		Category: f.Category,
		Date:     date,
		Notes:    f.Notes,
	}, nil
}
