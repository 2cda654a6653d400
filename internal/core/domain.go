package core

import (
	"errors"
	"fmt"
)

// DateLayout is the canonical storage and display format for expense dates.
const DateLayout = "2006-01-02"

type (
	// Expense is a single recorded transaction as persisted in the store.
	Expense struct {
		ID       int64
		Title    string
		Amount   float64
		Category string // optional
		Date     string // YYYY-MM-DD
		Notes    string // optional
	}

	// ExpenseForm holds the raw values submitted by the add and edit forms.
	ExpenseForm struct {
		Title    string
		Amount   string
		Category string
		Date     string
		Notes    string
	}

	// Submission is an ExpenseForm that passed validation and normalization.
	// It is the only shape the data access layer accepts for writes.
	Submission struct {
		Title    string
		Amount   float64
		Category string
		Date     string
		Notes    string
	}
)

var (
	ErrRequiredFields  = errors.New("required fields missing")
	ErrAmountNotNumber = errors.New("amount must be a number")
	ErrInvalidDate     = errors.New("invalid date format")
	ErrNotFound        = errors.New("expense not found")
)

// ValidationError reports the first rule a submission failed.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Message returns the notice shown to the user for this failure.
func (e *ValidationError) Message() string {
	switch {
	case errors.Is(e.Err, ErrRequiredFields):
		return "Title, amount and date are required."
	case errors.Is(e.Err, ErrAmountNotNumber):
		return "Amount must be a number."
	case errors.Is(e.Err, ErrInvalidDate):
		return "Date format should be YYYY-MM-DD."
	default:
		return "Invalid data: " + e.Err.Error()
	}
}

// Reason is a short label for the failed rule, used in logs and metrics.
func (e *ValidationError) Reason() string {
	switch {
	case errors.Is(e.Err, ErrRequiredFields):
		return "required"
	case errors.Is(e.Err, ErrAmountNotNumber):
		return "amount"
	case errors.Is(e.Err, ErrInvalidDate):
		return "date"
	default:
		return "other"
	}
}

// Form returns the expense as form values, used to pre-fill the edit page.
func (e Expense) Form() ExpenseForm {
	return ExpenseForm{
		Title:    e.Title,
		Amount:   FormatAmount(e.Amount),
		Category: e.Category,
		Date:     e.Date,
		Notes:    e.Notes,
	}
}
