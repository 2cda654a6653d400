package core

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil)
	assert.Equal(t, 0, s.Count)
	assert.True(t, s.Total.IsZero())
	assert.True(t, s.MonthTotal.IsZero())
	assert.True(t, s.LatestPeriod.IsZero())
	assert.Equal(t, 0.0, s.TotalFloat())
}

func TestSummarizeLatestPeriod(t *testing.T) {
	rows := []Expense{
		{ID: 2, Title: "Rent", Amount: 1200, Date: "2024-02-01"},
		{ID: 1, Title: "Coffee", Amount: 3.5, Date: "2024-01-05"},
	}
	s := Summarize(rows)
	assert.Equal(t, "1203.5", s.Total.String())
	assert.Equal(t, "1200", s.MonthTotal.String())
	assert.Equal(t, Period{Year: 2024, Month: time.February}, s.LatestPeriod)
	assert.Equal(t, "2024-02", s.LatestPeriod.String())
}

func TestSummarizeSameMonthDifferentYear(t *testing.T) {
	rows := []Expense{
		{Amount: 10, Date: "2023-05-20"},
		{Amount: 5, Date: "2024-05-01"},
		{Amount: 7, Date: "2024-05-31"},
	}
	s := Summarize(rows)
	assert.Equal(t, "22", s.Total.String())
	assert.Equal(t, "12", s.MonthTotal.String())
}

func TestSummarizeDecimalSums(t *testing.T) {
	rows := []Expense{
		{Amount: 0.1, Date: "2024-01-01"},
		{Amount: 0.2, Date: "2024-01-02"},
	}
	s := Summarize(rows)
	assert.True(t, s.Total.Equal(decimal.RequireFromString("0.3")), s.Total.String())
	assert.Equal(t, 0.3, s.TotalFloat())
}

func TestSummarizeMalformedRows(t *testing.T) {
	rows := []Expense{
		{Amount: 4, Date: "not a date"},
		{Amount: math.NaN(), Date: "2024-06-02"},
		{Amount: 6, Date: "2024-06-01"},
		{Amount: 1, Date: ""},
	}
	s := Summarize(rows)
	assert.Equal(t, "11", s.Total.String())
	assert.Equal(t, "6", s.MonthTotal.String())
}

func TestSummarizeNoParseableDates(t *testing.T) {
	s := Summarize([]Expense{{Amount: 3, Date: "garbage"}})
	assert.Equal(t, "3", s.Total.String())
	assert.True(t, s.MonthTotal.IsZero())
	assert.True(t, s.LatestPeriod.IsZero())
}

func TestSummarizeEarliestRepresentableDate(t *testing.T) {
	s := Summarize([]Expense{{Amount: 7, Date: "0001-01-01"}})
	assert.Equal(t, "7", s.Total.String())
	assert.Equal(t, "7", s.MonthTotal.String())
	assert.Equal(t, "0001-01", s.LatestPeriod.String())
}

func TestSummarizeLatestPeriodFollowsRemoval(t *testing.T) {
	rows := []Expense{
		{ID: 2, Amount: 1200, Date: "2024-02-01"},
		{ID: 1, Amount: 5, Date: "2024-01-05"},
	}
	assert.Equal(t, "2024-02", Summarize(rows).LatestPeriod.String())

	s := Summarize(rows[1:])
	assert.Equal(t, "2024-01", s.LatestPeriod.String())
	assert.Equal(t, "5", s.MonthTotal.String())
	assert.Equal(t, "5", s.Total.String())
}
