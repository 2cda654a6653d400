package core

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// Period is a calendar year+month.
type Period struct {
	Year  int
	Month time.Month
}

// IsZero reports whether no period is set.
func (p Period) IsZero() bool { return p.Year == 0 && p.Month == 0 }

func (p Period) String() string {
	if p.IsZero() {
		return ""
	}
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// Summary holds the aggregates shown above the expense list.
type Summary struct {
	Count int
	Total decimal.Decimal
	// MonthTotal sums the rows dated in LatestPeriod, the year+month of
	// the most recent parseable date in the set.
	MonthTotal   decimal.Decimal
	LatestPeriod Period
}

// TotalFloat returns Total as a float64.
func (s Summary) TotalFloat() float64 { return s.Total.InexactFloat64() }

// MonthTotalFloat returns MonthTotal as a float64.
func (s Summary) MonthTotalFloat() float64 { return s.MonthTotal.InexactFloat64() }

// Summarize computes the all-time and latest-month totals over rows.
// Rows whose date does not parse are left out of the month total only;
// amounts that are not finite count as zero.
func Summarize(rows []Expense) Summary {
	s := Summary{
		Count:      len(rows),
		Total:      decimal.Zero,
		MonthTotal: decimal.Zero,
	}

	amounts := make([]decimal.Decimal, len(rows))
	periods := make([]Period, len(rows))
	var (
		latest time.Time
		found  bool
	)

	for i, e := range rows {
		amounts[i] = amountOf(e)
		s.Total = s.Total.Add(amounts[i])

		d, err := ParseDate(e.Date)
		if err != nil {
			continue
		}
		periods[i] = Period{Year: d.Year(), Month: d.Month()}
		if !found || d.After(latest) {
			latest = d
			found = true
		}
	}

	if !found {
		return s
	}
	s.LatestPeriod = Period{Year: latest.Year(), Month: latest.Month()}

	for i := range rows {
		if periods[i] == s.LatestPeriod {
			s.MonthTotal = s.MonthTotal.Add(amounts[i])
		}
	}
	return s
}

func amountOf(e Expense) decimal.Decimal {
	if math.IsNaN(e.Amount) || math.IsInf(e.Amount, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(e.Amount)
}
