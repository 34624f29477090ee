// Package stats aggregates transactions for the calendar and statistics
// views. Every function takes the transactions of one scope and ignores rows
// outside the requested period.
package stats

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dmitrijs2005/budgetbook/internal/models"
	"github.com/shopspring/decimal"
)

// Totals are income and expense of a period. Both are non-negative.
type Totals struct {
	Income  decimal.Decimal
	Expense decimal.Decimal
	Balance decimal.Decimal
}

func (t *Totals) add(tx models.Transaction) {
	switch tx.Type {
	case models.Income:
		t.Income = t.Income.Add(tx.Amount)
	case models.Expense:
		t.Expense = t.Expense.Add(tx.Amount)
	}
	t.Balance = t.Income.Sub(t.Expense)
}

// MonthPrefix formats the date prefix shared by every day of the month.
func MonthPrefix(year int, month time.Month) string {
	return fmt.Sprintf("%04d-%02d", year, int(month))
}

// DaysIn returns the number of days of month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func MonthSummary(txs []models.Transaction, year int, month time.Month) Totals {
	prefix := MonthPrefix(year, month)
	var t Totals
	for _, tx := range txs {
		if strings.HasPrefix(tx.Date, prefix) {
			t.add(tx)
		}
	}
	return t
}

// DayTotals sums the transactions dated date (YYYY-MM-DD).
func DayTotals(txs []models.Transaction, date string) Totals {
	var t Totals
	for _, tx := range txs {
		if tx.Date == date {
			t.add(tx)
		}
	}
	return t
}

// Series holds one value per day of a month; index 0 is the 1st.
type Series struct {
	Net        []decimal.Decimal
	Cumulative []decimal.Decimal
	Expense    []decimal.Decimal
}

// DailySeries returns per-day net (income minus expense), the running
// balance and per-day expense for the month.
func DailySeries(txs []models.Transaction, year int, month time.Month) Series {
	days := DaysIn(year, month)
	s := Series{
		Net:        make([]decimal.Decimal, days),
		Cumulative: make([]decimal.Decimal, days),
		Expense:    make([]decimal.Decimal, days),
	}

	prefix := MonthPrefix(year, month) + "-"
	for _, tx := range txs {
		if !strings.HasPrefix(tx.Date, prefix) {
			continue
		}
		d, err := time.Parse(models.DateLayout, tx.Date)
		if err != nil {
			continue
		}
		i := d.Day() - 1
		switch tx.Type {
		case models.Income:
			s.Net[i] = s.Net[i].Add(tx.Amount)
		case models.Expense:
			s.Net[i] = s.Net[i].Sub(tx.Amount)
			s.Expense[i] = s.Expense[i].Add(tx.Amount)
		}
	}

	running := decimal.Zero
	for i, n := range s.Net {
		running = running.Add(n)
		s.Cumulative[i] = running
	}
	return s
}

// CategoryAmount is one slice of the expense breakdown.
type CategoryAmount struct {
	Category string
	Amount   decimal.Decimal
}

// ExpenseByCategory sums the month's expenses per category, largest first.
// Equal amounts are ordered by category name.
func ExpenseByCategory(txs []models.Transaction, year int, month time.Month) []CategoryAmount {
	prefix := MonthPrefix(year, month)
	sums := map[string]decimal.Decimal{}
	for _, tx := range txs {
		if tx.Type != models.Expense || !strings.HasPrefix(tx.Date, prefix) {
			continue
		}
		sums[tx.Category] = sums[tx.Category].Add(tx.Amount)
	}

	out := make([]CategoryAmount, 0, len(sums))
	for c, a := range sums {
		out = append(out, CategoryAmount{Category: c, Amount: a})
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Amount.Cmp(out[j].Amount); c != 0 {
			return c > 0
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// ActiveDays lists the distinct dates of the month that carry at least one
// transaction, newest first.
func ActiveDays(txs []models.Transaction, year int, month time.Month) []string {
	prefix := MonthPrefix(year, month)
	seen := map[string]bool{}
	var out []string
	for _, tx := range txs {
		if strings.HasPrefix(tx.Date, prefix) && !seen[tx.Date] {
			seen[tx.Date] = true
			out = append(out, tx.Date)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(out)))
	return out
}
