package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/budgetbook/internal/common"
	"github.com/dmitrijs2005/budgetbook/internal/models"
	"github.com/dmitrijs2005/budgetbook/internal/stats"
	"github.com/shopspring/decimal"
)

// now is a test seam for the current date.
var now = time.Now

func (a *App) Categories(ctx context.Context, _ []string) error {
	cs, err := a.svc.Categories.List(ctx)
	if err != nil {
		return a.report(ctx, err)
	}
	for _, t := range []models.EntryType{models.Income, models.Expense} {
		a.printf("%s:\n", t)
		for _, c := range cs {
			if c.Type == t {
				a.printf("  %s  %s\n", c.Name, c.ID)
			}
		}
	}
	return nil
}

func (a *App) AddCategory(ctx context.Context, args []string) error {
	if len(args) < 2 {
		a.printf("Usage: addcat <income|expense> <name>\n")
		return nil
	}
	c := &models.Category{Type: models.EntryType(args[0]), Name: strings.Join(args[1:], " ")}
	if err := a.svc.Categories.Add(ctx, c); err != nil {
		return a.report(ctx, err)
	}
	a.printf("added %s %s\n", c.Type, c.Name)
	return nil
}

func (a *App) DeleteCategory(ctx context.Context, args []string) error {
	if len(args) != 1 {
		a.printf("Usage: rmcat <id>\n")
		return nil
	}
	if err := a.svc.Categories.Delete(ctx, args[0]); err != nil {
		return a.report(ctx, err)
	}
	a.printf("deleted\n")
	return nil
}

// parseMonth accepts YYYY-MM and defaults to the current month.
func parseMonth(args []string) (time.Time, error) {
	if len(args) == 0 {
		t := now()
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC), nil
	}
	t, err := time.Parse("2006-01", args[0])
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: month %q, want YYYY-MM", common.ErrInvalidInput, args[0])
	}
	return t, nil
}

// List prints the transactions of a month in the active book, grouped by
// day, newest first.
func (a *App) List(ctx context.Context, args []string) error {
	m, err := parseMonth(args)
	if err != nil {
		return a.report(ctx, err)
	}
	txs, err := a.svc.Transactions.ListMonth(ctx, stats.MonthPrefix(m.Year(), m.Month()))
	if err != nil {
		return a.report(ctx, err)
	}
	if len(txs) == 0 {
		a.printf("no transactions\n")
		return nil
	}
	for _, day := range stats.ActiveDays(txs, m.Year(), m.Month()) {
		t := stats.DayTotals(txs, day)
		a.printf("%s  +%s -%s\n", day, t.Income, t.Expense)
		for _, tx := range txs {
			if tx.Date == day {
				a.printf("  %-7s %-10s %12s  %s  %s\n", tx.Type, tx.Category, tx.Amount, tx.Description, tx.ID)
			}
		}
	}
	return nil
}

// Add records a transaction. With no arguments every field is prompted for;
// otherwise: add <date> <income|expense> <category> <amount> [description].
func (a *App) Add(ctx context.Context, args []string) error {
	var fields []string
	if len(args) >= 4 {
		fields = append(args[:4:4], strings.Join(args[4:], " "))
	} else {
		prompts := []string{
			"Date (YYYY-MM-DD, empty for today)",
			"Type (income|expense)",
			"Category",
			"Amount",
			"Description",
		}
		for _, p := range prompts {
			v, err := getSimpleText(a.reader, p, a.out)
			if err != nil {
				return a.report(ctx, err)
			}
			fields = append(fields, v)
		}
	}
	if fields[0] == "" {
		fields[0] = now().Format(models.DateLayout)
	}

	amount, err := decimal.NewFromString(fields[3])
	if err != nil {
		return a.report(ctx, fmt.Errorf("%w: amount %q", common.ErrInvalidInput, fields[3]))
	}
	tx := &models.Transaction{
		Date:        fields[0],
		Type:        models.EntryType(fields[1]),
		Category:    fields[2],
		Amount:      amount,
		Description: fields[4],
	}
	if err := a.svc.Transactions.Add(ctx, tx); err != nil {
		return a.report(ctx, err)
	}
	a.printf("added %s\n", tx.ID)
	return nil
}

func (a *App) Remove(ctx context.Context, args []string) error {
	if len(args) != 1 {
		a.printf("Usage: rm <id>\n")
		return nil
	}
	if err := a.svc.Transactions.Delete(ctx, args[0]); err != nil {
		return a.report(ctx, err)
	}
	a.printf("deleted\n")
	return nil
}

// Summary prints the month's totals and its expenses by category.
func (a *App) Summary(ctx context.Context, args []string) error {
	m, err := parseMonth(args)
	if err != nil {
		return a.report(ctx, err)
	}
	txs, err := a.svc.Transactions.ListMonth(ctx, stats.MonthPrefix(m.Year(), m.Month()))
	if err != nil {
		return a.report(ctx, err)
	}

	s := stats.MonthSummary(txs, m.Year(), m.Month())
	a.printf("%s  income %s  expense %s  balance %s\n", stats.MonthPrefix(m.Year(), m.Month()), s.Income, s.Expense, s.Balance)
	a.printf("active days: %d\n", len(stats.ActiveDays(txs, m.Year(), m.Month())))
	for _, c := range stats.ExpenseByCategory(txs, m.Year(), m.Month()) {
		share := decimal.Zero
		if s.Expense.IsPositive() {
			share = c.Amount.Div(s.Expense).Mul(decimal.NewFromInt(100))
		}
		a.printf("  %-10s %12s  %s%%\n", c.Category, c.Amount, share.StringFixed(1))
	}
	return nil
}
