package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the storage format of transaction dates.
const DateLayout = "2006-01-02"

// EntryType classifies categories and transactions.
type EntryType string

const (
	Income  EntryType = "income"
	Expense EntryType = "expense"
)

func (t EntryType) Valid() bool {
	return t == Income || t == Expense
}

// Category belongs to a user's personal scope (PartyID nil) or to a party.
type Category struct {
	ID        string
	UserID    string
	PartyID   *string
	Type      EntryType
	Name      string
	CreatedAt time.Time
}

// Key is the dedup key of a category within a scope.
func (c Category) Key() string {
	return CategoryKey(c.Type, c.Name)
}

func CategoryKey(t EntryType, name string) string {
	return string(t) + "::" + name
}

// Transaction belongs to a user's personal scope (PartyID nil) or to a party.
// Category holds the category name, not an id.
type Transaction struct {
	ID          string
	UserID      string
	PartyID     *string
	Date        string
	Type        EntryType
	Category    string
	Amount      decimal.Decimal
	Description string
	CreatedAt   time.Time
}

// Validate checks the fields a caller supplies.
func (t Transaction) Validate() error {
	if _, err := time.Parse(DateLayout, t.Date); err != nil {
		return fmt.Errorf("date %q: want YYYY-MM-DD", t.Date)
	}
	if !t.Type.Valid() {
		return fmt.Errorf("type %q: want income or expense", t.Type)
	}
	if !t.Amount.IsPositive() {
		return fmt.Errorf("amount %s: must be positive", t.Amount)
	}
	return nil
}
