package guest

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/budgetbook/internal/common"
	"github.com/dmitrijs2005/budgetbook/internal/dbx"
	"github.com/dmitrijs2005/budgetbook/internal/models"
	"github.com/shopspring/decimal"
)

type SQLiteCategoryRepository struct {
	db dbx.DBTX
}

func NewSQLiteCategoryRepository(db dbx.DBTX) *SQLiteCategoryRepository {
	return &SQLiteCategoryRepository{db: db}
}

func (r *SQLiteCategoryRepository) List(ctx context.Context) ([]models.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, type, name, created_at FROM guest_categories ORDER BY created_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to list guest categories: %w", err)
	}
	defer rows.Close()

	var out []models.Category
	for rows.Next() {
		var c models.Category
		var created int64
		if err := rows.Scan(&c.ID, &c.Type, &c.Name, &created); err != nil {
			return nil, fmt.Errorf("failed to scan guest category: %w", err)
		}
		c.CreatedAt = time.UnixMilli(created)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate guest categories: %w", err)
	}
	return out, nil
}

func (r *SQLiteCategoryRepository) Insert(ctx context.Context, c *models.Category) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO guest_categories (id, type, name, created_at) VALUES (?, ?, ?, ?)`,
		c.ID, string(c.Type), c.Name, c.CreatedAt.UnixMilli())
	if err != nil {
		if isUniqueViolation(err) {
			return common.ErrAlreadyExists
		}
		return fmt.Errorf("failed to insert guest category: %w", err)
	}
	return nil
}

func (r *SQLiteCategoryRepository) Update(ctx context.Context, c *models.Category) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE guest_categories SET type = ?, name = ? WHERE id = ?`, string(c.Type), c.Name, c.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return common.ErrAlreadyExists
		}
		return fmt.Errorf("failed to update guest category: %w", err)
	}
	return notFoundIfUntouched(res)
}

func (r *SQLiteCategoryRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM guest_categories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete guest category: %w", err)
	}
	return notFoundIfUntouched(res)
}

func (r *SQLiteCategoryRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM guest_categories`); err != nil {
		return fmt.Errorf("failed to clear guest categories: %w", err)
	}
	return nil
}

func (r *SQLiteCategoryRepository) CountByType(ctx context.Context, t models.EntryType) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM guest_categories WHERE type = ?`, string(t)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count guest categories: %w", err)
	}
	return n, nil
}

type SQLiteTransactionRepository struct {
	db dbx.DBTX
}

func NewSQLiteTransactionRepository(db dbx.DBTX) *SQLiteTransactionRepository {
	return &SQLiteTransactionRepository{db: db}
}

func (r *SQLiteTransactionRepository) List(ctx context.Context, prefix string) ([]models.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, date, type, category, amount, description, created_at
		FROM guest_transactions
		WHERE date LIKE ? || '%'
		ORDER BY date DESC, created_at DESC`, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list guest transactions: %w", err)
	}
	defer rows.Close()

	var out []models.Transaction
	for rows.Next() {
		var t models.Transaction
		var amount string
		var created int64
		if err := rows.Scan(&t.ID, &t.Date, &t.Type, &t.Category, &amount, &t.Description, &created); err != nil {
			return nil, fmt.Errorf("failed to scan guest transaction: %w", err)
		}
		if t.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("guest transaction %s: bad amount %q: %w", t.ID, amount, err)
		}
		t.CreatedAt = time.UnixMilli(created)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate guest transactions: %w", err)
	}
	return out, nil
}

func (r *SQLiteTransactionRepository) Insert(ctx context.Context, t *models.Transaction) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO guest_transactions (id, date, type, category, amount, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Date, string(t.Type), t.Category, t.Amount.String(), t.Description, t.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to insert guest transaction: %w", err)
	}
	return nil
}

func (r *SQLiteTransactionRepository) Update(ctx context.Context, t *models.Transaction) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE guest_transactions
		SET date = ?, type = ?, category = ?, amount = ?, description = ?
		WHERE id = ?`,
		t.Date, string(t.Type), t.Category, t.Amount.String(), t.Description, t.ID)
	if err != nil {
		return fmt.Errorf("failed to update guest transaction: %w", err)
	}
	return notFoundIfUntouched(res)
}

func (r *SQLiteTransactionRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM guest_transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete guest transaction: %w", err)
	}
	return notFoundIfUntouched(res)
}

func (r *SQLiteTransactionRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM guest_transactions`); err != nil {
		return fmt.Errorf("failed to clear guest transactions: %w", err)
	}
	return nil
}

func notFoundIfUntouched(res sql.Result) error {
	ok, err := dbx.RowsAffected(res)
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if !ok {
		return common.ErrorNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
