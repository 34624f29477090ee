package categories

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/budgetbook/internal/common"
	"github.com/dmitrijs2005/budgetbook/internal/dbx"
	"github.com/dmitrijs2005/budgetbook/internal/models"
	"github.com/dmitrijs2005/budgetbook/internal/repositories/scopesql"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) List(ctx context.Context, userID string, scope models.Scope) ([]models.Category, error) {
	where, args := scopesql.Where(userID, scope, 1)
	query :=
		`SELECT id, user_id, party_id, type, name, created_at
		 FROM categories
		 WHERE ` + where + `
		 ORDER BY type, created_at`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []models.Category
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.UserID, &c.PartyID, &c.Type, &c.Name, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) Insert(ctx context.Context, c *models.Category) error {
	query :=
		`INSERT INTO categories (id, user_id, party_id, type, name, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`

	if _, err := r.db.ExecContext(ctx, query, c.ID, c.UserID, c.PartyID, string(c.Type), c.Name, c.CreatedAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Update(ctx context.Context, userID string, scope models.Scope, c *models.Category) error {
	where, args := scopesql.Where(userID, scope, 4)
	query := `UPDATE categories SET type = $2, name = $3 WHERE id = $1 AND ` + where

	res, err := r.db.ExecContext(ctx, query, append([]any{c.ID, string(c.Type), c.Name}, args...)...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return notFoundIfUntouched(res)
}

func (r *PostgresRepository) Delete(ctx context.Context, userID string, scope models.Scope, id string) error {
	where, args := scopesql.Where(userID, scope, 2)
	query := `DELETE FROM categories WHERE id = $1 AND ` + where

	res, err := r.db.ExecContext(ctx, query, append([]any{id}, args...)...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return notFoundIfUntouched(res)
}

func (r *PostgresRepository) CountByType(ctx context.Context, userID string, scope models.Scope, t models.EntryType) (int, error) {
	where, args := scopesql.Where(userID, scope, 2)
	query := `SELECT COUNT(*) FROM categories WHERE type = $1 AND ` + where

	var n int
	if err := r.db.QueryRowContext(ctx, query, append([]any{string(t)}, args...)...).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) DeletePersonal(ctx context.Context, userID string) (int64, error) {
	return r.exec(ctx, `DELETE FROM categories WHERE user_id = $1 AND party_id IS NULL`, userID)
}

func (r *PostgresRepository) DeleteByParty(ctx context.Context, partyID string) (int64, error) {
	return r.exec(ctx, `DELETE FROM categories WHERE party_id = $1`, partyID)
}

func (r *PostgresRepository) ReparentPersonal(ctx context.Context, userID, partyID string) (int64, error) {
	return r.exec(ctx, `UPDATE categories SET party_id = $2 WHERE user_id = $1 AND party_id IS NULL`, userID, partyID)
}

func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func notFoundIfUntouched(res interface{ RowsAffected() (int64, error) }) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
