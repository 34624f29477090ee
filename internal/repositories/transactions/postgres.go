package transactions

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

func (r *PostgresRepository) List(ctx context.Context, userID string, scope models.Scope, prefix string) ([]models.Transaction, error) {
	where, args := scopesql.Where(userID, scope, 2)
	query :=
		`SELECT id, user_id, party_id, to_char(date, 'YYYY-MM-DD'), type, category, amount, description, created_at
		 FROM transactions
		 WHERE starts_with(to_char(date, 'YYYY-MM-DD'), $1) AND ` + where + `
		 ORDER BY date DESC, created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, append([]any{prefix}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []models.Transaction
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.PartyID, &t.Date, &t.Type, &t.Category,
			&t.Amount, &t.Description, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) Insert(ctx context.Context, t *models.Transaction) error {
	query :=
		`INSERT INTO transactions (id, user_id, party_id, date, type, category, amount, description, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.ExecContext(ctx, query, t.ID, t.UserID, t.PartyID, t.Date, string(t.Type),
		t.Category, t.Amount, t.Description, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Update(ctx context.Context, userID string, scope models.Scope, t *models.Transaction) error {
	where, args := scopesql.Where(userID, scope, 7)
	query :=
		`UPDATE transactions
		 SET date = $2, type = $3, category = $4, amount = $5, description = $6
		 WHERE id = $1 AND ` + where

	res, err := r.db.ExecContext(ctx, query,
		append([]any{t.ID, t.Date, string(t.Type), t.Category, t.Amount, t.Description}, args...)...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return notFoundIfUntouched(res)
}

func (r *PostgresRepository) Delete(ctx context.Context, userID string, scope models.Scope, id string) error {
	where, args := scopesql.Where(userID, scope, 2)
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = $1 AND `+where, append([]any{id}, args...)...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return notFoundIfUntouched(res)
}

func (r *PostgresRepository) DeletePersonal(ctx context.Context, userID string) (int64, error) {
	return r.exec(ctx, `DELETE FROM transactions WHERE user_id = $1 AND party_id IS NULL`, userID)
}

func (r *PostgresRepository) DeleteByParty(ctx context.Context, partyID string) (int64, error) {
	return r.exec(ctx, `DELETE FROM transactions WHERE party_id = $1`, partyID)
}

func (r *PostgresRepository) ReparentPersonal(ctx context.Context, userID, partyID string) (int64, error) {
	return r.exec(ctx, `UPDATE transactions SET party_id = $2 WHERE user_id = $1 AND party_id IS NULL`, userID, partyID)
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
