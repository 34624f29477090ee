package members

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/budgetbook/internal/common"
	"github.com/dmitrijs2005/budgetbook/internal/dbx"
	"github.com/dmitrijs2005/budgetbook/internal/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Add(ctx context.Context, m *models.PartyMember) error {
	query :=
		`INSERT INTO party_members (party_id, user_id, role, display_name)
		 VALUES ($1, $2, $3, $4)
		 RETURNING joined_at`

	err := r.db.QueryRowContext(ctx, query, m.PartyID, m.UserID, string(m.Role), m.DisplayName).Scan(&m.JoinedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, partyID, userID string) (*models.PartyMember, error) {
	query :=
		`SELECT party_id, user_id, role, display_name, joined_at
		 FROM party_members
		 WHERE party_id = $1 AND user_id = $2`

	m := &models.PartyMember{}
	err := r.db.QueryRowContext(ctx, query, partyID, userID).
		Scan(&m.PartyID, &m.UserID, &m.Role, &m.DisplayName, &m.JoinedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return m, nil
}

func (r *PostgresRepository) ListByParty(ctx context.Context, partyID string) ([]models.PartyMember, error) {
	query :=
		`SELECT party_id, user_id, role, display_name, joined_at
		 FROM party_members
		 WHERE party_id = $1
		 ORDER BY joined_at, user_id`

	rows, err := r.db.QueryContext(ctx, query, partyID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []models.PartyMember
	for rows.Next() {
		var m models.PartyMember
		if err := rows.Scan(&m.PartyID, &m.UserID, &m.Role, &m.DisplayName, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, partyID, userID string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM party_members WHERE party_id = $1 AND user_id = $2`, partyID, userID)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	ok, err := dbx.RowsAffected(res)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return ok, nil
}

func (r *PostgresRepository) UpdateRole(ctx context.Context, partyID, userID string, role models.Role) error {
	return r.updateOne(ctx,
		`UPDATE party_members SET role = $3 WHERE party_id = $1 AND user_id = $2`, partyID, userID, string(role))
}

func (r *PostgresRepository) UpdateDisplayName(ctx context.Context, partyID, userID, name string) error {
	return r.updateOne(ctx,
		`UPDATE party_members SET display_name = $3 WHERE party_id = $1 AND user_id = $2`, partyID, userID, name)
}

func (r *PostgresRepository) UpdateDisplayNameForUser(ctx context.Context, userID, name string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE party_members SET display_name = $2 WHERE user_id = $1`, userID, name)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) updateOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	ok, err := dbx.RowsAffected(res)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if !ok {
		return common.ErrorNotFound
	}
	return nil
}
