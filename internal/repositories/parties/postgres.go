package parties

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/budgetbook/internal/common"
	"github.com/dmitrijs2005/budgetbook/internal/dbx"
	"github.com/dmitrijs2005/budgetbook/internal/models"
)

const partyColumns = `id, name, invite_code, created_by, COALESCE(is_personal, false), created_at`

// legacyPartyColumns reads stores without the is_personal column. There a
// party without members is the personal party of its creator.
const legacyPartyColumns = `id, name, invite_code, created_by,
	NOT EXISTS (SELECT 1 FROM party_members lm WHERE lm.party_id = parties.id), created_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, p *models.Party) error {
	query :=
		`INSERT INTO parties (id, name, invite_code, created_by, is_personal)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at`

	err := r.db.QueryRowContext(ctx, query, p.ID, p.Name, p.InviteCode, p.CreatedBy, p.IsPersonal).Scan(&p.CreatedAt)
	return mapWriteError(err)
}

func (r *PostgresRepository) CreateLegacy(ctx context.Context, p *models.Party) error {
	query :=
		`INSERT INTO parties (id, name, invite_code, created_by)
		 VALUES ($1, $2, $3, $4)
		 RETURNING created_at`

	err := r.db.QueryRowContext(ctx, query, p.ID, p.Name, p.InviteCode, p.CreatedBy).Scan(&p.CreatedAt)
	return mapWriteError(err)
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Party, error) {
	return r.getOneCompat(ctx, `SELECT %s FROM parties WHERE id = $1`, id)
}

func (r *PostgresRepository) GetByInviteCode(ctx context.Context, code string) (*models.Party, error) {
	return r.getOneCompat(ctx, `SELECT %s FROM parties WHERE upper(invite_code) = $1`, code)
}

func (r *PostgresRepository) ListPersonal(ctx context.Context, userID string) ([]models.Party, error) {
	query :=
		`SELECT ` + partyColumns + ` FROM parties
		 WHERE created_by = $1 AND is_personal
		 ORDER BY created_at`

	out, err := r.listParties(ctx, query, userID)
	if !errors.Is(err, common.ErrSchemaMismatch) {
		return out, err
	}

	legacy :=
		`SELECT ` + legacyPartyColumns + ` FROM parties
		 WHERE created_by = $1
		   AND NOT EXISTS (SELECT 1 FROM party_members m WHERE m.party_id = parties.id)
		 ORDER BY created_at`
	return r.listParties(ctx, legacy, userID)
}

func (r *PostgresRepository) listParties(ctx context.Context, query string, args ...any) ([]models.Party, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapReadError(err)
	}
	defer rows.Close()

	var out []models.Party
	for rows.Next() {
		p, err := scanParty(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) ListByMember(ctx context.Context, userID string) ([]Membership, error) {
	query :=
		`SELECT p.id, p.name, p.invite_code, p.created_by, %s, p.created_at, m.role
		 FROM party_members m
		 JOIN parties p ON p.id = m.party_id
		 WHERE m.user_id = $1
		 ORDER BY m.joined_at`

	out, err := r.listMemberships(ctx, fmt.Sprintf(query, `COALESCE(p.is_personal, false)`), userID)
	if errors.Is(err, common.ErrSchemaMismatch) {
		// Every row here has a member, so none is a legacy personal party.
		return r.listMemberships(ctx, fmt.Sprintf(query, `false`), userID)
	}
	return out, err
}

func (r *PostgresRepository) listMemberships(ctx context.Context, query string, userID string) ([]Membership, error) {
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, mapReadError(err)
	}
	defer rows.Close()

	var out []Membership
	for rows.Next() {
		var m Membership
		var code sql.NullString
		if err := rows.Scan(&m.Party.ID, &m.Party.Name, &code, &m.Party.CreatedBy,
			&m.Party.IsPersonal, &m.Party.CreatedAt, &m.Role); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		m.Party.InviteCode = nullableString(code)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) CountBooks(ctx context.Context, userID string) (int, error) {
	query :=
		`SELECT
		   (SELECT COUNT(*) FROM parties WHERE created_by = $1 AND is_personal) +
		   (SELECT COUNT(*) FROM party_members WHERE user_id = $1)`

	n, err := r.count(ctx, query, userID)
	if !errors.Is(err, common.ErrSchemaMismatch) {
		return n, err
	}

	legacy :=
		`SELECT
		   (SELECT COUNT(*) FROM parties p WHERE p.created_by = $1
		      AND NOT EXISTS (SELECT 1 FROM party_members m WHERE m.party_id = p.id)) +
		   (SELECT COUNT(*) FROM party_members WHERE user_id = $1)`
	return r.count(ctx, legacy, userID)
}

func (r *PostgresRepository) count(ctx context.Context, query string, args ...any) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, mapReadError(err)
	}
	return n, nil
}

func (r *PostgresRepository) UpdateName(ctx context.Context, id, name string) (*models.Party, error) {
	return r.getOneCompat(ctx, `UPDATE parties SET name = $2 WHERE id = $1 RETURNING %s`, id, name)
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM parties WHERE id = $1`, id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// getOneCompat runs query with partyColumns in place of %s and, on a store
// without the is_personal column, again with legacyPartyColumns.
func (r *PostgresRepository) getOneCompat(ctx context.Context, query string, args ...any) (*models.Party, error) {
	p, err := r.getOne(ctx, fmt.Sprintf(query, partyColumns), args...)
	if errors.Is(err, common.ErrSchemaMismatch) {
		return r.getOne(ctx, fmt.Sprintf(query, legacyPartyColumns), args...)
	}
	return p, err
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, args ...any) (*models.Party, error) {
	p, err := scanParty(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, mapReadError(err)
	}
	return p, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanParty(row scanner) (*models.Party, error) {
	p := &models.Party{}
	var code sql.NullString
	if err := row.Scan(&p.ID, &p.Name, &code, &p.CreatedBy, &p.IsPersonal, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.InviteCode = nullableString(code)
	return p, nil
}

func nullableString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func mapReadError(err error) error {
	if dbx.IsUndefinedColumn(err) {
		return fmt.Errorf("%w: %v", common.ErrSchemaMismatch, err)
	}
	return fmt.Errorf("db error: %w", err)
}

func mapWriteError(err error) error {
	switch {
	case err == nil:
		return nil
	case dbx.IsUndefinedColumn(err):
		return fmt.Errorf("%w: %v", common.ErrSchemaMismatch, err)
	case dbx.IsUniqueViolation(err):
		return fmt.Errorf("%w: %v", common.ErrAlreadyExists, err)
	default:
		return fmt.Errorf("db error: %w", err)
	}
}
