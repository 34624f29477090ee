package profiles

import (
	"context"
	"database/sql"
	"encoding/json"
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

func (r *PostgresRepository) Get(ctx context.Context, userID string) (*models.Profile, error) {
	query := `SELECT id, email, metadata FROM profiles WHERE id = $1`

	var (
		p    models.Profile
		meta []byte
	)
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&p.UserID, &p.Email, &meta)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &p.Metadata); err != nil {
			return nil, fmt.Errorf("profile metadata: %w", err)
		}
	}
	return &p, nil
}

func (r *PostgresRepository) Upsert(ctx context.Context, p *models.Profile) error {
	meta := p.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("profile metadata: %w", err)
	}

	query :=
		`INSERT INTO profiles (id, email, metadata, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (id) DO UPDATE
		 SET email = EXCLUDED.email, metadata = EXCLUDED.metadata, updated_at = now()`

	if _, err := r.db.ExecContext(ctx, query, p.UserID, p.Email, string(raw)); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
