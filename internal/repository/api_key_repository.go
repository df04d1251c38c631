package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/getpublora/publora/internal/models"
)

type ApiKeyRepository interface {
	Create(ctx context.Context, key *models.ApiKey) (int64, error)
	GetOrgID(ctx context.Context, apiKey string) (int64, error)
	ListByOrgID(ctx context.Context, orgID int64) ([]*models.ApiKey, error)
	Remove(ctx context.Context, orgID, id int64) error
}

type apiKeyRepository struct {
	db *sql.DB
}

func NewApiKeyRepository(db *sql.DB) ApiKeyRepository {
	return &apiKeyRepository{db: db}
}

func (r *apiKeyRepository) Create(ctx context.Context, key *models.ApiKey) (int64, error) {
	query := `
		INSERT INTO api_keys (org_id, api_key)
		VALUES ($1, $2)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query, key.OrgID, key.ApiKey).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *apiKeyRepository) GetOrgID(ctx context.Context, apiKey string) (int64, error) {
	query := `SELECT org_id FROM api_keys WHERE api_key = $1`

	var orgID int64
	err := r.db.QueryRowContext(ctx, query, apiKey).Scan(&orgID)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		slog.Info(err.Error())
		return 0, err
	}

	return orgID, nil
}

func (r *apiKeyRepository) ListByOrgID(ctx context.Context, orgID int64) ([]*models.ApiKey, error) {
	query := `SELECT id, org_id, api_key, created_at FROM api_keys WHERE org_id = $1`
	rows, err := r.db.QueryContext(ctx, query, orgID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var keys []*models.ApiKey
	for rows.Next() {
		var key models.ApiKey
		err := rows.Scan(&key.ID, &key.OrgID, &key.ApiKey, &key.CreatedAt)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		keys = append(keys, &key)
	}
	return keys, rows.Err()
}

func (r *apiKeyRepository) Remove(ctx context.Context, orgID, id int64) error {
	query := `DELETE FROM api_keys WHERE id = $1 AND org_id = $2`
	_, err := r.db.ExecContext(ctx, query, id, orgID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
