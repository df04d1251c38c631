package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/getpublora/publora/internal/models"
)

type ConnectionRepository interface {
	Create(ctx context.Context, tx *sql.Tx, conn *models.Connection) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.Connection, error)
	ListActiveByOrgID(ctx context.Context, orgID int64) ([]*models.Connection, error)
	ListInfoByOrgID(ctx context.Context, orgID int64) ([]*models.Connection, error)
	ListByTokenExpiry(ctx context.Context, initialTime, finalTime time.Time) ([]*models.Connection, error)
	CheckByOrgID(ctx context.Context, connectionID, orgID int64) (bool, error)
	SetToken(ctx context.Context, orgID int64, oldAccessToken string, conn *models.Connection) error
	Deactivate(ctx context.Context, id int64) error
}

type connectionRepository struct {
	db *sql.DB
}

func NewConnectionRepository(db *sql.DB) ConnectionRepository {
	return &connectionRepository{db: db}
}

const connectionColumns = `id, org_id, platform, account_id, account_name, account_kind, profile_picture_url, is_active, access_token, refresh_token, token_expires_at, created_at, updated_at`

func (r *connectionRepository) Create(ctx context.Context, tx *sql.Tx, conn *models.Connection) (int64, error) {
	insertQuery := `
		INSERT INTO connections(
			org_id,
			platform,
			account_id,
			account_name,
			account_kind,
			profile_picture_url,
			is_active,
			access_token,
			refresh_token,
			token_expires_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`

	args := []any{
		conn.OrgID,
		conn.Platform,
		conn.AccountID,
		conn.AccountName,
		conn.AccountKind,
		conn.ProfilePicture,
		conn.IsActive,
		conn.AccessToken,
		conn.RefreshToken,
		conn.TokenExpiresAt,
	}

	var id int64
	var err error
	if tx != nil {
		err = tx.QueryRowContext(ctx, insertQuery, args...).Scan(&id)
	} else {
		err = r.db.QueryRowContext(ctx, insertQuery, args...).Scan(&id)
	}
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *connectionRepository) GetByID(ctx context.Context, id int64) (*models.Connection, error) {
	query := `SELECT ` + connectionColumns + ` FROM connections WHERE id = $1`
	row := r.db.QueryRowContext(ctx, query, id)

	var conn models.Connection
	err := row.Scan(&conn.ID, &conn.OrgID, &conn.Platform, &conn.AccountID, &conn.AccountName,
		&conn.AccountKind, &conn.ProfilePicture, &conn.IsActive, &conn.AccessToken,
		&conn.RefreshToken, &conn.TokenExpiresAt, &conn.CreatedAt, &conn.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	return &conn, nil
}

func (r *connectionRepository) ListActiveByOrgID(ctx context.Context, orgID int64) ([]*models.Connection, error) {
	query := `SELECT ` + connectionColumns + ` FROM connections WHERE org_id = $1 AND is_active = TRUE`
	rows, err := r.db.QueryContext(ctx, query, orgID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var connections []*models.Connection
	for rows.Next() {
		var conn models.Connection
		err := rows.Scan(&conn.ID, &conn.OrgID, &conn.Platform, &conn.AccountID, &conn.AccountName,
			&conn.AccountKind, &conn.ProfilePicture, &conn.IsActive, &conn.AccessToken,
			&conn.RefreshToken, &conn.TokenExpiresAt, &conn.CreatedAt, &conn.UpdatedAt)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		connections = append(connections, &conn)
	}
	return connections, rows.Err()
}

func (r *connectionRepository) ListInfoByOrgID(ctx context.Context, orgID int64) ([]*models.Connection, error) {
	query := `SELECT id, platform, account_name, account_kind, profile_picture_url, is_active FROM connections WHERE org_id = $1`
	rows, err := r.db.QueryContext(ctx, query, orgID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var connections []*models.Connection
	for rows.Next() {
		var conn models.Connection
		err := rows.Scan(&conn.ID, &conn.Platform, &conn.AccountName, &conn.AccountKind,
			&conn.ProfilePicture, &conn.IsActive)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		connections = append(connections, &conn)
	}
	return connections, rows.Err()
}

func (r *connectionRepository) ListByTokenExpiry(ctx context.Context, initialTime, finalTime time.Time) ([]*models.Connection, error) {
	query := `SELECT
			id,
			org_id,
			platform,
			access_token,
			refresh_token,
			token_expires_at
			FROM connections
			WHERE is_active = TRUE
			AND ((token_expires_at BETWEEN $1 AND $2) OR (token_expires_at < $1))`
	rows, err := r.db.QueryContext(ctx, query, initialTime, finalTime)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var connections []*models.Connection
	for rows.Next() {
		var conn models.Connection
		err := rows.Scan(&conn.ID, &conn.OrgID, &conn.Platform, &conn.AccessToken, &conn.RefreshToken, &conn.TokenExpiresAt)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		connections = append(connections, &conn)
	}

	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	return connections, nil
}

func (r *connectionRepository) CheckByOrgID(ctx context.Context, connectionID, orgID int64) (bool, error) {
	query := `SELECT 1 FROM connections WHERE id = $1 AND org_id = $2`

	var result int
	err := r.db.QueryRowContext(ctx, query, connectionID, orgID).Scan(&result)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		slog.Info(err.Error())
		return false, err
	}

	return result == 1, nil
}

func (r *connectionRepository) SetToken(ctx context.Context, orgID int64, oldAccessToken string, conn *models.Connection) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	defer tx.Rollback()

	updateTokenQuery := `
		UPDATE connections
		SET
			access_token = COALESCE(NULLIF($3, ''), access_token),
			refresh_token = COALESCE(NULLIF($4, ''), refresh_token),
			token_expires_at = COALESCE($5, token_expires_at),
			updated_at = CURRENT_TIMESTAMP
		WHERE org_id = $1 AND access_token = $2;
	`
	result, err := tx.ExecContext(ctx, updateTokenQuery, orgID, oldAccessToken, conn.AccessToken, conn.RefreshToken, conn.TokenExpiresAt)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	if affected != 1 {
		slog.Info("no rows affected; connection may not exist")
		return errors.New("no rows affected; connection may not exist")
	}

	if err = tx.Commit(); err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *connectionRepository) Deactivate(ctx context.Context, id int64) error {
	query := `UPDATE connections SET is_active = FALSE, updated_at = CURRENT_TIMESTAMP WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
