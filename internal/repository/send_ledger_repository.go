package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/getpublora/publora/internal/models"
)

type SendLedgerRepository interface {
	GetByPair(ctx context.Context, contentItemID, connectionID int64) (*models.SendLedgerEntry, error)
	Claim(ctx context.Context, contentItemID, connectionID int64) (int64, bool, error)
	SetPublishing(ctx context.Context, id int64) error
	ResetForRetry(ctx context.Context, id int64) error
	MarkPublished(ctx context.Context, id int64, remotePostID, remotePostURL string) error
	MarkFailed(ctx context.Context, id int64, errorMessage string) error
	ListByContentItem(ctx context.Context, contentItemID int64) ([]*models.SendLedgerEntry, error)
}

type sendLedgerRepository struct {
	db *sql.DB
}

func NewSendLedgerRepository(db *sql.DB) SendLedgerRepository {
	return &sendLedgerRepository{db: db}
}

const sendLedgerColumns = `id, content_item_id, connection_id, status, remote_post_id, remote_post_url, error_message, retry_count, created_at, updated_at`

func (r *sendLedgerRepository) GetByPair(ctx context.Context, contentItemID, connectionID int64) (*models.SendLedgerEntry, error) {
	query := `SELECT ` + sendLedgerColumns + ` FROM published_posts WHERE content_item_id = $1 AND connection_id = $2`
	row := r.db.QueryRowContext(ctx, query, contentItemID, connectionID)

	var entry models.SendLedgerEntry
	err := row.Scan(&entry.ID, &entry.ContentItemID, &entry.ConnectionID, &entry.Status,
		&entry.RemotePostID, &entry.RemotePostURL, &entry.ErrorMessage, &entry.RetryCount,
		&entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	return &entry, nil
}

// Claim inserts the single ledger row for a (content item, connection) pair
// in status publishing. The unique constraint on the pair makes the insert
// the atomic claim step: when another dispatch round already owns the pair
// the insert inserts nothing and Claim reports claimed = false, so the
// caller falls through to the existing-entry branch instead of erroring.
func (r *sendLedgerRepository) Claim(ctx context.Context, contentItemID, connectionID int64) (int64, bool, error) {
	query := `
		INSERT INTO published_posts (content_item_id, connection_id, status)
		VALUES ($1, $2, $3)
		ON CONFLICT (content_item_id, connection_id) DO NOTHING
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query, contentItemID, connectionID, models.SendStatusPublishing).Scan(&id)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, false, nil
		}
		slog.Info(err.Error())
		return 0, false, err
	}

	return id, true, nil
}

func (r *sendLedgerRepository) SetPublishing(ctx context.Context, id int64) error {
	query := `UPDATE published_posts SET status = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, models.SendStatusPublishing, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

// ResetForRetry is the manual-retry reset: back to publishing with a fresh
// retry budget, regardless of how many automatic attempts preceded it.
func (r *sendLedgerRepository) ResetForRetry(ctx context.Context, id int64) error {
	query := `UPDATE published_posts SET status = $1, retry_count = 0, error_message = '', updated_at = CURRENT_TIMESTAMP WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, models.SendStatusPublishing, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *sendLedgerRepository) MarkPublished(ctx context.Context, id int64, remotePostID, remotePostURL string) error {
	query := `
		UPDATE published_posts
		SET status = $1,
			remote_post_id = $2,
			remote_post_url = $3,
			error_message = '',
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $4
	`
	_, err := r.db.ExecContext(ctx, query, models.SendStatusPublished, remotePostID, remotePostURL, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

// MarkFailed records the adapter's error and bumps the retry counter in the
// same statement, so overlapping rounds cannot double-count an attempt.
func (r *sendLedgerRepository) MarkFailed(ctx context.Context, id int64, errorMessage string) error {
	query := `
		UPDATE published_posts
		SET status = $1,
			error_message = $2,
			retry_count = retry_count + 1,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $3
	`
	_, err := r.db.ExecContext(ctx, query, models.SendStatusFailed, errorMessage, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *sendLedgerRepository) ListByContentItem(ctx context.Context, contentItemID int64) ([]*models.SendLedgerEntry, error) {
	query := `SELECT ` + sendLedgerColumns + ` FROM published_posts WHERE content_item_id = $1`
	rows, err := r.db.QueryContext(ctx, query, contentItemID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var entries []*models.SendLedgerEntry
	for rows.Next() {
		var entry models.SendLedgerEntry
		err := rows.Scan(&entry.ID, &entry.ContentItemID, &entry.ConnectionID, &entry.Status,
			&entry.RemotePostID, &entry.RemotePostURL, &entry.ErrorMessage, &entry.RetryCount,
			&entry.CreatedAt, &entry.UpdatedAt)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}
