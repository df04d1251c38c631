package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/getpublora/publora/internal/models"
	"github.com/lib/pq"
)

type ContentItemRepository interface {
	GetByID(ctx context.Context, id int64) (*models.ContentItem, error)
	Create(ctx context.Context, tx *sql.Tx, item *models.ContentItem) (int64, error)
	ListByOrgID(ctx context.Context, orgID int64) ([]*models.ContentItem, error)
	ListScheduledDue(ctx context.Context, orgID int64, today time.Time) ([]*models.ContentItem, error)
	CheckByOrgID(ctx context.Context, itemID, orgID int64) (bool, error)
	UpdateStatus(ctx context.Context, status string, itemID int64) error
	MarkPublished(ctx context.Context, itemID int64, publishedAt time.Time) error
	Remove(ctx context.Context, id int64) error
}

type contentItemRepository struct {
	db *sql.DB
}

func NewContentItemRepository(db *sql.DB) ContentItemRepository {
	return &contentItemRepository{db: db}
}

const contentItemColumns = `id, org_id, title, body, link_url, utm_params, media_urls, platforms, scheduled_date, scheduled_time, status, published_at, created_at, updated_at`

func scanContentItem(row interface{ Scan(...any) error }) (*models.ContentItem, error) {
	var item models.ContentItem
	err := row.Scan(&item.ID, &item.OrgID, &item.Title, &item.Body, &item.LinkURL,
		&item.UTMParams, &item.MediaURLs, &item.Platforms, &item.ScheduledDate,
		&item.ScheduledTime, &item.Status, &item.PublishedAt, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *contentItemRepository) Create(ctx context.Context, tx *sql.Tx, item *models.ContentItem) (int64, error) {
	query := `
		INSERT INTO content_items (org_id, title, body, link_url, utm_params, media_urls, platforms, scheduled_date, scheduled_time, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`

	args := []any{item.OrgID, item.Title, item.Body, item.LinkURL, item.UTMParams,
		pq.Array([]string(item.MediaURLs)), pq.Array([]string(item.Platforms)),
		item.ScheduledDate, item.ScheduledTime, item.Status}

	var id int64
	var err error
	if tx != nil {
		err = tx.QueryRowContext(ctx, query, args...).Scan(&id)
	} else {
		err = r.db.QueryRowContext(ctx, query, args...).Scan(&id)
	}
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *contentItemRepository) GetByID(ctx context.Context, id int64) (*models.ContentItem, error) {
	query := `SELECT ` + contentItemColumns + ` FROM content_items WHERE id = $1`
	item, err := scanContentItem(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return item, nil
}

func (r *contentItemRepository) ListByOrgID(ctx context.Context, orgID int64) ([]*models.ContentItem, error) {
	query := `SELECT ` + contentItemColumns + ` FROM content_items WHERE org_id = $1 ORDER BY scheduled_date, scheduled_time`
	rows, err := r.db.QueryContext(ctx, query, orgID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var items []*models.ContentItem
	for rows.Next() {
		item, err := scanContentItem(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ListScheduledDue returns scheduled items whose date has arrived. The
// clock-time part of the deadline is compared in process, so only the date
// predicate lives in the query. orgID 0 widens the scan to all organizations.
func (r *contentItemRepository) ListScheduledDue(ctx context.Context, orgID int64, today time.Time) ([]*models.ContentItem, error) {
	query := `SELECT ` + contentItemColumns + ` FROM content_items WHERE status = $1 AND scheduled_date <= $2`
	args := []any{models.ContentStatusScheduled, today}

	if orgID != 0 {
		query += ` AND org_id = $3`
		args = append(args, orgID)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var items []*models.ContentItem
	for rows.Next() {
		item, err := scanContentItem(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *contentItemRepository) CheckByOrgID(ctx context.Context, itemID, orgID int64) (bool, error) {
	query := `SELECT 1 FROM content_items WHERE id = $1 AND org_id = $2`

	var result int
	err := r.db.QueryRowContext(ctx, query, itemID, orgID).Scan(&result)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		slog.Info(err.Error())
		return false, err
	}

	return result == 1, nil
}

func (r *contentItemRepository) UpdateStatus(ctx context.Context, status string, itemID int64) error {
	query := `
		UPDATE content_items
		SET status = $1,
			updated_at = $2
		WHERE id = $3
	`
	_, err := r.db.ExecContext(ctx, query, status, time.Now(), itemID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *contentItemRepository) MarkPublished(ctx context.Context, itemID int64, publishedAt time.Time) error {
	query := `
		UPDATE content_items
		SET status = $1,
			published_at = $2,
			updated_at = $2
		WHERE id = $3
	`
	_, err := r.db.ExecContext(ctx, query, models.ContentStatusPublished, publishedAt, itemID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *contentItemRepository) Remove(ctx context.Context, id int64) error {
	query := `DELETE FROM content_items WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
