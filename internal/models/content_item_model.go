package models

import (
	"database/sql"
	"time"

	"github.com/lib/pq"
)

type ContentItem struct {
	ID            int64          `db:"id" json:"id"`
	OrgID         int64          `db:"org_id" json:"org_id"`
	Title         string         `db:"title" json:"title"`
	Body          string         `db:"body" json:"body"`
	LinkURL       string         `db:"link_url" json:"link_url"`
	UTMParams     string         `db:"utm_params" json:"utm_params"`
	MediaURLs     pq.StringArray `db:"media_urls" json:"media_urls"`
	Platforms     pq.StringArray `db:"platforms" json:"platforms"` // empty means every active connection
	ScheduledDate time.Time      `db:"scheduled_date" json:"scheduled_date"`
	ScheduledTime string         `db:"scheduled_time" json:"scheduled_time"` // local wall clock, "15:04"
	Status        string         `db:"status" json:"status"`
	PublishedAt   sql.NullTime   `db:"published_at" json:"published_at"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updated_at"`
}

const (
	ContentStatusIdea      = "idea"
	ContentStatusScripted  = "scripted"
	ContentStatusScheduled = "scheduled"
	ContentStatusPublished = "published"
	ContentStatusFailed    = "failed"
	ContentStatusRevision  = "revision"
)
