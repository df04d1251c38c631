package models

import "time"

// SendLedgerEntry records one publish attempt for one (content item,
// connection) pair. At most one row exists per pair; the row is created on
// the first attempt and mutated on every later one, never deleted.
type SendLedgerEntry struct {
	ID            int64     `db:"id" json:"id"`
	ContentItemID int64     `db:"content_item_id" json:"content_item_id"`
	ConnectionID  int64     `db:"connection_id" json:"connection_id"`
	Status        string    `db:"status" json:"status"`
	RemotePostID  string    `db:"remote_post_id" json:"remote_post_id"`
	RemotePostURL string    `db:"remote_post_url" json:"remote_post_url"`
	ErrorMessage  string    `db:"error_message" json:"error_message"`
	RetryCount    int       `db:"retry_count" json:"retry_count"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

const (
	SendStatusPublishing = "publishing"
	SendStatusPublished  = "published"
	SendStatusFailed     = "failed"
)
