package models

import (
	"time"
)

type Connection struct {
	ID             int64     `db:"id" json:"id"`
	OrgID          int64     `db:"org_id" json:"org_id"`
	Platform       string    `db:"platform" json:"platform"`
	AccountID      string    `db:"account_id" json:"account_id"`
	AccountName    string    `db:"account_name" json:"account_name"`
	AccountKind    string    `db:"account_kind" json:"account_kind"`
	ProfilePicture string    `db:"profile_picture_url" json:"profile_picture"`
	IsActive       bool      `db:"is_active" json:"is_active"`
	AccessToken    string    `db:"access_token" json:"access_token"`
	RefreshToken   string    `db:"refresh_token" json:"refresh_token"`
	TokenExpiresAt time.Time `db:"token_expires_at" json:"token_expires_at"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// Account kinds for platforms that split page and personal-profile accounts.
// Facebook forbids API publishing to personal profiles, so only page
// connections are eligible fan-out targets there.
const (
	AccountKindPage    = "page"
	AccountKindProfile = "profile"
)

const (
	PlatformFacebook  = "facebook"
	PlatformInstagram = "instagram"
	PlatformTiktok    = "tiktok"
	PlatformYoutube   = "youtube"
)
