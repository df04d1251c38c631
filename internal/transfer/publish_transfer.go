package transfer

// PublishRequest is the manual publish entry point's body. Exactly one of
// Platforms or ConnectionIDs selects targets for a fresh dispatch; Retry
// plus RetryConnectionID selects the manual-retry path instead.
type PublishRequest struct {
	ContentItemID     int64    `json:"content_item_id"`
	Platforms         []string `json:"platforms,omitempty"`
	ConnectionIDs     []int64  `json:"connection_ids,omitempty"`
	Retry             bool     `json:"retry,omitempty"`
	RetryConnectionID int64    `json:"retry_connection_id,omitempty"`
}

// SendResult is one connection's outcome within a dispatch round.
type SendResult struct {
	ConnectionID int64  `json:"connection_id"`
	Platform     string `json:"platform"`
	Success      bool   `json:"success"`
	Skipped      bool   `json:"skipped,omitempty"`
	PostURL      string `json:"post_url,omitempty"`
	Error        string `json:"error,omitempty"`
}

type PublishResponse struct {
	Results []SendResult `json:"results"`
}

type PollResponse struct {
	Published int `json:"published"`
}
