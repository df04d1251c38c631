package transfer

// ContentItemCreation is the authoring boundary's input. The publishing
// engine treats everything except the schedule and platform list as opaque.
type ContentItemCreation struct {
	Title         string   `json:"title"`
	Body          string   `json:"body"`
	LinkURL       string   `json:"link_url"`
	UTMParams     string   `json:"utm_params"`
	MediaURLs     []string `json:"media_urls"`
	Platforms     []string `json:"platforms"`
	ScheduledDate string   `json:"scheduled_date"` // "2006-01-02"
	ScheduledTime string   `json:"scheduled_time"` // "15:04"
}
