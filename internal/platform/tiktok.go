package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

const tiktokTitleLimit = 2200

type TiktokPublisher struct {
	client *http.Client
}

func NewTiktokPublisher(client *http.Client) *TiktokPublisher {
	if client == nil {
		client = http.DefaultClient
	}
	return &TiktokPublisher{client: client}
}

type tiktokVideoPostInfo struct {
	Title                 string `json:"title"`
	PrivacyLevel          string `json:"privacy_level"`
	DisableDuet           bool   `json:"disable_duet"`
	DisableComment        bool   `json:"disable_comment"`
	DisableStitch         bool   `json:"disable_stitch"`
	VideoCoverTimestampMs int    `json:"video_cover_timestamp_ms"`
}

type tiktokVideoSourceInfo struct {
	Source   string `json:"source"`
	VideoURL string `json:"video_url"`
}

type tiktokUploadRequest struct {
	PostInfo   tiktokVideoPostInfo   `json:"post_info"`
	SourceInfo tiktokVideoSourceInfo `json:"source_info"`
}

type tiktokUploadResponse struct {
	Data struct {
		PublishID string `json:"publish_id"`
	} `json:"data"`
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		LogID   string `json:"log_id"`
	} `json:"error"`
}

// Publish initiates a PULL_FROM_URL video upload from the payload's first
// media URL. TikTok processes the pull asynchronously; the publish id it
// returns is the remote identifier this attempt records.
func (t *TiktokPublisher) Publish(ctx context.Context, creds Credentials, payload Payload) (*Outcome, error) {
	if len(payload.MediaURLs) == 0 {
		return nil, fmt.Errorf("tiktok requires a video URL")
	}

	uploadRequest := tiktokUploadRequest{
		PostInfo: tiktokVideoPostInfo{
			Title:                 ShapeCaption(payload.Body, tiktokTitleLimit),
			PrivacyLevel:          "PUBLIC_TO_EVERYONE",
			VideoCoverTimestampMs: 1000,
		},
		SourceInfo: tiktokVideoSourceInfo{
			Source:   "PULL_FROM_URL",
			VideoURL: payload.MediaURLs[0],
		},
	}

	jsonData, err := json.Marshal(uploadRequest)
	if err != nil {
		return nil, fmt.Errorf("error marshalling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", "https://open.tiktokapis.com/v2/post/publish/video/init/", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request error: %w", err)
	}
	defer resp.Body.Close()

	var result tiktokUploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("error parsing response: %w", err)
	}

	if resp.StatusCode != http.StatusOK || result.Data.PublishID == "" {
		return nil, fmt.Errorf("tiktok rejected video: %s (%s)", result.Error.Message, result.Error.Code)
	}

	return &Outcome{
		RemotePostID: result.Data.PublishID,
		Metadata: map[string]string{
			"publish_id": result.Data.PublishID,
			"log_id":     result.Error.LogID,
		},
	}, nil
}
