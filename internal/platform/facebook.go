package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

const facebookCaptionLimit = 63206

type FacebookPublisher struct {
	client *http.Client
}

func NewFacebookPublisher(client *http.Client) *FacebookPublisher {
	if client == nil {
		client = http.DefaultClient
	}
	return &FacebookPublisher{client: client}
}

type facebookErrorResponse struct {
	Error struct {
		Message      string `json:"message"`
		Type         string `json:"type"`
		Code         int    `json:"code"`
		ErrorSubcode int    `json:"error_subcode"`
		FbtraceID    string `json:"fbtrace_id"`
	} `json:"error"`
}

// Publish posts to the page feed. Credentials must belong to a page
// connection; the graph API rejects personal profiles, which the eligibility
// filter screens out before dispatch ever reaches here.
func (f *FacebookPublisher) Publish(ctx context.Context, creds Credentials, payload Payload) (*Outcome, error) {
	endpoint := fmt.Sprintf("https://graph.facebook.com/v21.0/%s/feed", creds.AccountID)

	body := map[string]any{
		"message":      CaptionWithLink(payload, facebookCaptionLimit),
		"access_token": creds.AccessToken,
	}
	if link := TaggedLink(payload.LinkURL, payload.UTMParams); link != "" {
		body["link"] = link
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("error marshalling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request error: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var fbErr facebookErrorResponse
		if err := json.Unmarshal(respBody, &fbErr); err == nil && fbErr.Error.Message != "" {
			return nil, fmt.Errorf("facebook rejected post: %s (code %d)", fbErr.Error.Message, fbErr.Error.Code)
		}
		return nil, fmt.Errorf("unexpected status code from Facebook: %d", resp.StatusCode)
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("error parsing response: %w", err)
	}
	if result.ID == "" {
		return nil, fmt.Errorf("no post ID returned from Facebook")
	}

	slog.Info("facebook post published", "post_id", result.ID)

	return &Outcome{
		RemotePostID:  result.ID,
		RemotePostURL: fmt.Sprintf("https://www.facebook.com/%s", result.ID),
		Metadata:      map[string]string{"page_id": creds.AccountID},
	}, nil
}
