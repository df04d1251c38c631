package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

const instagramCaptionLimit = 2200

type InstagramPublisher struct {
	client *http.Client
}

func NewInstagramPublisher(client *http.Client) *InstagramPublisher {
	if client == nil {
		client = http.DefaultClient
	}
	return &InstagramPublisher{client: client}
}

// Publish runs the graph container flow: create a media container for the
// first image URL, then publish it. Instagram requires media, so a payload
// without any is a failed outcome, not a silent skip.
func (ig *InstagramPublisher) Publish(ctx context.Context, creds Credentials, payload Payload) (*Outcome, error) {
	if len(payload.MediaURLs) == 0 {
		return nil, fmt.Errorf("instagram requires at least one media URL")
	}

	containerID, err := ig.createContainer(ctx, creds, payload)
	if err != nil {
		return nil, err
	}

	mediaID, err := ig.publishContainer(ctx, creds.AccountID, containerID, creds.AccessToken)
	if err != nil {
		return nil, err
	}

	return &Outcome{
		RemotePostID:  mediaID,
		RemotePostURL: fmt.Sprintf("https://www.instagram.com/p/%s", mediaID),
		Metadata:      map[string]string{"container_id": containerID},
	}, nil
}

func (ig *InstagramPublisher) createContainer(ctx context.Context, creds Credentials, payload Payload) (string, error) {
	endpoint := fmt.Sprintf("https://graph.instagram.com/v21.0/%s/media", creds.AccountID)

	body := map[string]any{
		"image_url":    payload.MediaURLs[0],
		"caption":      CaptionWithLink(payload, instagramCaptionLimit),
		"access_token": creds.AccessToken,
	}
	jsonData, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("error marshalling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := ig.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("HTTP request error: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("error reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code from Instagram: %d: %s", resp.StatusCode, respBody)
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("error parsing response: %w", err)
	}
	if result.ID == "" {
		return "", fmt.Errorf("no media container ID returned from Instagram")
	}

	return result.ID, nil
}

func (ig *InstagramPublisher) publishContainer(ctx context.Context, accountID, containerID, accessToken string) (string, error) {
	endpoint := fmt.Sprintf("https://graph.instagram.com/v21.0/%s/media_publish", accountID)

	data := url.Values{}
	data.Set("creation_id", containerID)
	data.Set("access_token", accessToken)

	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewBufferString(data.Encode()))
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := ig.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("HTTP request error: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("error reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code from Instagram publish: %d: %s", resp.StatusCode, respBody)
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("error parsing publish response: %w", err)
	}
	if result.ID == "" {
		return "", fmt.Errorf("no media ID returned from Instagram publish")
	}

	return result.ID, nil
}
