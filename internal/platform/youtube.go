package platform

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"golang.org/x/oauth2"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

const youtubeTitleLimit = 100

type YoutubePublisher struct {
	client *http.Client
}

func NewYoutubePublisher(client *http.Client) *YoutubePublisher {
	if client == nil {
		client = http.DefaultClient
	}
	return &YoutubePublisher{client: client}
}

// Publish downloads the payload's first media URL to a temp file and uploads
// it as a public video. YouTube's resumable upload dedupes nothing, so a
// repeated call after a lost response can create a second video; the ledger's
// claim step keeps that window to overlapping rounds only.
func (y *YoutubePublisher) Publish(ctx context.Context, creds Credentials, payload Payload) (*Outcome, error) {
	if len(payload.MediaURLs) == 0 {
		return nil, fmt.Errorf("youtube requires a video URL")
	}

	token := &oauth2.Token{AccessToken: creds.AccessToken}
	oauthClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))
	service, err := youtube.NewService(ctx, option.WithHTTPClient(oauthClient))
	if err != nil {
		return nil, fmt.Errorf("error creating YouTube service: %w", err)
	}

	tempFile, err := y.downloadVideo(ctx, payload.MediaURLs[0])
	if err != nil {
		return nil, err
	}
	defer os.Remove(tempFile)

	file, err := os.Open(tempFile)
	if err != nil {
		return nil, fmt.Errorf("error opening video file: %w", err)
	}
	defer file.Close()

	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       ShapeCaption(payload.Title, youtubeTitleLimit),
			Description: CaptionWithLink(payload, 5000),
			CategoryId:  "22",
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus: "public",
		},
	}

	call := service.Videos.Insert([]string{"snippet", "status"}, video)
	response, err := call.Media(file).Do()
	if err != nil {
		return nil, fmt.Errorf("error uploading video: %w", err)
	}

	return &Outcome{
		RemotePostID:  response.Id,
		RemotePostURL: fmt.Sprintf("https://www.youtube.com/watch?v=%s", response.Id),
		Metadata:      map[string]string{"category_id": "22"},
	}, nil
}

func (y *YoutubePublisher) downloadVideo(ctx context.Context, videoURL string) (string, error) {
	tempFile, err := os.CreateTemp("", "video-*.mp4")
	if err != nil {
		return "", fmt.Errorf("error creating temporary file: %w", err)
	}
	defer tempFile.Close()

	req, err := http.NewRequestWithContext(ctx, "GET", videoURL, nil)
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}

	resp, err := y.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("error downloading video: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected response status: %d", resp.StatusCode)
	}

	if _, err := io.Copy(tempFile, resp.Body); err != nil {
		return "", fmt.Errorf("error saving video: %w", err)
	}

	return tempFile.Name(), nil
}
