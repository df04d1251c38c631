// Package platform holds the per-platform publish adapters. An adapter
// performs exactly one publish attempt against a remote API; retry policy
// belongs to the publish orchestrator, never to an adapter.
package platform

import (
	"context"
	"net/url"
	"strings"

	"github.com/getpublora/publora/internal/models"
)

// Credentials is the decrypted credential set for one connection, supplied
// by the credential store. Adapters never refresh or persist tokens.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	AccountID    string
	AccountKind  string
}

// Payload is the opaque content produced by the authoring pipeline.
type Payload struct {
	Title     string
	Body      string
	LinkURL   string
	UTMParams string
	MediaURLs []string
}

// Outcome is what a successful attempt yields. A failed attempt is the
// adapter's returned error; its message is what lands in the send ledger.
type Outcome struct {
	RemotePostID  string
	RemotePostURL string
	Metadata      map[string]string
}

// Publisher is implemented once per platform. Implementations must be safe
// to call repeatedly with the same payload: the caller delivers at least
// once, and a platform API that is not naturally idempotent must surface a
// duplicate-detection error rather than create a second remote post.
type Publisher interface {
	Publish(ctx context.Context, creds Credentials, payload Payload) (*Outcome, error)
}

type Registry struct {
	publishers map[string]Publisher
}

func NewRegistry() *Registry {
	return &Registry{publishers: make(map[string]Publisher)}
}

func (r *Registry) Register(platform string, p Publisher) {
	r.publishers[platform] = p
}

func (r *Registry) Get(platform string) (Publisher, bool) {
	p, ok := r.publishers[platform]
	return p, ok
}

// Eligible reports whether a connection may receive publishes. Facebook
// splits page and personal-profile accounts and its API forbids publishing
// to profiles, so only page connections qualify there.
func Eligible(platform, accountKind string) bool {
	if platform == models.PlatformFacebook {
		return accountKind == models.AccountKindPage
	}
	return true
}

// ShapeCaption truncates a caption to a platform's limit, rune-safe, with a
// trailing ellipsis when anything was cut.
func ShapeCaption(body string, limit int) string {
	runes := []rune(body)
	if len(runes) <= limit {
		return body
	}
	if limit <= 1 {
		return string(runes[:limit])
	}
	return string(runes[:limit-1]) + "…"
}

// TaggedLink appends the payload's UTM parameters to its link URL.
func TaggedLink(linkURL, utmParams string) string {
	if linkURL == "" || utmParams == "" {
		return linkURL
	}
	u, err := url.Parse(linkURL)
	if err != nil {
		return linkURL
	}
	utm := strings.TrimPrefix(utmParams, "?")
	if u.RawQuery == "" {
		u.RawQuery = utm
	} else {
		u.RawQuery = u.RawQuery + "&" + utm
	}
	return u.String()
}

// CaptionWithLink is the default caption shape: body, then the UTM-tagged
// link on its own line, truncated to the platform limit.
func CaptionWithLink(payload Payload, limit int) string {
	caption := payload.Body
	if link := TaggedLink(payload.LinkURL, payload.UTMParams); link != "" {
		caption = caption + "\n\n" + link
	}
	return ShapeCaption(caption, limit)
}
