package platform

import (
	"testing"

	"github.com/getpublora/publora/internal/models"
)

func TestEligible(t *testing.T) {
	cases := []struct {
		platform    string
		accountKind string
		want        bool
	}{
		{models.PlatformFacebook, models.AccountKindPage, true},
		{models.PlatformFacebook, models.AccountKindProfile, false},
		{models.PlatformInstagram, models.AccountKindProfile, true},
		{models.PlatformTiktok, models.AccountKindProfile, true},
		{models.PlatformYoutube, models.AccountKindProfile, true},
	}

	for _, tc := range cases {
		if got := Eligible(tc.platform, tc.accountKind); got != tc.want {
			t.Errorf("Eligible(%s, %s) = %v, want %v", tc.platform, tc.accountKind, got, tc.want)
		}
	}
}

func TestShapeCaption(t *testing.T) {
	if got := ShapeCaption("short", 100); got != "short" {
		t.Errorf("caption under the limit must be untouched, got %q", got)
	}

	got := ShapeCaption("hello world", 8)
	if got != "hello w…" {
		t.Errorf("expected truncation with ellipsis, got %q", got)
	}
	if len([]rune(got)) != 8 {
		t.Errorf("truncated caption must fit the limit, got %d runes", len([]rune(got)))
	}

	// multibyte input must never be cut mid-rune
	got = ShapeCaption("héllö wörld", 6)
	if len([]rune(got)) != 6 {
		t.Errorf("expected 6 runes, got %q", got)
	}
}

func TestTaggedLink(t *testing.T) {
	cases := []struct {
		name string
		link string
		utm  string
		want string
	}{
		{"no utm", "https://example.com/a", "", "https://example.com/a"},
		{"no link", "", "utm_source=x", ""},
		{"bare link", "https://example.com/a", "utm_source=x", "https://example.com/a?utm_source=x"},
		{"leading question mark", "https://example.com/a", "?utm_source=x", "https://example.com/a?utm_source=x"},
		{"existing query", "https://example.com/a?b=1", "utm_source=x", "https://example.com/a?b=1&utm_source=x"},
	}

	for _, tc := range cases {
		if got := TaggedLink(tc.link, tc.utm); got != tc.want {
			t.Errorf("%s: got %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestCaptionWithLink(t *testing.T) {
	payload := Payload{
		Body:      "New post",
		LinkURL:   "https://example.com/a",
		UTMParams: "utm_source=x",
	}

	got := CaptionWithLink(payload, 100)
	want := "New post\n\nhttps://example.com/a?utm_source=x"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	// no link means no trailing block
	if got := CaptionWithLink(Payload{Body: "just text"}, 100); got != "just text" {
		t.Errorf("got %q", got)
	}
}
