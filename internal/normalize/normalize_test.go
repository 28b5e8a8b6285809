package normalize

import (
	"testing"
)

func TestNormalize_OrderAndUnsupportedHosts(t *testing.T) {
	n := New("", []string{"https://mirror.example.org"})
	text := "look https://x.com/alice/status/1 and http://example.com/bob/status/2 " +
		"then HTTPS://FxTwitter.com/Carol/status/3?s=20 plus https://mirror.example.org/dave/status/4 " +
		"again https://x.com/alice/status/1"

	got := n.Normalize(text)
	want := []struct{ handle, id, original string }{
		{"alice", "1", "https://x.com/alice/status/1"},
		{"Carol", "3", "HTTPS://FxTwitter.com/Carol/status/3"},
		{"dave", "4", "https://mirror.example.org/dave/status/4"},
		{"alice", "1", "https://x.com/alice/status/1"},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d locators, got %d: %+v", len(want), len(got), got)
	}
	for i, w := range want {
		if got[i].Handle != w.handle || got[i].ID != w.id || got[i].OriginalURL != w.original {
			t.Fatalf("locator %d: got %+v, want %+v", i, got[i], w)
		}
	}
	if got[1].CanonicalURL != "https://x.com/Carol/status/3" {
		t.Fatalf("unexpected canonical url: %q", got[1].CanonicalURL)
	}
	if got[1].Host != "fxtwitter.com" {
		t.Fatalf("expected lowercased host, got %q", got[1].Host)
	}
}

func TestNormalize_NoMatches(t *testing.T) {
	n := New("", nil)
	if got := n.Normalize("nothing here https://example.com/a/b"); len(got) != 0 {
		t.Fatalf("expected no locators, got %+v", got)
	}
}

func TestCanonical_Idempotent(t *testing.T) {
	n := New("", nil)
	first, ok := n.Canonical("https://mobile.twitter.com/jack/status/20")
	if !ok {
		t.Fatalf("expected mobile.twitter.com to be supported")
	}
	second, ok := n.Canonical(first.CanonicalURL)
	if !ok {
		t.Fatalf("expected canonical url to normalize")
	}
	if first.CanonicalURL != second.CanonicalURL {
		t.Fatalf("canonical not idempotent: %q vs %q", first.CanonicalURL, second.CanonicalURL)
	}
	if second.CanonicalURL != "https://x.com/jack/status/20" {
		t.Fatalf("unexpected canonical: %q", second.CanonicalURL)
	}
}

func TestSupported_PortAndCase(t *testing.T) {
	n := New("", []string{"http://127.0.0.1:8080"})
	if !n.Supported("127.0.0.1:9999") {
		t.Fatalf("expected mirror host with any port to be supported")
	}
	if !n.Supported("WWW.X.COM") {
		t.Fatalf("expected case-insensitive host match")
	}
	if n.Supported("example.com") {
		t.Fatalf("did not expect example.com to be supported")
	}
}

func TestComment(t *testing.T) {
	n := New("", nil)
	text := "@mirrorbot check this https://x.com/a/status/1 https://x.com/b/status/2"
	locs := n.Normalize(text)
	if got := Comment(text, locs, "mirrorbot"); got != "check this" {
		t.Fatalf("unexpected comment: %q", got)
	}
	if got := Comment("https://x.com/a/status/1", n.Normalize("https://x.com/a/status/1"), ""); got != "" {
		t.Fatalf("expected empty comment, got %q", got)
	}
}
