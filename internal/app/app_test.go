package app

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hyperifyio/xmirror/internal/media"
	"github.com/hyperifyio/xmirror/internal/pipeline"
)

func testConfig(t *testing.T, mirror string) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Mirrors = []string{mirror}
	cfg.EnableProxy = false
	cfg.EnableSyndication = false
	cfg.RetryAttempts = 1
	cfg.HTTPTimeout = 2 * time.Second
	cfg.SettingsPath = ":memory:"
	cfg.TmpDir = t.TempDir()
	return cfg
}

func TestApp_RendersThroughMirror(t *testing.T) {
	var srvURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/alice/status/42":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(`<html><script type="application/json">{"full_text":"hello world",` +
				`"created_at":"2024-03-01T10:00:00Z","user":{"name":"Alice","screen_name":"alice"},` +
				`"favorite_count":1500,"media":[{"type":"photo","url":"` + srvURL + `/pic.jpg"}]}</script></html>`))
		case "/pic.jpg":
			_, _ = w.Write([]byte("jpeg"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()
	srvURL = srv.URL

	cfg := testConfig(t, srv.URL)
	a, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	defer a.Close()

	var out bytes.Buffer
	p := a.Pipeline(&WriterSender{W: &out}, PipelineOptions{SkipRateLimit: true})
	outcomes, err := p.Handle(context.Background(), pipeline.Message{UserID: 1, ChatID: 1, Text: "see https://twitter.com/alice/status/42"})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(outcomes) != 1 || outcomes[0].Status != pipeline.StatusDelivered || outcomes[0].Media != 1 {
		t.Fatalf("unexpected outcomes %+v", outcomes)
	}
	text := out.String()
	for _, want := range []string{"=== https://x.com/alice/status/42", "hello world", "<b>Alice</b>", "❤️ 1.5K", "<i>see</i>", "--- photo"} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected %q in output:\n%s", want, text)
		}
	}
	left, _ := filepath.Glob(filepath.Join(cfg.TmpDir, media.FilePrefix+"*"))
	if len(left) != 0 {
		t.Fatalf("temp files left behind: %v", left)
	}
}

func TestApp_UnavailableNoticeInRussian(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><body>Tweet not found</body></html>"))
	}))
	defer srv.Close()
	cfg := testConfig(t, srv.URL)
	cfg.Labels = "ru"
	a, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	defer a.Close()

	var out bytes.Buffer
	p := a.Pipeline(&WriterSender{W: &out}, PipelineOptions{SkipMedia: true})
	if _, err := p.Handle(context.Background(), pipeline.Message{Text: "https://x.com/a/status/1"}); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !strings.Contains(out.String(), "Твит недоступен") {
		t.Fatalf("expected russian unavailable notice, got %q", out.String())
	}
	if _, err := p.Handle(context.Background(), pipeline.Message{Text: "https://x.com/a/status/1"}); err != pipeline.ErrRateLimited {
		t.Fatalf("expected rate limit on immediate repeat, got %v", err)
	}
}

func TestApp_SettingsAndCleanup(t *testing.T) {
	cfg := testConfig(t, "https://mirror.example")
	cfg.DefaultTranslateLang = "ru"
	cfg.TmpMaxAge = time.Minute
	a, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	defer a.Close()

	if got, _ := a.Settings().TranslationPreference(context.Background(), 5); got != "ru" {
		t.Fatalf("expected configured default, got %q", got)
	}

	stale := filepath.Join(cfg.TmpDir, media.FilePrefix+"old.jpg")
	if err := os.WriteFile(stale, []byte("x"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	old := time.Now().Add(-time.Hour)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	a.cleanup()
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatalf("expected stale temp file removed, got %v", err)
	}
}

func TestApp_MaintainPurgesUntilCanceled(t *testing.T) {
	cfg := testConfig(t, "https://mirror.example")
	cfg.TmpMaxAge = time.Minute
	a, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	defer a.Close()

	stale := filepath.Join(cfg.TmpDir, media.FilePrefix+"late.jpg")
	if err := os.WriteFile(stale, []byte("x"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	old := time.Now().Add(-time.Hour)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		a.Maintain(ctx, 10*time.Millisecond)
		close(done)
	}()
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := os.Stat(stale); os.IsNotExist(err) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected periodic cleanup to remove %s", stale)
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("expected Maintain to return after cancel")
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := testConfig(t, "not a url")
	if _, err := New(context.Background(), cfg); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestVersionString(t *testing.T) {
	if !strings.Contains(VersionString(), BuildVersion) {
		t.Fatalf("expected version in %q", VersionString())
	}
}
