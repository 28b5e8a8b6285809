package ratelimit

import (
	"testing"
	"time"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter() (*Limiter, *clock) {
	c := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := New(0, 0)
	l.Now = c.now
	return l, c
}

func TestAllow_UserWindow(t *testing.T) {
	l, c := newTestLimiter()
	if !l.Allow(1, 100) {
		t.Fatalf("expected first request allowed")
	}
	c.advance(3 * time.Second)
	if l.Allow(1, 200) {
		t.Fatalf("expected user window to reject")
	}
	if got := l.RetryAfter(1, 200); got != 2*time.Second {
		t.Fatalf("expected 2s retry-after, got %v", got)
	}
	c.advance(2 * time.Second)
	if !l.Allow(1, 200) {
		t.Fatalf("expected allow after user window")
	}
}

func TestAllow_ChatWindow(t *testing.T) {
	l, c := newTestLimiter()
	if !l.Allow(1, 100) {
		t.Fatalf("expected first request allowed")
	}
	c.advance(time.Second)
	if l.Allow(2, 100) {
		t.Fatalf("expected chat window to reject a different user")
	}
	c.advance(time.Second)
	if !l.Allow(2, 100) {
		t.Fatalf("expected allow after chat window")
	}
}

func TestAllow_RejectionDoesNotExtendWindow(t *testing.T) {
	l, c := newTestLimiter()
	l.Allow(1, 1)
	for i := 0; i < 4; i++ {
		c.advance(time.Second)
		if l.Allow(1, 1) {
			t.Fatalf("expected reject at %ds", i+1)
		}
	}
	c.advance(time.Second)
	if !l.Allow(1, 1) {
		t.Fatalf("expected allow exactly at the window")
	}
}

func TestPrune(t *testing.T) {
	l, c := newTestLimiter()
	l.Allow(1, 10)
	c.advance(time.Hour)
	l.Allow(2, 20)
	if n := l.Prune(time.Minute); n != 2 {
		t.Fatalf("expected 2 pruned, got %d", n)
	}
	if l.RetryAfter(1, 10) != 0 {
		t.Fatalf("expected pruned entries to be forgotten")
	}
	if l.RetryAfter(2, 20) == 0 {
		t.Fatalf("expected fresh entries kept")
	}
}
