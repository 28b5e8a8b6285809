// Package ratelimit enforces a minimum interval between accepted requests
// per user and per chat.
package ratelimit

import (
	"sync"
	"time"
)

// Default windows.
const (
	DefaultUserWindow = 5 * time.Second
	DefaultChatWindow = 2 * time.Second
)

// Limiter accepts a request only when both the user's and the chat's
// window have elapsed since their last accepted request. Rejected requests
// do not move either timestamp.
type Limiter struct {
	UserWindow time.Duration
	ChatWindow time.Duration
	// Now is injectable for tests.
	Now func() time.Time

	mu    sync.Mutex
	users map[int64]time.Time
	chats map[int64]time.Time
}

// New returns a limiter with the given windows; zero values use the defaults.
func New(userWindow, chatWindow time.Duration) *Limiter {
	if userWindow <= 0 {
		userWindow = DefaultUserWindow
	}
	if chatWindow <= 0 {
		chatWindow = DefaultChatWindow
	}
	return &Limiter{UserWindow: userWindow, ChatWindow: chatWindow}
}

func (l *Limiter) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}

// Allow reports whether the request may proceed and records it if so.
func (l *Limiter) Allow(user, chat int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.users == nil {
		l.users = make(map[int64]time.Time)
		l.chats = make(map[int64]time.Time)
	}
	now := l.now()
	if last, ok := l.users[user]; ok && now.Sub(last) < l.UserWindow {
		return false
	}
	if last, ok := l.chats[chat]; ok && now.Sub(last) < l.ChatWindow {
		return false
	}
	l.users[user] = now
	l.chats[chat] = now
	return true
}

// RetryAfter returns how long the caller must wait before Allow can succeed.
func (l *Limiter) RetryAfter(user, chat int64) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	var wait time.Duration
	if last, ok := l.users[user]; ok {
		wait = max(wait, l.UserWindow-now.Sub(last))
	}
	if last, ok := l.chats[chat]; ok {
		wait = max(wait, l.ChatWindow-now.Sub(last))
	}
	return wait
}

// Prune drops entries older than maxAge and returns how many were removed.
func (l *Limiter) Prune(maxAge time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-maxAge)
	n := 0
	for _, m := range []map[int64]time.Time{l.users, l.chats} {
		for k, t := range m {
			if t.Before(cutoff) {
				delete(m, k)
				n++
			}
		}
	}
	return n
}
