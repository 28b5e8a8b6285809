package fetch

import (
	"errors"
	"fmt"
)

var (
	// ErrFetchFailed matches every *FetchError.
	ErrFetchFailed = errors.New("post fetch failed")
	// ErrPostUnavailable matches every *PostUnavailableError.
	ErrPostUnavailable = errors.New("post unavailable")
	// ErrRedirectedToOrigin marks a mirror that bounced back to the origin site.
	ErrRedirectedToOrigin = errors.New("mirror redirected to origin")
)

// FetchError is returned once every tier (mirrors, proxy, origin) failed.
type FetchError struct {
	URL   string
	Tries int
	Last  error
}

func (e *FetchError) Error() string {
	if e.Last == nil {
		return fmt.Sprintf("fetch %s: no source configured", e.URL)
	}
	return fmt.Sprintf("fetch %s: all %d sources failed: %v", e.URL, e.Tries, e.Last)
}

func (e *FetchError) Unwrap() error { return e.Last }

func (e *FetchError) Is(target error) bool { return target == ErrFetchFailed }

// PostUnavailableError reports a page that loaded but states the post is
// private, deleted or restricted. It is never retried.
type PostUnavailableError struct {
	URL    string
	Source string
	Phrase string
}

func (e *PostUnavailableError) Error() string {
	return fmt.Sprintf("post %s unavailable (%q via %s)", e.URL, e.Phrase, e.Source)
}

func (e *PostUnavailableError) Is(target error) bool { return target == ErrPostUnavailable }
