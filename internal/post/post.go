// Package post holds the normalized representation of a mirrored status post
// shared by the extractor, the translation augmenter and the renderer.
package post

import "time"

// Locator identifies one status post found in free text.
type Locator struct {
	// Host is the lowercased host the URL was found on.
	Host   string
	Handle string
	ID     string
	// OriginalURL is the substring exactly as it appeared in the input.
	OriginalURL string
	// CanonicalURL is always https://<canonical-host>/<handle>/status/<id>.
	CanonicalURL string
}

// MediaKind distinguishes photos from videos.
type MediaKind string

const (
	Photo MediaKind = "photo"
	Video MediaKind = "video"
)

// MediaItem is a remote media reference attached to a post.
type MediaItem struct {
	URL  string
	Kind MediaKind
}

// PollStatus classifies the state line of a poll.
type PollStatus string

const (
	PollActive        PollStatus = "active"
	PollEnded         PollStatus = "ended"
	PollTimeRemaining PollStatus = "time-remaining"
)

// PollOption is one choice of a poll. Percent and Votes are optional.
type PollOption struct {
	Text    string
	Percent *float64
	Votes   *int64
}

// Poll is an attached poll.
type Poll struct {
	Question   string
	Options    []PollOption
	TotalVotes *int64
	Status     PollStatus
	// TimeLeft is the human readable remainder, e.g. "2 days left".
	TimeLeft string
}

// Post is the central normalized entity.
type Post struct {
	DisplayName string
	Handle      string
	URL         string
	// CreatedAt is nil when the source did not expose a usable timestamp.
	CreatedAt *time.Time
	Text      string
	Media     []MediaItem
	Poll      *Poll
	// Quoted is populated at most one level deep.
	Quoted *Post

	Replies *int64
	Reposts *int64
	Likes   *int64
	Views   *int64

	SourceLanguage string
	TranslatedText string
}

// Complete reports whether both author and body were recovered.
func (p *Post) Complete() bool {
	return p != nil && p.DisplayName != "" && p.Text != ""
}

// Clone returns a copy that shares no slices or pointers with p.
func (p *Post) Clone() *Post {
	if p == nil {
		return nil
	}
	c := *p
	if p.CreatedAt != nil {
		t := *p.CreatedAt
		c.CreatedAt = &t
	}
	c.Media = append([]MediaItem(nil), p.Media...)
	if p.Poll != nil {
		poll := *p.Poll
		poll.Options = append([]PollOption(nil), p.Poll.Options...)
		c.Poll = &poll
	}
	c.Quoted = p.Quoted.Clone()
	return &c
}

// FillMissing copies every field of src that is empty in p.
func (p *Post) FillMissing(src *Post) {
	if p == nil || src == nil {
		return
	}
	if p.DisplayName == "" {
		p.DisplayName = src.DisplayName
	}
	if p.Handle == "" {
		p.Handle = src.Handle
	}
	if p.URL == "" {
		p.URL = src.URL
	}
	if p.CreatedAt == nil {
		p.CreatedAt = src.CreatedAt
	}
	if p.Text == "" {
		p.Text = src.Text
	}
	if len(p.Media) == 0 {
		p.Media = src.Media
	}
	if p.Poll == nil {
		p.Poll = src.Poll
	}
	if p.Quoted == nil {
		p.Quoted = src.Quoted
	}
	if p.Replies == nil {
		p.Replies = src.Replies
	}
	if p.Reposts == nil {
		p.Reposts = src.Reposts
	}
	if p.Likes == nil {
		p.Likes = src.Likes
	}
	if p.Views == nil {
		p.Views = src.Views
	}
	if p.SourceLanguage == "" {
		p.SourceLanguage = src.SourceLanguage
	}
	if p.TranslatedText == "" {
		p.TranslatedText = src.TranslatedText
	}
}

// Int64 returns a pointer to v.
func Int64(v int64) *int64 { return &v }

// Float64 returns a pointer to v.
func Float64(v float64) *float64 { return &v }
