// Package render turns a post into Telegram-style HTML text parts and a
// bounded media list.
package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/hyperifyio/xmirror/internal/post"
)

// Platform ceilings.
const (
	DefaultTextLimit    = 4096
	DefaultCaptionLimit = 1024
	DefaultMediaLimit   = 10
)

// Placeholder stands in for unknown values.
const Placeholder = "—"

const timeLayout = "02.01.2006, 15:04"

// Labels holds the fixed phrases of a card.
type Labels struct {
	TranslatedFrom string // followed by the language name
	Translated     string // used when the source language is unknown
	Original       string
	Quote          string
	Votes          string
	PollEnded      string
	PollActive     string
	OpenPost       string
}

// EnglishLabels is the default phrase set.
var EnglishLabels = Labels{
	TranslatedFrom: "Translated from",
	Translated:     "Translated",
	Original:       "Original:",
	Quote:          "Quote from",
	Votes:          "votes",
	PollEnded:      "Final results",
	PollActive:     "Voting in progress",
	OpenPost:       "Open original post",
}

// RussianLabels matches the wording of the original bot.
var RussianLabels = Labels{
	TranslatedFrom: "Переведено с",
	Translated:     "Перевод",
	Original:       "Оригинал:",
	Quote:          "Цитата",
	Votes:          "голосов",
	PollEnded:      "завершён",
	PollActive:     "идёт голосование",
	OpenPost:       "открыть пост",
}

// Options select optional content per call.
type Options struct {
	IncludeTranslation bool
	IncludeQuotedMedia bool
	// Comment is user text sent alongside the link, shown above the card.
	Comment string
}

// Rendering is the output of one Render call.
type Rendering struct {
	Parts []string
	Media []post.MediaItem
	// Truncated is the number of media items dropped by the media ceiling.
	Truncated int
}

// Renderer is stateless apart from its configuration; zero values fall
// back to the defaults.
type Renderer struct {
	TextLimit    int
	CaptionLimit int
	MediaLimit   int
	BarLength    int
	Labels       *Labels
	// Location is used for timestamps; UTC when nil.
	Location *time.Location
}

// New returns a renderer with the platform defaults.
func New() *Renderer {
	return &Renderer{
		TextLimit:    DefaultTextLimit,
		CaptionLimit: DefaultCaptionLimit,
		MediaLimit:   DefaultMediaLimit,
		BarLength:    DefaultBarLength,
	}
}

func (r *Renderer) labels() Labels {
	if r.Labels != nil {
		return *r.Labels
	}
	return EnglishLabels
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// Render is deterministic for a given post and options.
func (r *Renderer) Render(p *post.Post, opts Options) Rendering {
	if p == nil {
		p = &post.Post{}
	}
	blocks := r.Blocks(p, opts)
	out := Rendering{Parts: Split(blocks, orDefault(r.TextLimit, DefaultTextLimit))}

	media := append([]post.MediaItem(nil), p.Media...)
	if opts.IncludeQuotedMedia && p.Quoted != nil {
		media = append(media, p.Quoted.Media...)
	}
	if limit := orDefault(r.MediaLimit, DefaultMediaLimit); len(media) > limit {
		out.Truncated = len(media) - limit
		media = media[:limit]
	}
	out.Media = media
	return out
}

// Caption returns the single part when it fits the caption ceiling.
func (r *Renderer) Caption(parts []string) (string, bool) {
	return Caption(parts, orDefault(r.CaptionLimit, DefaultCaptionLimit))
}

// Caption returns parts[0] when it is the only part and fits limit.
func Caption(parts []string, limit int) (string, bool) {
	if len(parts) != 1 || Length(parts[0]) > limit {
		return "", false
	}
	return parts[0], true
}

// Blocks returns the card blocks in display order before splitting.
func (r *Renderer) Blocks(p *post.Post, opts Options) []string {
	l := r.labels()
	var blocks []string
	if c := strings.TrimSpace(opts.Comment); c != "" {
		blocks = append(blocks, "<i>"+escape(c)+"</i>")
	}
	blocks = append(blocks, r.header(p))

	if opts.IncludeTranslation && p.TranslatedText != "" {
		note := l.Translated
		if p.SourceLanguage != "" {
			note = l.TranslatedFrom + " " + p.SourceLanguage
		}
		blocks = append(blocks, "<i>"+escape(note)+"</i>\n"+escape(p.TranslatedText))
		if p.Text != "" && strings.TrimSpace(p.Text) != strings.TrimSpace(p.TranslatedText) {
			blocks = append(blocks, "<i>"+escape(l.Original)+"</i>\n"+escape(p.Text))
		}
	} else if p.Text != "" {
		blocks = append(blocks, escape(p.Text))
	}

	if p.Quoted != nil {
		blocks = append(blocks, r.quote(p.Quoted))
	}
	if p.Poll != nil && len(p.Poll.Options) > 0 {
		blocks = append(blocks, r.poll(p.Poll))
	}
	blocks = append(blocks, stats(p))
	if p.URL != "" {
		blocks = append(blocks, "<i>"+link(p.URL, l.OpenPost)+"</i>")
	}
	return blocks
}

func (r *Renderer) timestamp(t *time.Time) string {
	if t == nil {
		return Placeholder
	}
	loc := r.Location
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(timeLayout)
}

func name(p *post.Post) string {
	switch {
	case p.DisplayName != "":
		return p.DisplayName
	case p.Handle != "":
		return p.Handle
	}
	return Placeholder
}

func handle(p *post.Post) string {
	if p.Handle == "" {
		return "@" + Placeholder
	}
	return "@" + p.Handle
}

func (r *Renderer) header(p *post.Post) string {
	return fmt.Sprintf("<b>%s</b> (%s) — %s", escape(name(p)), link(p.URL, handle(p)), r.timestamp(p.CreatedAt))
}

func (r *Renderer) quote(q *post.Post) string {
	l := r.labels()
	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s %s</b> (%s)", escape(l.Quote), escape(name(q)), link(q.URL, handle(q)))
	if q.CreatedAt != nil {
		b.WriteString(" — " + r.timestamp(q.CreatedAt))
	}
	b.WriteString(":")
	text := q.Text
	if text == "" {
		text = q.TranslatedText
	}
	if text != "" {
		for _, line := range strings.Split(text, "\n") {
			b.WriteString("\n│ " + escape(line))
		}
	}
	return b.String()
}

func (r *Renderer) poll(p *post.Poll) string {
	l := r.labels()
	var lines []string
	if q := strings.TrimSpace(p.Question); q != "" {
		lines = append(lines, "<b>"+escape(q)+"</b>")
	}
	var sum int64
	haveVotes := false
	for _, o := range p.Options {
		line := escape(o.Text) + "  " + Placeholder
		if o.Percent != nil {
			line = fmt.Sprintf("%s  %.0f%%  %s", escape(o.Text), *o.Percent, Bar(*o.Percent, orDefault(r.BarLength, DefaultBarLength)))
		}
		if o.Votes != nil {
			line += "  (" + Abbreviate(*o.Votes) + ")"
			sum += *o.Votes
			haveVotes = true
		}
		lines = append(lines, "<code>"+line+"</code>")
	}

	var status string
	switch p.Status {
	case post.PollEnded:
		status = l.PollEnded
	case post.PollTimeRemaining:
		status = p.TimeLeft
	}
	if status == "" {
		status = l.PollActive
	}
	summary := escape(status)
	switch {
	case p.TotalVotes != nil:
		summary = Abbreviate(*p.TotalVotes) + " " + escape(l.Votes) + " · " + summary
	case haveVotes:
		summary = Abbreviate(sum) + " " + escape(l.Votes) + " · " + summary
	}
	lines = append(lines, summary)
	return strings.Join(lines, "\n")
}

func counter(icon string, v *int64) string {
	if v == nil {
		return icon + " " + Placeholder
	}
	return icon + " " + Abbreviate(*v)
}

func stats(p *post.Post) string {
	return strings.Join([]string{
		counter("💬", p.Replies),
		counter("🔁", p.Reposts),
		counter("❤️", p.Likes),
		counter("👁", p.Views),
	}, "  ")
}
