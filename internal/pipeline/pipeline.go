// Package pipeline runs every post link of an incoming message through
// fetch, extraction, translation, rendering and media download, and hands
// the results to a transport in the order the links appeared.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/hyperifyio/xmirror/internal/extract"
	"github.com/hyperifyio/xmirror/internal/fetch"
	"github.com/hyperifyio/xmirror/internal/media"
	"github.com/hyperifyio/xmirror/internal/normalize"
	"github.com/hyperifyio/xmirror/internal/post"
	"github.com/hyperifyio/xmirror/internal/render"
)

var (
	// ErrRateLimited is returned when the user or chat sent a request too recently.
	ErrRateLimited = errors.New("rate limited")
	// ErrNotAllowed is returned for users outside the configured allow list.
	ErrNotAllowed = errors.New("user not allowed")
)

// Message is one incoming chat message.
type Message struct {
	UserID int64
	ChatID int64
	Text   string
}

// Delivery is everything the transport needs to post one card.
type Delivery struct {
	ChatID  int64
	Locator post.Locator
	// Parts are the rendered HTML text parts in order.
	Parts []string
	// Caption is set when the card fits under the media as a caption; the
	// transport then sends no separate text parts.
	Caption string
	// Media is the rendered media list; Files holds the downloaded subset
	// when a materializer is configured.
	Media []post.MediaItem
	Files []media.File
	// Truncated counts media items dropped by the media ceiling.
	Truncated int
}

// Sender is the chat transport. Notify text uses the same HTML subset as
// the rendered parts.
type Sender interface {
	Send(ctx context.Context, d Delivery) error
	Notify(ctx context.Context, chatID int64, text string) error
}

// Fetcher is satisfied by *fetch.Orchestrator.
type Fetcher interface {
	Fetch(ctx context.Context, loc post.Locator, lang string) (*fetch.Result, error)
}

// Extractor is satisfied by *extract.Extractor.
type Extractor interface {
	Extract(ctx context.Context, res *fetch.Result, loc post.Locator) extract.Result
}

// Augmenter is satisfied by *translate.Augmenter.
type Augmenter interface {
	Augment(ctx context.Context, p *post.Post, loc post.Locator, lang string, kind fetch.SourceKind) *post.Post
}

// Materializer is satisfied by *media.Materializer.
type Materializer interface {
	Materialize(ctx context.Context, items []post.MediaItem) (*media.Batch, error)
}

// Preferences is satisfied by *settings.Store.
type Preferences interface {
	TranslationPreference(ctx context.Context, user int64) (string, error)
}

// Limiter is satisfied by *ratelimit.Limiter.
type Limiter interface {
	Allow(user, chat int64) bool
	RetryAfter(user, chat int64) time.Duration
}

// RateLimitError is returned for a rejected message. It matches
// ErrRateLimited.
type RateLimitError struct {
	Wait time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry in %s", e.Wait.Round(time.Second))
}

func (e *RateLimitError) Is(target error) bool { return target == ErrRateLimited }

// Status summarizes what happened to one link.
type Status string

const (
	StatusDelivered   Status = "delivered"
	StatusUnavailable Status = "unavailable"
	StatusFetchFailed Status = "fetch_failed"
	StatusSendFailed  Status = "send_failed"
	StatusCanceled    Status = "canceled"
)

// Outcome reports the result for one link.
type Outcome struct {
	Locator  post.Locator
	Status   Status
	Source   fetch.SourceKind
	Strategy string
	Parts    int
	Media    int
	Err      error
}

// Pipeline holds the collaborators shared by all messages. Settings,
// Limiter, Augmenter and Materializer are optional.
type Pipeline struct {
	Normalizer   *normalize.Normalizer
	Fetcher      Fetcher
	Extractor    Extractor
	Augmenter    Augmenter
	Renderer     *render.Renderer
	Materializer Materializer
	Settings     Preferences
	Limiter      Limiter
	Sender       Sender

	// DefaultLanguage is used when Settings is nil or fails.
	DefaultLanguage    string
	IncludeQuotedMedia bool
	// BotHandle is stripped from the user comment.
	BotHandle string
	// AllowedUsers restricts who may use the pipeline; empty allows everyone.
	AllowedUsers map[int64]struct{}
	// Concurrency bounds links prepared in parallel; defaults to 4.
	Concurrency int
	// Notices defaults to EnglishNotices.
	Notices *Notices
}

type prepared struct {
	outcome  Outcome
	delivery *Delivery
	batch    *media.Batch
	// notice is sent instead of a delivery.
	notice string
	// mediaLost is set when the post had media and none could be downloaded.
	mediaLost bool
	ready     chan struct{}
}

func (p *Pipeline) notices() Notices {
	if p.Notices != nil {
		return *p.Notices
	}
	return EnglishNotices
}

// Handle processes every supported link in msg. Links are prepared
// concurrently and delivered strictly in order of appearance. All temp files
// are removed before Handle returns. The error is non-nil only for a
// rejected message or a canceled context; per-link failures are reported in
// the outcomes.
func (p *Pipeline) Handle(ctx context.Context, msg Message) ([]Outcome, error) {
	if len(p.AllowedUsers) > 0 {
		if _, ok := p.AllowedUsers[msg.UserID]; !ok {
			log.Warn().Int64("user", msg.UserID).Msg("user not in allow list")
			return nil, ErrNotAllowed
		}
	}
	if p.Limiter != nil && !p.Limiter.Allow(msg.UserID, msg.ChatID) {
		wait := p.Limiter.RetryAfter(msg.UserID, msg.ChatID)
		log.Info().Int64("user", msg.UserID).Int64("chat", msg.ChatID).Dur("retry_after", wait).Msg("rate limited")
		return nil, &RateLimitError{Wait: wait}
	}
	locs := p.Normalizer.Normalize(msg.Text)
	if len(locs) == 0 {
		return nil, nil
	}
	comment := normalize.Comment(msg.Text, locs, p.BotHandle)
	lang := p.language(ctx, msg.UserID)

	slots := make([]*prepared, len(locs))
	for i := range slots {
		slots[i] = &prepared{ready: make(chan struct{})}
	}
	// Batches of undelivered links are removed here; delivered ones are
	// removed right after sending.
	defer func() {
		for _, s := range slots {
			_ = s.batch.Close()
		}
	}()

	var g errgroup.Group
	limit := p.Concurrency
	if limit <= 0 {
		limit = 4
	}
	g.SetLimit(limit)
	go func() {
		for i, loc := range locs {
			loc := loc
			opts := render.Options{IncludeQuotedMedia: p.IncludeQuotedMedia}
			if i == 0 {
				opts.Comment = comment
			}
			s := slots[i]
			g.Go(func() error {
				defer close(s.ready)
				p.prepare(ctx, s, msg.ChatID, loc, lang, opts)
				return nil
			})
		}
	}()

	outcomes := make([]Outcome, 0, len(locs))
	var ctxErr error
	for _, s := range slots {
		select {
		case <-s.ready:
		case <-ctx.Done():
			ctxErr = ctx.Err()
		}
		if ctxErr != nil {
			break
		}
		p.deliver(ctx, msg.ChatID, s)
		outcomes = append(outcomes, s.outcome)
	}
	// Wait for stragglers so their batches exist before the deferred cleanup.
	for _, s := range slots {
		<-s.ready
	}
	if ctxErr != nil {
		for _, s := range slots[len(outcomes):] {
			s.outcome.Status, s.outcome.Err = StatusCanceled, ctxErr
			outcomes = append(outcomes, s.outcome)
		}
		return outcomes, ctxErr
	}
	delivered := 0
	for _, o := range outcomes {
		if o.Status == StatusDelivered {
			delivered++
		}
	}
	log.Info().Int("delivered", delivered).Int("links", len(locs)).Msg("message handled")
	return outcomes, nil
}

func (p *Pipeline) language(ctx context.Context, user int64) string {
	if p.Settings == nil {
		return p.DefaultLanguage
	}
	lang, err := p.Settings.TranslationPreference(ctx, user)
	if err != nil {
		log.Warn().Err(err).Int64("user", user).Msg("translation preference unavailable")
		return p.DefaultLanguage
	}
	return lang
}

func (p *Pipeline) prepare(ctx context.Context, s *prepared, chatID int64, loc post.Locator, lang string, opts render.Options) {
	n := p.notices()
	s.outcome.Locator = loc
	logger := log.With().Str("post", loc.CanonicalURL).Logger()

	res, err := p.Fetcher.Fetch(ctx, loc, "")
	if err != nil {
		s.outcome.Err = err
		switch {
		case ctx.Err() != nil:
			s.outcome.Status = StatusCanceled
		case errors.Is(err, fetch.ErrPostUnavailable):
			s.outcome.Status = StatusUnavailable
			s.notice = fmt.Sprintf(n.Unavailable, html.EscapeString(loc.OriginalURL))
		default:
			s.outcome.Status = StatusFetchFailed
			s.notice = fmt.Sprintf(n.FetchFailed, html.EscapeString(loc.OriginalURL))
		}
		logger.Warn().Err(err).Str("status", string(s.outcome.Status)).Msg("fetch failed")
		return
	}
	s.outcome.Source = res.Kind

	ex := p.Extractor.Extract(ctx, res, loc)
	s.outcome.Strategy = ex.Strategy
	pst := ex.Post
	if p.Augmenter != nil {
		pst = p.Augmenter.Augment(ctx, pst, loc, lang, res.Kind)
	}
	opts.IncludeTranslation = pst.TranslatedText != ""
	out := p.Renderer.Render(pst, opts)

	d := &Delivery{ChatID: chatID, Locator: loc, Parts: out.Parts, Media: out.Media, Truncated: out.Truncated}
	if len(out.Media) > 0 && p.Materializer != nil {
		batch, err := p.Materializer.Materialize(ctx, out.Media)
		if err != nil {
			s.outcome.Status, s.outcome.Err = StatusCanceled, err
			return
		}
		s.batch = batch
		d.Files = batch.Files
		s.mediaLost = len(batch.Files) == 0
	}
	if len(d.Files) > 0 {
		if c, ok := p.Renderer.Caption(out.Parts); ok {
			d.Caption = c
		}
	}
	s.delivery = d
	s.outcome.Parts, s.outcome.Media = len(d.Parts), len(d.Files)
	logger.Debug().
		Str("source", string(res.Kind)).
		Str("strategy", ex.Strategy).
		Int("parts", len(d.Parts)).
		Int("media", len(d.Files)).
		Msg("post prepared")
}

func (p *Pipeline) deliver(ctx context.Context, chatID int64, s *prepared) {
	defer func() {
		if err := s.batch.Close(); err != nil {
			log.Warn().Err(err).Msg("temp file cleanup")
		}
	}()
	if s.delivery == nil {
		if s.notice != "" {
			p.notify(ctx, chatID, s.notice)
		}
		return
	}
	err := p.Sender.Send(ctx, *s.delivery)
	if err == nil {
		s.outcome.Status = StatusDelivered
		if s.mediaLost {
			p.notify(ctx, chatID, p.notices().MediaFailed)
		}
		return
	}
	s.outcome.Status, s.outcome.Err = StatusSendFailed, err
	log.Error().Err(err).Str("post", s.outcome.Locator.CanonicalURL).Msg("send failed")
	if ctx.Err() != nil {
		return
	}
	card := strings.Join(s.delivery.Parts, render.Separator)
	msg := fmt.Sprintf(p.notices().SendFailed, html.EscapeString(shorten(err.Error(), 100)), card)
	for _, part := range render.Split([]string{msg}, p.textLimit()) {
		p.notify(ctx, chatID, part)
	}
}

func (p *Pipeline) textLimit() int {
	if p.Renderer != nil && p.Renderer.TextLimit > 0 {
		return p.Renderer.TextLimit
	}
	return render.DefaultTextLimit
}

func (p *Pipeline) notify(ctx context.Context, chatID int64, text string) {
	if err := p.Sender.Notify(ctx, chatID, text); err != nil {
		log.Error().Err(err).Int64("chat", chatID).Msg("notify failed")
	}
}

func shorten(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
