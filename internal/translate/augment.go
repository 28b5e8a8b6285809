package translate

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/xmirror/internal/extract"
	"github.com/hyperifyio/xmirror/internal/fetch"
	"github.com/hyperifyio/xmirror/internal/post"
)

// Fetcher is satisfied by *fetch.Orchestrator. Only mirrors accept a
// language segment, so the lookup never leaves the mirror tier.
type Fetcher interface {
	FetchMirrors(ctx context.Context, loc post.Locator, lang string) (*fetch.Result, error)
}

// Extractor is satisfied by *extract.Extractor.
type Extractor interface {
	Extract(ctx context.Context, res *fetch.Result, loc post.Locator) extract.Result
}

// Augmenter adds a machine translation to posts served by a mirror.
type Augmenter struct {
	Fetcher   Fetcher
	Extractor Extractor
	// Timeout bounds the extra fetch; zero means no additional limit.
	Timeout time.Duration
}

// Augment returns p with TranslatedText filled when the mirror delivers a
// different text for lang. It does nothing for non-mirror sources, an empty
// or "off" language, or a post that already carries a translation. Failures
// are logged and the post is returned unchanged. p itself is never modified.
func (a *Augmenter) Augment(ctx context.Context, p *post.Post, loc post.Locator, lang string, kind fetch.SourceKind) *post.Post {
	if p == nil {
		return nil
	}
	out := p.Clone()
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "" || lang == Off || !kind.SupportsLanguage() || p.TranslatedText != "" {
		return out
	}
	if a.Fetcher == nil || a.Extractor == nil {
		return out
	}
	if a.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.Timeout)
		defer cancel()
	}

	logger := log.With().Str("post", loc.CanonicalURL).Str("lang", lang).Logger()
	res, err := a.Fetcher.FetchMirrors(ctx, loc, lang)
	if err != nil {
		logger.Debug().Err(err).Msg("translation unavailable")
		return out
	}
	if res.Kind != fetch.SourceMirror {
		logger.Debug().Str("source", string(res.Kind)).Msg("translation source is not a mirror")
		return out
	}
	translated := a.Extractor.Extract(ctx, res, loc).Post
	if translated == nil {
		return out
	}
	text := translated.TranslatedText
	if text == "" {
		text = translated.Text
	}
	text = strings.TrimSpace(text)
	if text == "" || text == strings.TrimSpace(p.Text) {
		logger.Debug().Msg("translation identical to original")
		return out
	}
	out.TranslatedText = text
	if out.SourceLanguage == "" {
		out.SourceLanguage = translated.SourceLanguage
	}
	logger.Info().Str("source_lang", out.SourceLanguage).Msg("translation added")
	return out
}
