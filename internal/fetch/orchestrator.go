package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/xmirror/internal/post"
)

// SourceKind records which tier served a page.
type SourceKind string

const (
	SourceMirror SourceKind = "mirror"
	SourceProxy  SourceKind = "proxy"
	SourceOrigin SourceKind = "origin"
)

// SupportsLanguage reports whether the tier accepts a language path segment.
func (k SourceKind) SupportsLanguage() bool { return k == SourceMirror }

// Result is one successful page fetch.
type Result struct {
	EffectiveURL string
	Body         []byte
	ContentType  string
	Kind         SourceKind
}

// DefaultMirrors is the mirror list of the original deployment.
var DefaultMirrors = []string{
	"https://fxtwitter.com",
	"https://fixupx.com",
	"https://vxtwitter.com",
	"https://twitfix.com",
}

// DefaultProxyBase is a read-through proxy that renders any URL appended to it.
const DefaultProxyBase = "https://r.jina.ai/"

// DefaultOriginHosts are treated as "the mirror bounced back to the source".
var DefaultOriginHosts = []string{"x.com", "twitter.com"}

// DefaultUnavailablePhrases are matched case-insensitively in page bodies.
var DefaultUnavailablePhrases = []string{
	"tweet not found",
	"this tweet is unavailable",
	"this post is unavailable",
	"this tweet has been deleted",
	"this account doesn't exist",
	"age-restricted adult content",
}

// Getter is the part of Client used by the orchestrator.
type Getter interface {
	Get(ctx context.Context, rawURL string) (*Response, error)
}

// Orchestrator walks the fetch tiers: mirrors in order, then the proxy, then
// the origin.
type Orchestrator struct {
	Client  Getter
	Mirrors []string

	EnableProxy bool
	ProxyBase   string
	// AllowOrigin permits a last direct request to the canonical URL.
	AllowOrigin bool
	// OriginHosts defaults to DefaultOriginHosts.
	OriginHosts []string
	// UnavailablePhrases defaults to DefaultUnavailablePhrases.
	UnavailablePhrases []string
}

// MirrorURL builds <mirror>/<handle>/status/<id>[/<lang>].
func MirrorURL(base string, loc post.Locator, lang string) string {
	u := strings.TrimRight(base, "/") + "/" + loc.Handle + "/status/" + loc.ID
	if lang = strings.Trim(strings.TrimSpace(lang), "/"); lang != "" {
		u += "/" + url.PathEscape(lang)
	}
	return u
}

// ProxyURL embeds the origin URL in the proxy path.
func ProxyURL(base string, loc post.Locator) string {
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + loc.CanonicalURL
}

// Fetch returns the first usable rendering of loc. lang is only sent to
// mirrors. It returns *PostUnavailableError as soon as any tier confirms the
// post is gone and *FetchError when every tier failed.
func (o *Orchestrator) Fetch(ctx context.Context, loc post.Locator, lang string) (*Result, error) {
	return o.fetch(ctx, loc, lang, false)
}

// FetchMirrors is Fetch restricted to the mirror tier. It is used for
// language-tagged requests, which only mirrors understand.
func (o *Orchestrator) FetchMirrors(ctx context.Context, loc post.Locator, lang string) (*Result, error) {
	return o.fetch(ctx, loc, lang, true)
}

func (o *Orchestrator) fetch(ctx context.Context, loc post.Locator, lang string, mirrorsOnly bool) (*Result, error) {
	logger := log.With().Str("post", loc.CanonicalURL).Logger()
	var lastErr error
	tries := 0

	for _, base := range o.Mirrors {
		if strings.TrimSpace(base) == "" {
			continue
		}
		tries++
		u := MirrorURL(base, loc, lang)
		res, err := o.try(ctx, u, SourceMirror)
		if err == nil {
			return res, nil
		}
		if errors.Is(err, ErrPostUnavailable) || ctx.Err() != nil {
			return nil, err
		}
		logger.Debug().Err(err).Str("mirror", base).Msg("mirror failed")
		lastErr = err
	}

	if mirrorsOnly {
		return nil, &FetchError{URL: loc.CanonicalURL, Tries: tries, Last: lastErr}
	}

	if o.EnableProxy {
		base := o.ProxyBase
		if base == "" {
			base = DefaultProxyBase
		}
		tries++
		res, err := o.try(ctx, ProxyURL(base, loc), SourceProxy)
		if err == nil {
			return res, nil
		}
		if errors.Is(err, ErrPostUnavailable) || ctx.Err() != nil {
			return nil, err
		}
		logger.Debug().Err(err).Msg("proxy failed")
		lastErr = err
	}

	if o.AllowOrigin {
		tries++
		res, err := o.try(ctx, loc.CanonicalURL, SourceOrigin)
		if err == nil {
			return res, nil
		}
		if errors.Is(err, ErrPostUnavailable) || ctx.Err() != nil {
			return nil, err
		}
		logger.Debug().Err(err).Msg("origin failed")
		lastErr = err
	}

	return nil, &FetchError{URL: loc.CanonicalURL, Tries: tries, Last: lastErr}
}

func (o *Orchestrator) try(ctx context.Context, u string, kind SourceKind) (*Result, error) {
	if kind == SourceMirror {
		ctx = WithStopHosts(ctx, o.originHosts())
	}
	resp, err := o.Client.Get(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", kind, u, err)
	}
	if kind == SourceMirror && o.isOrigin(resp.URL) {
		return nil, fmt.Errorf("%s %s -> %s: %w", kind, u, resp.URL, ErrRedirectedToOrigin)
	}
	if phrase := o.unavailablePhrase(resp.Body); phrase != "" {
		return nil, &PostUnavailableError{URL: u, Source: string(kind), Phrase: phrase}
	}
	return &Result{EffectiveURL: resp.URL, Body: resp.Body, ContentType: resp.ContentType, Kind: kind}, nil
}

func (o *Orchestrator) originHosts() []string {
	if len(o.OriginHosts) == 0 {
		return DefaultOriginHosts
	}
	return o.OriginHosts
}

func (o *Orchestrator) isOrigin(finalURL string) bool {
	u, err := url.Parse(finalURL)
	if err != nil {
		return false
	}
	return matchHost(u, o.originHosts())
}

func (o *Orchestrator) unavailablePhrase(body []byte) string {
	phrases := o.UnavailablePhrases
	if len(phrases) == 0 {
		phrases = DefaultUnavailablePhrases
	}
	lower := strings.ToLower(string(body))
	for _, p := range phrases {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" && strings.Contains(lower, p) {
			return p
		}
	}
	return ""
}
