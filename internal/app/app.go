// Package app wires configuration into the mirroring pipeline and its
// long-lived collaborators.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/xmirror/internal/extract"
	"github.com/hyperifyio/xmirror/internal/fetch"
	"github.com/hyperifyio/xmirror/internal/media"
	"github.com/hyperifyio/xmirror/internal/normalize"
	"github.com/hyperifyio/xmirror/internal/pipeline"
	"github.com/hyperifyio/xmirror/internal/ratelimit"
	"github.com/hyperifyio/xmirror/internal/render"
	"github.com/hyperifyio/xmirror/internal/settings"
	"github.com/hyperifyio/xmirror/internal/translate"
)

// App owns the collaborators shared by every message: HTTP client,
// settings store, rate limiter and temp directory.
type App struct {
	cfg          Config
	client       *fetch.Client
	normalizer   *normalize.Normalizer
	orchestrator *fetch.Orchestrator
	extractor    *extract.Extractor
	augmenter    *translate.Augmenter
	renderer     *render.Renderer
	tmp          *media.TempDir
	materializer *media.Materializer
	settings     *settings.Store
	limiter      *ratelimit.Limiter
	notices      pipeline.Notices
}

// New validates cfg, opens the settings store and purges stale temp files.
func New(ctx context.Context, cfg Config) (*App, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	a := &App{cfg: cfg, client: newFetchClient(cfg)}

	a.normalizer = normalize.New(normalize.CanonicalHost, cfg.Mirrors, cfg.ExtraHosts...)
	a.orchestrator = &fetch.Orchestrator{
		Client:             a.client,
		Mirrors:            cfg.Mirrors,
		EnableProxy:        cfg.EnableProxy,
		ProxyBase:          cfg.ProxyBase,
		AllowOrigin:        cfg.AllowOrigin,
		UnavailablePhrases: cfg.UnavailablePhrases,
	}
	var synd *extract.Syndication
	if cfg.EnableSyndication {
		synd = &extract.Syndication{Client: a.client, BaseURL: cfg.SyndicationBase}
		if lang, ok := translate.ParseLanguage(cfg.DefaultTranslateLang); ok && lang != translate.Off {
			synd.Lang = lang
		}
	}
	a.extractor = extract.New(synd)
	a.augmenter = &translate.Augmenter{Fetcher: a.orchestrator, Extractor: a.extractor, Timeout: 2 * cfg.HTTPTimeout}

	a.renderer = render.New()
	a.notices = pipeline.EnglishNotices
	if strings.EqualFold(cfg.Labels, "ru") {
		a.renderer.Labels = &render.RussianLabels
		a.notices = pipeline.RussianNotices
	}
	if cfg.Timezone != "" {
		loc, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("timezone: %w", err)
		}
		a.renderer.Location = loc
	}

	a.tmp = &media.TempDir{Dir: cfg.TmpDir, StrictPerms: cfg.StrictPerms}
	a.materializer = &media.Materializer{Client: a.client, Dir: a.tmp, MaxBytes: cfg.MaxMediaBytes()}
	if cfg.CompressMedia {
		a.materializer.Compressor = &media.SizeCeiling{Dir: a.tmp, FFmpeg: cfg.FFmpegPath}
	}
	if n, err := a.tmp.PurgeOlderThan(cfg.TmpMaxAge); err != nil {
		log.Warn().Err(err).Msg("temp purge failed")
	} else if n > 0 {
		log.Info().Int("files", n).Msg("stale temp files removed")
	}

	store, err := settings.Open(cfg.SettingsPath)
	if err != nil {
		return nil, err
	}
	if err := store.Ping(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	store.DefaultLanguage = cfg.DefaultTranslateLang
	a.settings = store
	a.limiter = ratelimit.New(cfg.UserWindow, cfg.ChatWindow)

	log.Debug().
		Strs("mirrors", cfg.Mirrors).
		Bool("proxy", cfg.EnableProxy).
		Bool("origin", cfg.AllowOrigin).
		Bool("syndication", cfg.EnableSyndication).
		Str("settings", cfg.SettingsPath).
		Msg("app initialized")
	return a, nil
}

// Close releases the settings store.
func (a *App) Close() error {
	if a.settings == nil {
		return nil
	}
	return a.settings.Close()
}

// Settings exposes the per-user store.
func (a *App) Settings() *settings.Store { return a.settings }

// Renderer exposes the configured renderer.
func (a *App) Renderer() *render.Renderer { return a.renderer }

// PipelineOptions tune a pipeline built by Pipeline.
type PipelineOptions struct {
	// SkipRateLimit disables the limiter, e.g. for one-shot CLI use.
	SkipRateLimit bool
	// SkipMedia leaves media as URLs instead of downloading them.
	SkipMedia bool
}

// Pipeline builds a pipeline that delivers through sender.
func (a *App) Pipeline(sender pipeline.Sender, opts PipelineOptions) *pipeline.Pipeline {
	p := &pipeline.Pipeline{
		Normalizer:         a.normalizer,
		Fetcher:            a.orchestrator,
		Extractor:          a.extractor,
		Augmenter:          a.augmenter,
		Renderer:           a.renderer,
		Materializer:       a.materializer,
		Settings:           a.settings,
		Limiter:            a.limiter,
		Sender:             sender,
		DefaultLanguage:    a.cfg.DefaultTranslateLang,
		IncludeQuotedMedia: a.cfg.IncludeQuotedMedia,
		BotHandle:          a.cfg.BotHandle,
		Notices:            &a.notices,
	}
	if len(a.cfg.AllowedUsers) > 0 {
		p.AllowedUsers = make(map[int64]struct{}, len(a.cfg.AllowedUsers))
		for _, id := range a.cfg.AllowedUsers {
			p.AllowedUsers[id] = struct{}{}
		}
	}
	if opts.SkipRateLimit {
		p.Limiter = nil
	}
	if opts.SkipMedia {
		p.Materializer = nil
	}
	return p
}

// Maintain runs the periodic cleanup until ctx is done: temp files older
// than TmpMaxAge and rate-limit entries idle for an hour are dropped. The
// first pass runs after a minute, or after interval when that is shorter.
func (a *App) Maintain(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	timer := time.NewTimer(min(interval, time.Minute))
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		a.cleanup()
		timer.Reset(interval)
	}
}

func (a *App) cleanup() {
	n, err := a.tmp.PurgeOlderThan(a.cfg.TmpMaxAge)
	if err != nil {
		log.Warn().Err(err).Msg("temp purge failed")
	}
	pruned := a.limiter.Prune(time.Hour)
	log.Info().Int("temp_files", n).Int("limiter_entries", pruned).Msg("periodic cleanup")
}
