package app

import (
	"time"

	"github.com/hyperifyio/xmirror/internal/extract"
	"github.com/hyperifyio/xmirror/internal/fetch"
	"github.com/hyperifyio/xmirror/internal/translate"
)

// Config holds runtime configuration for the application.
type Config struct {
	// Sources
	Mirrors            []string
	EnableProxy        bool
	ProxyBase          string
	AllowOrigin        bool
	EnableSyndication  bool
	SyndicationBase    string
	ExtraHosts         []string
	UnavailablePhrases []string

	// HTTP
	HTTPTimeout   time.Duration
	RetryAttempts int
	RetryBaseWait time.Duration
	RetryMaxWait  time.Duration
	UserAgent     string

	// Media
	MaxMediaMB         int
	CompressMedia      bool
	IncludeQuotedMedia bool
	FFmpegPath         string
	TmpDir             string
	TmpMaxAge          time.Duration
	StrictPerms        bool

	// Users and rendering
	DefaultTranslateLang string
	SettingsPath         string
	AllowedUsers         []int64
	BotHandle            string
	Labels               string
	Timezone             string
	UserWindow           time.Duration
	ChatWindow           time.Duration

	// Behavior
	LogLevel string
	Verbose  bool
}

// Defaults used by DefaultConfig.
const (
	defaultSettingsPath = "data/settings.db"
	defaultMaxMediaMB   = 20
	defaultHTTPTimeout  = 15 * time.Second
	defaultTmpMaxAge    = time.Hour
)

// DefaultConfig returns the configuration of a stock deployment.
func DefaultConfig() Config {
	rp := fetch.DefaultRetryPolicy()
	return Config{
		Mirrors:              append([]string(nil), fetch.DefaultMirrors...),
		EnableProxy:          true,
		ProxyBase:            fetch.DefaultProxyBase,
		EnableSyndication:    true,
		SyndicationBase:      extract.DefaultSyndicationBase,
		HTTPTimeout:          defaultHTTPTimeout,
		RetryAttempts:        rp.MaxAttempts,
		RetryBaseWait:        rp.BaseWait,
		RetryMaxWait:         rp.MaxWait,
		UserAgent:            fetch.DefaultUserAgent,
		MaxMediaMB:           defaultMaxMediaMB,
		TmpMaxAge:            defaultTmpMaxAge,
		DefaultTranslateLang: translate.Off,
		SettingsPath:         defaultSettingsPath,
		Labels:               "en",
		Timezone:             "UTC",
		LogLevel:             "info",
	}
}

// MaxMediaBytes converts MaxMediaMB to bytes; zero when compression is off.
func (c Config) MaxMediaBytes() int64 {
	if !c.CompressMedia || c.MaxMediaMB <= 0 {
		return 0
	}
	return int64(c.MaxMediaMB) << 20
}

// RetryPolicy builds the shared fetch policy from the config.
func (c Config) RetryPolicy() fetch.RetryPolicy {
	rp := fetch.DefaultRetryPolicy()
	if c.RetryAttempts > 0 {
		rp.MaxAttempts = c.RetryAttempts
	}
	if c.RetryBaseWait > 0 {
		rp.BaseWait = c.RetryBaseWait
	}
	if c.RetryMaxWait > 0 {
		rp.MaxWait = c.RetryMaxWait
	}
	return rp
}
