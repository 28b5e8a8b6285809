package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"

	"github.com/hyperifyio/xmirror/internal/translate"
)

// FileConfig represents the single-file configuration schema.
type FileConfig struct {
	Mirrors []string `yaml:"mirrors" json:"mirrors"`

	Proxy struct {
		Enable *bool  `yaml:"enable" json:"enable"`
		Base   string `yaml:"base" json:"base"`
	} `yaml:"proxy" json:"proxy"`

	Origin struct {
		Allow *bool `yaml:"allow" json:"allow"`
	} `yaml:"origin" json:"origin"`

	Syndication struct {
		Enable *bool  `yaml:"enable" json:"enable"`
		Base   string `yaml:"base" json:"base"`
	} `yaml:"syndication" json:"syndication"`

	Hosts              []string `yaml:"hosts" json:"hosts"`
	UnavailablePhrases []string `yaml:"unavailablePhrases" json:"unavailablePhrases"`

	HTTP struct {
		Timeout   time.Duration `yaml:"timeout" json:"timeout"`
		Retries   int           `yaml:"retries" json:"retries"`
		BaseWait  time.Duration `yaml:"baseWait" json:"baseWait"`
		MaxWait   time.Duration `yaml:"maxWait" json:"maxWait"`
		UserAgent string        `yaml:"userAgent" json:"userAgent"`
	} `yaml:"http" json:"http"`

	Media struct {
		MaxMB         int           `yaml:"maxMB" json:"maxMB"`
		Compress      *bool         `yaml:"compress" json:"compress"`
		IncludeQuoted *bool         `yaml:"includeQuoted" json:"includeQuoted"`
		FFmpeg        string        `yaml:"ffmpeg" json:"ffmpeg"`
		TmpDir        string        `yaml:"tmpDir" json:"tmpDir"`
		MaxAge        time.Duration `yaml:"maxAge" json:"maxAge"`
		StrictPerms   bool          `yaml:"strictPerms" json:"strictPerms"`
	} `yaml:"media" json:"media"`

	Translate struct {
		Default string `yaml:"default" json:"default"`
	} `yaml:"translate" json:"translate"`

	Settings struct {
		Path string `yaml:"path" json:"path"`
	} `yaml:"settings" json:"settings"`

	Users struct {
		Allow []int64 `yaml:"allow" json:"allow"`
	} `yaml:"users" json:"users"`

	RateLimit struct {
		User time.Duration `yaml:"user" json:"user"`
		Chat time.Duration `yaml:"chat" json:"chat"`
	} `yaml:"rateLimit" json:"rateLimit"`

	Bot struct {
		Handle string `yaml:"handle" json:"handle"`
	} `yaml:"bot" json:"bot"`

	Render struct {
		Labels   string `yaml:"labels" json:"labels"`
		Timezone string `yaml:"timezone" json:"timezone"`
	} `yaml:"render" json:"render"`

	Log struct {
		Level   string `yaml:"level" json:"level"`
		Verbose bool   `yaml:"verbose" json:"verbose"`
	} `yaml:"log" json:"log"`
}

// LoadConfigFile reads YAML or JSON into FileConfig. The extension selects
// the format; anything else is tried as YAML then JSON.
func LoadConfigFile(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse json: %w", err)
		}
	default:
		if err := yaml.Unmarshal(b, &fc); err != nil {
			if jerr := json.Unmarshal(b, &fc); jerr != nil {
				return fc, fmt.Errorf("parse config: %v (yaml) / %v (json)", err, jerr)
			}
		}
	}
	return fc, nil
}

// ApplyFileConfig overlays every value present in fc onto cfg. It runs on
// top of DefaultConfig and before env and flags.
func ApplyFileConfig(cfg *Config, fc FileConfig) {
	if cfg == nil {
		return
	}
	setStr := func(dst *string, v string) {
		if strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	setBool := func(dst *bool, v *bool) {
		if v != nil {
			*dst = *v
		}
	}
	setDur := func(dst *time.Duration, v time.Duration) {
		if v > 0 {
			*dst = v
		}
	}

	if len(fc.Mirrors) > 0 {
		cfg.Mirrors = append([]string(nil), fc.Mirrors...)
	}
	setBool(&cfg.EnableProxy, fc.Proxy.Enable)
	setStr(&cfg.ProxyBase, fc.Proxy.Base)
	setBool(&cfg.AllowOrigin, fc.Origin.Allow)
	setBool(&cfg.EnableSyndication, fc.Syndication.Enable)
	setStr(&cfg.SyndicationBase, fc.Syndication.Base)
	if len(fc.Hosts) > 0 {
		cfg.ExtraHosts = append([]string(nil), fc.Hosts...)
	}
	if len(fc.UnavailablePhrases) > 0 {
		cfg.UnavailablePhrases = append([]string(nil), fc.UnavailablePhrases...)
	}

	setDur(&cfg.HTTPTimeout, fc.HTTP.Timeout)
	if fc.HTTP.Retries > 0 {
		cfg.RetryAttempts = fc.HTTP.Retries
	}
	setDur(&cfg.RetryBaseWait, fc.HTTP.BaseWait)
	setDur(&cfg.RetryMaxWait, fc.HTTP.MaxWait)
	setStr(&cfg.UserAgent, fc.HTTP.UserAgent)

	if fc.Media.MaxMB > 0 {
		cfg.MaxMediaMB = fc.Media.MaxMB
	}
	setBool(&cfg.CompressMedia, fc.Media.Compress)
	setBool(&cfg.IncludeQuotedMedia, fc.Media.IncludeQuoted)
	setStr(&cfg.FFmpegPath, fc.Media.FFmpeg)
	setStr(&cfg.TmpDir, fc.Media.TmpDir)
	setDur(&cfg.TmpMaxAge, fc.Media.MaxAge)
	if fc.Media.StrictPerms {
		cfg.StrictPerms = true
	}

	setStr(&cfg.DefaultTranslateLang, fc.Translate.Default)
	setStr(&cfg.SettingsPath, fc.Settings.Path)
	if len(fc.Users.Allow) > 0 {
		cfg.AllowedUsers = append([]int64(nil), fc.Users.Allow...)
	}
	setDur(&cfg.UserWindow, fc.RateLimit.User)
	setDur(&cfg.ChatWindow, fc.RateLimit.Chat)
	setStr(&cfg.BotHandle, fc.Bot.Handle)
	setStr(&cfg.Labels, fc.Render.Labels)
	setStr(&cfg.Timezone, fc.Render.Timezone)
	setStr(&cfg.LogLevel, fc.Log.Level)
	if fc.Log.Verbose {
		cfg.Verbose = true
	}
}

// ValidateConfig checks the settings that would otherwise fail late.
func ValidateConfig(cfg Config) error {
	var errs []error
	usable := 0
	for _, m := range cfg.Mirrors {
		if strings.TrimSpace(m) == "" {
			continue
		}
		if err := checkBaseURL(m); err != nil {
			errs = append(errs, fmt.Errorf("config: mirror %q: %w", m, err))
			continue
		}
		usable++
	}
	if usable == 0 && !cfg.EnableProxy && !cfg.AllowOrigin {
		errs = append(errs, errors.New("config: no mirror configured and proxy/origin fallbacks disabled"))
	}
	if cfg.EnableProxy {
		if err := checkBaseURL(cfg.ProxyBase); err != nil {
			errs = append(errs, fmt.Errorf("config: proxy base: %w", err))
		}
	}
	if lang := strings.TrimSpace(cfg.DefaultTranslateLang); lang != "" {
		if _, ok := translate.ParseLanguage(lang); !ok {
			errs = append(errs, fmt.Errorf("config: unsupported default translation language %q", lang))
		}
	}
	if cfg.MaxMediaMB < 0 || cfg.RetryAttempts < 0 || cfg.HTTPTimeout < 0 {
		errs = append(errs, errors.New("config: negative limits are not allowed"))
	}
	switch strings.ToLower(cfg.Labels) {
	case "", "en", "ru":
	default:
		errs = append(errs, fmt.Errorf("config: unknown label set %q (want en or ru)", cfg.Labels))
	}
	if cfg.Timezone != "" {
		if _, err := time.LoadLocation(cfg.Timezone); err != nil {
			errs = append(errs, fmt.Errorf("config: timezone: %w", err))
		}
	}
	if strings.TrimSpace(cfg.SettingsPath) == "" {
		errs = append(errs, errors.New("config: settings path is required"))
	}
	return errors.Join(errs...)
}

func checkBaseURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}
