package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// ApplyEnvOverrides overrides cfg fields with environment variables when the
// corresponding variables are set. It runs after the config file so env takes
// precedence over the file while flags remain highest precedence.
func ApplyEnvOverrides(cfg *Config) {
	if cfg == nil {
		return
	}

	if v := envList("FX_BASE_URLS"); len(v) > 0 {
		cfg.Mirrors = v
	} else if v := strings.TrimSpace(os.Getenv("FX_BASE_URL")); v != "" {
		cfg.Mirrors = []string{strings.TrimRight(v, "/")}
	}
	if v := os.Getenv("PROXY_BASE_URL"); v != "" {
		cfg.ProxyBase = v
	}
	if v := os.Getenv("SYNDICATION_BASE_URL"); v != "" {
		cfg.SyndicationBase = v
	}
	if v := envList("EXTRA_HOSTS"); len(v) > 0 {
		cfg.ExtraHosts = v
	}
	if v := os.Getenv("USER_AGENT"); v != "" {
		cfg.UserAgent = v
	}
	if v := os.Getenv("DEFAULT_TRANSLATE_LANG"); v != "" {
		cfg.DefaultTranslateLang = v
	}
	if v := os.Getenv("SETTINGS_PATH"); v != "" {
		cfg.SettingsPath = v
	}
	if v := os.Getenv("TMP_DIR"); v != "" {
		cfg.TmpDir = v
	}
	if v := os.Getenv("FFMPEG_PATH"); v != "" {
		cfg.FFmpegPath = v
	}
	if v := os.Getenv("BOT_USERNAME"); v != "" {
		cfg.BotHandle = v
	}
	if v := os.Getenv("LABELS"); v != "" {
		cfg.Labels = v
	}
	if v := os.Getenv("TIMEZONE"); v != "" {
		cfg.Timezone = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	if ids := envList("TELEGRAM_USER_IDS"); len(ids) > 0 {
		cfg.AllowedUsers = cfg.AllowedUsers[:0]
		for _, s := range ids {
			n, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				log.Warn().Str("value", s).Msg("ignoring invalid TELEGRAM_USER_IDS entry")
				continue
			}
			cfg.AllowedUsers = append(cfg.AllowedUsers, n)
		}
	}

	setInt := func(dst *int, key string) {
		if s := strings.TrimSpace(os.Getenv(key)); s != "" {
			if n, err := strconv.Atoi(s); err == nil && n >= 0 {
				*dst = n
			}
		}
	}
	setInt(&cfg.MaxMediaMB, "MAX_MEDIA_MB")
	setInt(&cfg.RetryAttempts, "RETRY_ATTEMPTS")

	setDuration := func(dst *time.Duration, key string) {
		if d, ok := parseDuration(os.Getenv(key)); ok {
			*dst = d
		}
	}
	setDuration(&cfg.HTTPTimeout, "HTTP_TIMEOUT")
	setDuration(&cfg.TmpMaxAge, "TMP_MAX_AGE")
	setDuration(&cfg.UserWindow, "RATE_LIMIT_USER")
	setDuration(&cfg.ChatWindow, "RATE_LIMIT_CHAT")

	setBool := func(dst *bool, key string) {
		if s := strings.ToLower(strings.TrimSpace(os.Getenv(key))); s != "" {
			switch s {
			case "1", "true", "yes", "on":
				*dst = true
			case "0", "false", "no", "off":
				*dst = false
			}
		}
	}
	setBool(&cfg.EnableProxy, "JINA_FALLBACK")
	setBool(&cfg.AllowOrigin, "ALLOW_X_FALLBACK")
	setBool(&cfg.EnableSyndication, "SYNDICATION")
	setBool(&cfg.CompressMedia, "COMPRESS_MEDIA")
	setBool(&cfg.IncludeQuotedMedia, "INCLUDE_QUOTED_MEDIA")
	setBool(&cfg.StrictPerms, "TMP_STRICT_PERMS")
	setBool(&cfg.Verbose, "VERBOSE")
}

// envList splits a comma separated variable, dropping blanks and trailing
// slashes.
func envList(key string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimRight(strings.TrimSpace(part), "/"); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseDuration accepts Go durations and bare seconds.
func parseDuration(s string) (time.Duration, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if d, err := time.ParseDuration(s); err == nil && d >= 0 {
		return d, true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f >= 0 {
		return time.Duration(f * float64(time.Second)), true
	}
	return 0, false
}
