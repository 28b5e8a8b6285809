package app

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	if err := ValidateConfig(cfg); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
	if len(cfg.Mirrors) != 4 || !cfg.EnableProxy || cfg.AllowOrigin {
		t.Fatalf("unexpected source defaults %+v", cfg)
	}
	if cfg.MaxMediaBytes() != 0 {
		t.Fatalf("compression is off by default")
	}
	cfg.CompressMedia = true
	if cfg.MaxMediaBytes() != 20<<20 {
		t.Fatalf("expected 20 MiB ceiling, got %d", cfg.MaxMediaBytes())
	}
}

func TestLoadConfigFile_YAMLAndJSON(t *testing.T) {
	dir := t.TempDir()
	yml := filepath.Join(dir, "xmirror.yaml")
	content := `mirrors: ["https://m1.example", "https://m2.example"]
proxy:
  enable: false
origin:
  allow: true
http:
  timeout: 7s
  retries: 2
media:
  maxMB: 10
  compress: true
translate:
  default: de
users:
  allow: [1, 2]
render:
  labels: ru
  timezone: Europe/Berlin
`
	if err := os.WriteFile(yml, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	fc, err := LoadConfigFile(yml)
	if err != nil {
		t.Fatalf("load yaml: %v", err)
	}
	cfg := DefaultConfig()
	ApplyFileConfig(&cfg, fc)
	if len(cfg.Mirrors) != 2 || cfg.EnableProxy || !cfg.AllowOrigin {
		t.Fatalf("unexpected sources %+v", cfg)
	}
	if cfg.HTTPTimeout != 7*time.Second || cfg.RetryAttempts != 2 {
		t.Fatalf("unexpected http settings %v %d", cfg.HTTPTimeout, cfg.RetryAttempts)
	}
	if cfg.MaxMediaBytes() != 10<<20 || cfg.DefaultTranslateLang != "de" || len(cfg.AllowedUsers) != 2 {
		t.Fatalf("unexpected media/user settings %+v", cfg)
	}
	if cfg.Labels != "ru" || cfg.Timezone != "Europe/Berlin" {
		t.Fatalf("unexpected render settings %+v", cfg)
	}
	if !cfg.EnableSyndication {
		t.Fatalf("absent keys must keep defaults")
	}

	js := filepath.Join(dir, "xmirror.json")
	if err := os.WriteFile(js, []byte(`{"settings":{"path":"/tmp/s.db"},"bot":{"handle":"mirrorbot"}}`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	fc, err = LoadConfigFile(js)
	if err != nil {
		t.Fatalf("load json: %v", err)
	}
	cfg = DefaultConfig()
	ApplyFileConfig(&cfg, fc)
	if cfg.SettingsPath != "/tmp/s.db" || cfg.BotHandle != "mirrorbot" {
		t.Fatalf("unexpected json config %+v", cfg)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("FX_BASE_URLS", "https://a.example/, https://b.example ,")
	t.Setenv("JINA_FALLBACK", "false")
	t.Setenv("ALLOW_X_FALLBACK", "yes")
	t.Setenv("MAX_MEDIA_MB", "50")
	t.Setenv("COMPRESS_MEDIA", "1")
	t.Setenv("INCLUDE_QUOTED_MEDIA", "true")
	t.Setenv("DEFAULT_TRANSLATE_LANG", "en")
	t.Setenv("HTTP_TIMEOUT", "30")
	t.Setenv("RETRY_ATTEMPTS", "4")
	t.Setenv("TELEGRAM_USER_IDS", "10, x, 20")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg := DefaultConfig()
	ApplyEnvOverrides(&cfg)
	if strings.Join(cfg.Mirrors, ",") != "https://a.example,https://b.example" {
		t.Fatalf("unexpected mirrors %q", cfg.Mirrors)
	}
	if cfg.EnableProxy || !cfg.AllowOrigin || !cfg.CompressMedia || !cfg.IncludeQuotedMedia {
		t.Fatalf("unexpected booleans %+v", cfg)
	}
	if cfg.MaxMediaMB != 50 || cfg.RetryAttempts != 4 || cfg.HTTPTimeout != 30*time.Second {
		t.Fatalf("unexpected numbers %+v", cfg)
	}
	if cfg.DefaultTranslateLang != "en" || cfg.LogLevel != "debug" {
		t.Fatalf("unexpected strings %+v", cfg)
	}
	if len(cfg.AllowedUsers) != 2 || cfg.AllowedUsers[0] != 10 || cfg.AllowedUsers[1] != 20 {
		t.Fatalf("unexpected users %v", cfg.AllowedUsers)
	}
}

func TestApplyEnvOverrides_SingleMirror(t *testing.T) {
	t.Setenv("FX_BASE_URLS", "")
	t.Setenv("FX_BASE_URL", "https://only.example/")
	cfg := DefaultConfig()
	ApplyEnvOverrides(&cfg)
	if len(cfg.Mirrors) != 1 || cfg.Mirrors[0] != "https://only.example" {
		t.Fatalf("unexpected mirrors %q", cfg.Mirrors)
	}
}

func TestValidateConfig_Errors(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad mirror", func(c *Config) { c.Mirrors = []string{"ftp://m"} }, "scheme"},
		{"no sources", func(c *Config) { c.Mirrors = nil; c.EnableProxy = false }, "no mirror"},
		{"bad language", func(c *Config) { c.DefaultTranslateLang = "klingon" }, "translation language"},
		{"bad labels", func(c *Config) { c.Labels = "fr" }, "label set"},
		{"bad timezone", func(c *Config) { c.Timezone = "Mars/Olympus" }, "timezone"},
		{"negative", func(c *Config) { c.MaxMediaMB = -1 }, "negative"},
		{"no settings", func(c *Config) { c.SettingsPath = " " }, "settings path"},
	}
	for _, c := range cases {
		cfg := DefaultConfig()
		c.mutate(&cfg)
		err := ValidateConfig(cfg)
		if err == nil || !strings.Contains(err.Error(), c.want) {
			t.Fatalf("%s: expected error containing %q, got %v", c.name, c.want, err)
		}
	}
}

func TestParseDuration(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
		ok   bool
	}{
		{"1.5", 1500 * time.Millisecond, true},
		{"2m", 2 * time.Minute, true},
		{"", 0, false},
		{"-1s", 0, false},
		{"soon", 0, false},
	}
	for _, c := range cases {
		got, ok := parseDuration(c.in)
		if ok != c.ok || got != c.want {
			t.Fatalf("parseDuration(%q): expected %v/%v, got %v/%v", c.in, c.want, c.ok, got, ok)
		}
	}
}
