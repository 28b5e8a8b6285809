package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/hyperifyio/xmirror/internal/app"
)

// globalFlags are shared by every subcommand; each one only overrides the
// config when it was set explicitly.
type globalFlags struct {
	configPath string
	envFiles   []string
	verbose    bool
	logLevel   string
	mirrors    []string
	proxy      bool
	origin     bool
	settings   string
	tmpDir     string
	labels     string
	timezone   string
}

func newRootCommand() *cobra.Command {
	g := &globalFlags{}
	cmd := &cobra.Command{
		Use:   "xmirror",
		Short: "Mirror social-media status posts into chat-ready cards",
		Long: "xmirror fetches a post through alternate front-ends, extracts author, text, " +
			"media, poll, quote and translation, and renders length-bounded HTML parts.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := cmd.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "Path to a YAML or JSON config file")
	pf.StringSliceVar(&g.envFiles, "env-file", []string{".env"}, "Dotenv files to load before reading the environment")
	pf.BoolVarP(&g.verbose, "verbose", "v", false, "Verbose logging")
	pf.StringVar(&g.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	pf.StringSliceVar(&g.mirrors, "mirror", nil, "Mirror base URL, in fallback order (repeatable)")
	pf.BoolVar(&g.proxy, "proxy", true, "Fall back to the read-through proxy")
	pf.BoolVar(&g.origin, "origin", false, "Fall back to a direct request to the origin site")
	pf.StringVar(&g.settings, "settings", "", "Path to the settings database")
	pf.StringVar(&g.tmpDir, "tmp-dir", "", "Directory for downloaded media")
	pf.StringVar(&g.labels, "labels", "", "Card label language (en, ru)")
	pf.StringVar(&g.timezone, "timezone", "", "Time zone for post timestamps")

	cmd.AddCommand(
		newRenderCommand(g),
		newWatchCommand(g),
		newSettingsCommand(g),
		newLanguagesCommand(),
		newVersionCommand(),
	)
	return cmd
}

// loadConfig applies defaults, the config file, the environment and then
// explicitly set flags, in increasing precedence.
func loadConfig(cmd *cobra.Command, g *globalFlags) (app.Config, error) {
	if err := app.LoadEnvFiles(g.envFiles...); err != nil {
		return app.Config{}, fmt.Errorf("load env files: %w", err)
	}
	cfg := app.DefaultConfig()
	if g.configPath != "" {
		fc, err := app.LoadConfigFile(g.configPath)
		if err != nil {
			return app.Config{}, fmt.Errorf("load config: %w", err)
		}
		app.ApplyFileConfig(&cfg, fc)
	}
	app.ApplyEnvOverrides(&cfg)

	flags := cmd.Flags()
	if flags.Changed("mirror") {
		cfg.Mirrors = g.mirrors
	}
	if flags.Changed("proxy") {
		cfg.EnableProxy = g.proxy
	}
	if flags.Changed("origin") {
		cfg.AllowOrigin = g.origin
	}
	if flags.Changed("settings") {
		cfg.SettingsPath = g.settings
	}
	if flags.Changed("tmp-dir") {
		cfg.TmpDir = g.tmpDir
	}
	if flags.Changed("labels") {
		cfg.Labels = g.labels
	}
	if flags.Changed("timezone") {
		cfg.Timezone = g.timezone
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = g.logLevel
	}
	if flags.Changed("verbose") {
		cfg.Verbose = g.verbose
	}
	setLogLevel(cfg)
	return cfg, nil
}

func setLogLevel(cfg app.Config) {
	if cfg.Verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		return
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.LogLevel)))
	if err != nil || lvl == zerolog.NoLevel {
		if cfg.LogLevel != "" {
			log.Warn().Str("level", cfg.LogLevel).Msg("unknown log level, using info")
		}
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

// resolveText joins the arguments or reads stdin when it is not a terminal.
func resolveText(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 {
		return strings.TrimSpace(strings.Join(args, " ")), nil
	}
	stdin := cmd.InOrStdin()
	if file, ok := stdin.(*os.File); ok {
		info, err := file.Stat()
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		if info.Mode()&os.ModeCharDevice != 0 {
			return "", errors.New("text with a post link is required")
		}
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", errors.New("text with a post link is required")
	}
	return text, nil
}
