package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hyperifyio/xmirror/internal/app"
	"github.com/hyperifyio/xmirror/internal/pipeline"
	"github.com/hyperifyio/xmirror/internal/translate"
)

func newRenderCommand(g *globalFlags) *cobra.Command {
	var (
		user        int64
		download    bool
		quotedMedia bool
		compress    bool
	)
	cmd := &cobra.Command{
		Use:   "render [text]",
		Short: "Fetch and render every post link in the text",
		Example: `  xmirror render https://x.com/jack/status/20
  echo "look https://twitter.com/jack/status/20" | xmirror render --download`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := resolveText(cmd, args)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(cmd, g)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("quoted-media") {
				cfg.IncludeQuotedMedia = quotedMedia
			}
			if cmd.Flags().Changed("compress") {
				cfg.CompressMedia = compress
			}
			a, err := app.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			p := a.Pipeline(&app.WriterSender{W: cmd.OutOrStdout()}, app.PipelineOptions{
				SkipRateLimit: true,
				SkipMedia:     !download,
			})
			outcomes, err := p.Handle(cmd.Context(), pipeline.Message{UserID: user, ChatID: user, Text: text})
			if err != nil {
				return err
			}
			if len(outcomes) == 0 {
				return errors.New("no supported post link found")
			}
			for _, o := range outcomes {
				if o.Status == pipeline.StatusDelivered {
					return nil
				}
			}
			return errors.New("no post could be rendered")
		},
	}
	cmd.Flags().Int64Var(&user, "user", 0, "User id whose translation preference applies")
	cmd.Flags().BoolVar(&download, "download", false, "Download media into the temp dir (removed on exit)")
	cmd.Flags().BoolVar(&quotedMedia, "quoted-media", false, "Include media of the quoted post")
	cmd.Flags().BoolVar(&compress, "compress", false, "Compress media above the size ceiling")
	return cmd
}

func newWatchCommand(g *globalFlags) *cobra.Command {
	var (
		user, chat int64
		download   bool
		every      time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Mirror every line read from stdin until EOF or interrupt",
		Long: `Reads one message per line and runs it through the full pipeline,
including the rate limiter. Temp files and limiter state are cleaned up
periodically while the command runs.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, g)
			if err != nil {
				return err
			}
			a, err := app.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := context.WithCancel(cmd.Context())
			done := make(chan struct{})
			go func() {
				a.Maintain(ctx, every)
				close(done)
			}()
			defer func() {
				cancel()
				<-done
			}()

			if !cmd.Flags().Changed("chat") {
				chat = user
			}
			out := cmd.OutOrStdout()
			p := a.Pipeline(&app.WriterSender{W: out}, app.PipelineOptions{SkipMedia: !download})
			sc := bufio.NewScanner(cmd.InOrStdin())
			sc.Buffer(make([]byte, 64<<10), 1<<20)
			for sc.Scan() {
				line := strings.TrimSpace(sc.Text())
				if line == "" {
					continue
				}
				_, err := p.Handle(ctx, pipeline.Message{UserID: user, ChatID: chat, Text: line})
				var rl *pipeline.RateLimitError
				switch {
				case errors.As(err, &rl):
					fmt.Fprintf(out, "!!! %v\n", rl)
				case err != nil:
					return err
				}
			}
			return sc.Err()
		},
	}
	cmd.Flags().Int64Var(&user, "user", 0, "User id the messages come from")
	cmd.Flags().Int64Var(&chat, "chat", 0, "Chat id the messages come from (defaults to --user)")
	cmd.Flags().BoolVar(&download, "download", false, "Download media into the temp dir")
	cmd.Flags().DurationVar(&every, "maintain-every", time.Hour, "Interval of the temp file and limiter cleanup")
	return cmd
}

func newSettingsCommand(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Read or change per-user settings",
	}
	open := func(cmd *cobra.Command) (*app.App, error) {
		cfg, err := loadConfig(cmd, g)
		if err != nil {
			return nil, err
		}
		return app.New(cmd.Context(), cfg)
	}

	get := &cobra.Command{
		Use:   "get <user>",
		Short: "Show the translation preference of a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := parseUser(args[0])
			if err != nil {
				return err
			}
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			lang, err := a.Settings().TranslationPreference(cmd.Context(), user)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", lang, translate.DisplayName(lang))
			return err
		},
	}

	set := &cobra.Command{
		Use:   "set <user> <language|off>",
		Short: "Set the translation language of a user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := parseUser(args[0])
			if err != nil {
				return err
			}
			lang, ok := translate.ParseLanguage(args[1])
			if !ok {
				return fmt.Errorf("unsupported language %q (see `xmirror languages`)", args[1])
			}
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.Settings().SetTranslationPreference(cmd.Context(), user, lang); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", user, lang)
			return err
		},
	}

	imp := &cobra.Command{
		Use:   "import <settings.json>",
		Short: "Import a legacy JSON settings file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			n, err := a.Settings().ImportJSON(cmd.Context(), f)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "imported %d value(s)\n", n)
			return err
		},
	}

	cmd.AddCommand(get, set, imp)
	return cmd
}

func newLanguagesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "languages",
		Short: "List supported translation languages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, l := range translate.Languages() {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", l.Code, l.Name, l.English)
			}
			fmt.Fprintf(tw, "%s\t\t\n", translate.Off)
			return tw.Flush()
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), app.VersionString())
			return err
		},
	}
}

func parseUser(s string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid user id %q", s)
	}
	return n, nil
}
