package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/john/popupchat/internal/buffer"
	"github.com/john/popupchat/internal/config"
	"github.com/john/popupchat/internal/feed"
	"github.com/john/popupchat/internal/health"
	"github.com/john/popupchat/internal/kick"
	"github.com/john/popupchat/internal/poller"
	"github.com/john/popupchat/internal/replay"
	"github.com/john/popupchat/internal/twitch"
	"github.com/john/popupchat/internal/ui"
)

// Exit codes
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

type options struct {
	configPath string
	opacity    float64
	logFile    string
	statusAddr string
	headless   bool
}

// exitError carries the process exit code alongside the error
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func main() {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "popupchat: %v\n", err)
		var ee *exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		os.Exit(exitConfig)
	}
	os.Exit(exitOK)
}

func newRootCmd() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "popupchat <target>",
		Short: "Live chat overlay for Twitch, Kick and recorded chat archives",
		Long: `Polls a live chat feed and shows the most recent messages in a small overlay.

Targets:
  twitch:<channel>        https://www.twitch.tv/<channel>
  kick:<slug|chatroom-id> https://kick.com/<slug>
  file:<path>             <path>.jsonl
  s3://<bucket>/<key>`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", envOr("CONFIG_PATH", "config.yaml"), "path to the YAML config file")
	cmd.Flags().Float64VarP(&opts.opacity, "opacity", "o", config.DefaultOpacity, "background opacity between 0 and 1")
	cmd.Flags().StringVar(&opts.logFile, "log-file", "", "write logs to this file (default popupchat.log)")
	cmd.Flags().StringVar(&opts.statusAddr, "status-addr", "", "serve /health, /status and /messages on this address")
	cmd.Flags().BoolVar(&opts.headless, "headless", false, "print messages to stdout instead of drawing the overlay")

	return cmd
}

func run(cmd *cobra.Command, rawTarget string, opts options) error {
	cfg, err := config.Load(opts.configPath, cmd.Flags().Changed("config"))
	if err != nil {
		return &exitError{code: exitConfig, err: fmt.Errorf("config error: %w", err)}
	}
	if cmd.Flags().Changed("opacity") {
		cfg.Window.Opacity = &opts.opacity
	}
	if opts.logFile != "" {
		cfg.Log.File = opts.logFile
	}
	if opts.statusAddr != "" {
		cfg.Status.Addr = opts.statusAddr
	}
	if err := cfg.Validate(); err != nil {
		return &exitError{code: exitConfig, err: fmt.Errorf("config error: %w", err)}
	}

	target, err := feed.ParseTarget(rawTarget)
	if err != nil {
		return &exitError{code: exitConfig, err: err}
	}

	logger, closeLog, err := newLogger(cfg, opts.headless)
	if err != nil {
		return &exitError{code: exitRuntime, err: err}
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Popup chat starting...", "target", target.String())

	client, err := openFeed(ctx, logger, cfg, target)
	if err != nil {
		return &exitError{code: exitRuntime, err: err}
	}
	if err := client.Start(ctx); err != nil {
		return &exitError{code: exitRuntime, err: fmt.Errorf("start %s: %w", target, err)}
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.Warn("Error closing feed", "error", err)
		}
	}()

	buf := buffer.New(cfg.Poller.MaxMessages)
	poll := poller.New(logger, client, buf, time.Duration(cfg.Poller.IntervalMillis)*time.Millisecond)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	pollerDone := make(chan struct{})
	go func() {
		defer close(pollerDone)
		if err := poll.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Poller error", "error", err)
		}
	}()

	if cfg.Status.Addr != "" {
		statusServer := health.New(logger, cfg.Status.Addr, buf, poll)
		go func() {
			if err := statusServer.Start(); err != nil && err != http.ErrServerClosed {
				logger.Error("Status server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := statusServer.Shutdown(shutdownCtx); err != nil {
				logger.Warn("Error shutting down status server", "error", err)
			}
		}()
	}

	logger.Info("All components started successfully")

	if opts.headless {
		err = ui.NewPrinter(logger, cmd.OutOrStdout(), buf).Run(ctx, poll.Ticks())
	} else {
		err = runOverlay(ctx, logger, cfg, buf, poll)
	}

	cancel()
	<-pollerDone
	if err != nil && !errors.Is(err, context.Canceled) {
		return &exitError{code: exitRuntime, err: err}
	}

	logger.Info("Popup chat stopped")
	return nil
}

func runOverlay(ctx context.Context, logger *slog.Logger, cfg *config.Config, buf *buffer.Buffer, poll *poller.Poller) error {
	model := ui.New(logger, buf, poll.Ticks(), ui.Appearance{
		Width:       cfg.Window.Width,
		Height:      cfg.Window.Height,
		Decorations: cfg.Window.Decorations,
		Opacity:     cfg.OpacityValue(),
		FontSize:    cfg.Window.FontSize,
	})

	program := tea.NewProgram(model, tea.WithAltScreen())
	go func() {
		<-ctx.Done()
		program.Quit()
	}()

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("overlay: %w", err)
	}
	return nil
}

// openFeed builds the client serving the target. The session is not started yet.
func openFeed(ctx context.Context, logger *slog.Logger, cfg *config.Config, target feed.Target) (feed.Client, error) {
	switch target.Kind {
	case feed.KindTwitch:
		return twitch.New(logger, cfg.Twitch.Username, cfg.Twitch.OAuth, target.Channel), nil
	case feed.KindKick:
		return kick.New(logger, target.Channel), nil
	case feed.KindFile:
		return replay.New(logger, replay.FileOpener(target.Path), cfg.Replay.Speed), nil
	case feed.KindS3:
		s3Client, err := replay.NewS3Client(ctx, replay.S3Options{
			Region:          cfg.S3.Region,
			RoleARN:         cfg.S3.RoleARN,
			TokenSocket:     cfg.S3.TokenSocket,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			Endpoint:        cfg.S3.Endpoint,
		})
		if err != nil {
			return nil, err
		}
		return replay.New(logger, replay.S3Opener(s3Client, target.Bucket, target.Key), cfg.Replay.Speed), nil
	}
	return nil, fmt.Errorf("%w: %s", feed.ErrUnsupportedTarget, target)
}

// newLogger writes to stderr in headless mode and to the log file otherwise,
// since the overlay owns the terminal
func newLogger(cfg *config.Config, headless bool) (*slog.Logger, func(), error) {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Log.Level)}

	if headless {
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), func() {}, nil
	}

	f, err := tea.LogToFile(cfg.Log.File, "popupchat")
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return slog.New(slog.NewTextHandler(f, opts)), func() { f.Close() }, nil
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
