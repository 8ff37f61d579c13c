// Copyright 2026 The Alumnet Authors
// SPDX-License-Identifier: Apache-2.0

// alumnet-chat is the terminal chat client for the alumni portal. It
// signs in to the event channel with a session token issued by the
// portal's login flow, keeps the conversation list and the open
// conversation in sync, and renders them as a full-screen TUI.
//
// The session token is read from --credential-file, from the
// ALUMNET_SESSION_TOKEN environment variable, or from an interactive
// prompt, in that order. The client never stores it.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/alumnet-portal/chatsync/chatui"
	"github.com/alumnet-portal/chatsync/conversation"
	"github.com/alumnet-portal/chatsync/lib/cli"
	"github.com/alumnet-portal/chatsync/lib/codec"
	"github.com/alumnet-portal/chatsync/lib/config"
	"github.com/alumnet-portal/chatsync/lib/ref"
	"github.com/alumnet-portal/chatsync/lib/secret"
	"github.com/alumnet-portal/chatsync/lib/version"
	"github.com/alumnet-portal/chatsync/portal"
	"github.com/alumnet-portal/chatsync/realtime"
	"github.com/alumnet-portal/chatsync/transcriptcache"
)

const tokenEnvironmentVariable = "ALUMNET_SESSION_TOKEN"

func main() {
	os.Exit(cli.Report(os.Stderr, run()))
}

type options struct {
	configPath     string
	user           string
	credentialFile string
	logOutput      string
	logLevel       string
	noCache        bool
}

func run() error {
	var opts options
	flagSet := pflag.NewFlagSet("alumnet-chat", pflag.ContinueOnError)
	flagSet.StringVar(&opts.configPath, "config", "", "configuration file (default: $ALUMNET_CONFIG, else built-in development defaults)")
	flagSet.StringVarP(&opts.user, "user", "u", "", "your portal user id (required)")
	flagSet.StringVar(&opts.credentialFile, "credential-file", "", "file holding the session token (default: $"+tokenEnvironmentVariable+", else prompt)")
	flagSet.StringVar(&opts.logOutput, "log-output", "", "also write JSON log records to this file")
	flagSet.StringVar(&opts.logLevel, "log-level", "info", "minimum level written to --log-output")
	flagSet.BoolVar(&opts.noCache, "no-cache", false, "do not read or write the on-disk transcript cache")
	flagSet.BoolP("help", "h", false, "show help")

	if len(os.Args) > 1 && os.Args[1] == "--version" {
		fmt.Println("alumnet-chat " + version.Full())
		return nil
	}
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(flagSet)
			return nil
		}
		return cli.Validation("%w", err).WithHint("run alumnet-chat --help")
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}
	if args := flagSet.Args(); len(args) > 0 {
		return cli.Validation("unexpected argument: %s", args[0])
	}

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}
	me, err := ref.UserIDOf(opts.user)
	if err != nil {
		return cli.Validation("--user is required").WithHint("pass the user id shown on your portal profile")
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return cli.Validation("alumnet-chat needs an interactive terminal")
	}

	credential, err := readCredential(opts.credentialFile)
	if err != nil {
		return err
	}
	defer credential.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()
	return runSession(ctx, cfg, me, credential, opts)
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `alumnet-chat: direct messages with other alumni, in the terminal.

Usage:
  alumnet-chat --user <id> [flags]

Examples:
  # Token from the environment, default development portal
  ALUMNET_SESSION_TOKEN=... alumnet-chat --user 4711

  # Staging, token file, debug log for a bug report
  alumnet-chat --config ~/.config/alumnet/chat.yaml --user 4711 \
      --credential-file ~/.config/alumnet/token --log-output /tmp/chat.log --log-level debug

Keys:
  tab switches between the list and the composer, enter opens or sends,
  / filters the list, p pins, d d deletes, r retries, ctrl+c quits.

Flags:
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}

func loadConfig(path string) (*config.Config, error) {
	var cfg *config.Config
	var err error
	switch {
	case path != "":
		cfg, err = config.LoadFile(path)
	case os.Getenv("ALUMNET_CONFIG") != "":
		cfg, err = config.Load()
	default:
		cfg = config.Default()
	}
	if err != nil {
		return nil, cli.Validation("loading configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, cli.Validation("invalid configuration:\n%w", err)
	}
	return cfg, nil
}

// readCredential takes the session token from the file, the
// environment, or a no-echo prompt. The environment variable is
// cleared once read so child processes do not inherit it.
func readCredential(path string) (*secret.Buffer, error) {
	if path != "" {
		if path == "-" {
			return nil, cli.Validation("--credential-file - is not supported: the terminal is needed for the chat")
		}
		credential, err := secret.ReadFromPath(path)
		if err != nil {
			return nil, cli.Validation("reading credential: %w", err)
		}
		return credential, nil
	}
	if token := os.Getenv(tokenEnvironmentVariable); token != "" {
		os.Unsetenv(tokenEnvironmentVariable)
		credential, err := secret.FromString(token)
		if err != nil {
			return nil, cli.Internal("storing credential: %w", err)
		}
		return credential, nil
	}

	fmt.Fprint(os.Stderr, "Session token: ")
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, cli.Internal("reading session token: %w", err)
	}
	credential, err := secret.NewFromBytes(raw)
	if err != nil {
		return nil, cli.Unauthorized("session token: %w", err).WithHint("copy the token from the portal's \"Chat clients\" settings page")
	}
	return credential, nil
}

// runSession wires the connection manager, the store, the transcript
// cache, and the TUI for one signed-in session, and tears them down in
// reverse order when the TUI exits.
func runSession(ctx context.Context, cfg *config.Config, me ref.UserID, credential *secret.Buffer, opts options) error {
	fileLevel, err := cli.ParseLevel(opts.logLevel)
	if err != nil {
		return err
	}
	tuiHandler := chatui.NewLogHandler(slog.LevelWarn)
	var logger *slog.Logger
	if opts.logOutput != "" {
		fileHandler, closeFile, err := cli.OpenFileHandler(opts.logOutput, fileLevel)
		if err != nil {
			return cli.Validation("%w", err)
		}
		defer closeFile()
		logger = slog.New(cli.FanoutHandler{tuiHandler, fileHandler})
	} else {
		logger = slog.New(tuiHandler)
	}
	logger.Info("starting", "version", version.Info(), "environment", cfg.Environment, "user_id", me)

	userAgent := version.UserAgent("alumnet-chat")
	client, err := portal.NewClient(portal.ClientConfig{
		BaseURL:    cfg.Portal.BaseURL,
		HTTPClient: &http.Client{Timeout: cfg.Portal.RequestTimeout.Std()},
		UserAgent:  userAgent,
		Logger:     logger,
	})
	if err != nil {
		return cli.Validation("%w", err)
	}

	frameCodec, err := codec.ForFormat(codec.Format(cfg.Channel.Codec))
	if err != nil {
		return cli.Validation("%w", err)
	}
	channelURL, err := cfg.ChannelURL()
	if err != nil {
		return cli.Validation("%w", err)
	}
	reconnect := cfg.Channel.Reconnect
	manager, err := realtime.NewManager(realtime.Config{
		URL:              channelURL,
		Codec:            frameCodec,
		HandshakeTimeout: cfg.Channel.HandshakeTimeout.Std(),
		Backoff: realtime.Backoff{
			Initial:     reconnect.InitialDelay.Std(),
			Max:         reconnect.MaxDelay.Std(),
			Multiplier:  reconnect.Multiplier,
			MaxAttempts: reconnect.MaxAttempts,
		},
		UserAgent: userAgent,
		Logger:    logger,
	})
	if err != nil {
		return cli.Validation("%w", err)
	}

	// A broken cache costs instant re-open, not the session.
	var cache conversation.Cache
	if cfg.Cache.Directory != "" && !opts.noCache {
		transcripts, err := openCache(ctx, cfg, me, logger)
		if err != nil {
			logger.Warn("transcript cache unavailable", "error", err)
		} else {
			defer transcripts.Close()
			cache = transcripts
		}
	}

	store, err := conversation.New(conversation.Config{
		Me:            me,
		History:       client.Session(credential),
		Channel:       manager,
		Cache:         cache,
		EchoTolerance: cfg.Conversation.EchoTolerance.Std(),
		Logger:        logger,
	})
	if err != nil {
		return cli.Internal("%w", err)
	}
	defer store.Close()

	model, err := chatui.NewModel(chatui.Config{
		Context:         ctx,
		Store:           store,
		Connection:      manager,
		TimestampFormat: cfg.UI.TimestampFormat,
		RenderMarkdown:  cfg.UI.RenderMarkdown,
		Logger:          logger,
	})
	if err != nil {
		return cli.Internal("%w", err)
	}
	defer model.Close()

	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	tuiHandler.SetProgram(program)

	if err := manager.Start(credential); err != nil {
		return cli.Internal("%w", err)
	}
	// Logout: close the channel before the store detaches from it.
	defer manager.Stop()

	_, err = program.Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return cli.Internal("terminal UI: %w", err)
	}
	if lastErr := manager.LastError(); realtime.IsAuthError(lastErr) {
		return cli.Unauthorized("the portal rejected the session: %w", lastErr).
			WithHint("sign in to the portal again and copy a fresh session token")
	}
	return nil
}

func openCache(ctx context.Context, cfg *config.Config, me ref.UserID, logger *slog.Logger) (*transcriptcache.Cache, error) {
	compression, err := transcriptcache.ParseCompression(cfg.Cache.Compression)
	if err != nil {
		return nil, err
	}
	return transcriptcache.Open(ctx, transcriptcache.Config{
		Path:        transcriptcache.PathFor(cfg.Cache.Directory, cfg.Portal.BaseURL, me),
		Compression: compression,
		Logger:      logger,
	})
}
