package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rewired-gh/churnwatch/internal/churnapi"
	"github.com/rewired-gh/churnwatch/internal/config"
	"github.com/rewired-gh/churnwatch/internal/logger"
	"github.com/rewired-gh/churnwatch/internal/session"
	"github.com/rewired-gh/churnwatch/internal/storage"
	"github.com/rewired-gh/churnwatch/internal/telegram"
	"github.com/rewired-gh/churnwatch/internal/upload"
	"github.com/rewired-gh/churnwatch/internal/view"
)

var version = "dev"

type rootOptions struct {
	configPath string
	debug      bool
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "churnwatch",
		Short: "Churnwatch - terminal client for churn risk predictions",
		Long: `Churnwatch scores customer datasets against a churn prediction service
and lets you explore per-customer risk, model statistics and algorithm
benchmarks from the terminal.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to configuration file")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")

	cmd.AddCommand(newSessionCommand(opts))
	cmd.AddCommand(newSampleCommand(opts))
	cmd.AddCommand(newPredictCommand(opts))
	cmd.AddCommand(newResultsCommand(opts))
	cmd.AddCommand(newDashboardCommand(opts))
	cmd.AddCommand(newLogoutCommand(opts))

	return cmd
}

func execute(ctx context.Context) error {
	return newRootCommand().ExecuteContext(ctx)
}

// app holds everything a command needs, wired from configuration.
type app struct {
	cfg      *config.Config
	store    *storage.Store
	workflow *session.Workflow
}

func loadConfig(opts *rootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if opts.debug {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newApp(opts *rootOptions) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	if opts.configPath != "" {
		logger.Debug("Configuration loaded from %s", opts.configPath)
	}

	store, err := storage.Open(storage.Options{
		Backend:  cfg.Storage.Backend,
		FilePath: cfg.Storage.FilePath,
		DBPath:   cfg.Storage.DBPath,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	client := churnapi.NewClient(cfg.API.BaseURL, cfg.API.Timeout, churnapi.ClientConfig{
		MaxRetries:     cfg.API.MaxRetries,
		RetryDelayBase: cfg.API.RetryDelayBase,
	})

	coordinator := upload.NewCoordinator(client, upload.Config{
		ProgressInterval: cfg.Upload.ProgressInterval,
		ProgressStep:     cfg.Upload.ProgressStep,
		ProgressCap:      cfg.Upload.ProgressCap,
		MaxFileBytes:     cfg.Upload.MaxFileBytes(),
	})

	wfOpts := []session.Option{
		session.WithStore(store),
		session.WithDashboard(client),
		session.WithViewOptions(view.WithDefaultLimit(cfg.View.DefaultLimit)),
	}
	if cfg.Telegram.Enabled {
		tg, err := telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to initialize Telegram client: %w", err)
		}
		wfOpts = append(wfOpts, session.WithNotifier(tg))
		logger.Debug("Telegram notifications enabled")
	}

	return &app{
		cfg:      cfg,
		store:    store,
		workflow: session.New(cfg.Auth.Passkeys, coordinator, wfOpts...),
	}, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		logger.Error("Failed to close storage: %v", err)
	}
}
