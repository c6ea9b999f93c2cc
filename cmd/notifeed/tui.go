package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nhle/notifeed/internal/app"
	"github.com/nhle/notifeed/internal/credential"
	"github.com/nhle/notifeed/internal/feed"
	"github.com/nhle/notifeed/internal/model"
	"github.com/nhle/notifeed/internal/source/rest"
	"github.com/nhle/notifeed/internal/store"
	"github.com/nhle/notifeed/pkg/logger"
)

// loadConfig reads and validates the config, applying the --filter flag.
func loadConfig() (*model.AppConfig, error) {
	cfg, err := model.LoadConfig(flagConfig)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if flagFilter != "" {
		cfg.Feed.DefaultFilter = flagFilter
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config (run `notifeed login`): %w", err)
	}
	return cfg, nil
}

// initLogger sends logs to the configured file so they stay out of the UI.
func initLogger(cfg model.LogConfig) error {
	lc := logger.Config{Level: cfg.Level, Development: cfg.Development}
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return fmt.Errorf("creating log directory: %w", err)
		}
		lc.OutputPaths = []string{cfg.File}
	}
	return logger.Init(lc)
}

// openBackend resolves the API token and builds the REST adapter. The
// keyring is only opened when the token is not in the environment.
func openBackend(cfg *model.AppConfig) (*rest.Adapter, error) {
	var vault *credential.Vault
	if os.Getenv(credential.TokenEnv) == "" {
		v, err := credential.Open()
		if err != nil {
			logger.Warn("keyring unavailable", zap.Error(err))
		}
		vault = v
	}

	token, err := credential.ResolveToken(vault, cfg.Backend.BaseURL, cfg.Backend.UserID)
	if err != nil {
		return nil, fmt.Errorf("resolving API token (run `notifeed login` or set %s): %w",
			credential.TokenEnv, err)
	}
	return rest.NewAdapter(cfg.Backend.BaseURL, token, cfg.Backend.Timeout()), nil
}

// engineOptions maps config onto feed engine options.
func engineOptions(cfg *model.AppConfig, hidden feed.HiddenStore) []feed.Option {
	filter, _ := model.ParseFilterKind(cfg.Feed.DefaultFilter)
	opts := []feed.Option{
		feed.WithPageSize(cfg.Feed.PageSize),
		feed.WithFilter(filter),
		feed.WithHiddenStore(hidden),
		feed.WithPollInterval(cfg.Unread.PollInterval()),
		feed.WithAutoRefresh(),
	}
	if cfg.Feed.ScopedIDs {
		opts = append(opts, feed.WithScopedIDs())
	}
	return opts
}

// openStore opens the local database, creating its directory first.
func openStore(path string) (*store.SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	db, err := store.NewSQLiteStore(path)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	return db, nil
}

func runTUI(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := initLogger(cfg.Log); err != nil {
		return err
	}
	defer logger.Sync()

	backend, err := openBackend(cfg)
	if err != nil {
		return err
	}

	db, err := openStore(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	engine := feed.New(backend, cfg.Backend.UserID, engineOptions(cfg, db)...)
	if err := engine.Start(context.Background()); err != nil {
		return err
	}
	defer engine.Stop()

	logger.Info("starting feed",
		zap.String("base_url", cfg.Backend.BaseURL),
		zap.String("user_id", cfg.Backend.UserID),
		zap.Int("page_size", cfg.Feed.PageSize),
	)

	p := tea.NewProgram(app.New(engine), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running TUI: %w", err)
	}
	return nil
}
