package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nhle/notifeed/pkg/logger"
)

var countCmd = &cobra.Command{
	Use:   "count",
	Short: "Print the unread notification count",
	Long: "count asks the backend for the authoritative unread count. When the " +
		"backend is unreachable it prints the last count it saw, marked as cached.",
	RunE: runCount,
}

func runCount(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := initLogger(cfg.Log); err != nil {
		return err
	}
	defer logger.Sync()

	db, err := openStore(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Backend.Timeout())
	defer cancel()

	backend, err := openBackend(cfg)
	var n int
	if err == nil {
		n, err = backend.UnreadCount(ctx, cfg.Backend.UserID)
	}
	if err == nil {
		if saveErr := db.SaveUnreadCount(ctx, cfg.Backend.UserID, n); saveErr != nil {
			logger.Warn("caching unread count", zap.Error(saveErr))
		}
		fmt.Println(n)
		return nil
	}

	logger.Warn("unread count unavailable", zap.Error(err))
	last, cacheErr := db.LastUnreadCount(context.Background(), cfg.Backend.UserID)
	if cacheErr != nil || last == nil {
		return fmt.Errorf("fetching unread count: %w", err)
	}
	fmt.Printf("%d (cached %s ago)\n", last.Count, time.Since(last.PolledAt).Round(time.Second))
	return nil
}
