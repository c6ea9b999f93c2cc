package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nhle/notifeed/internal/model"
	"github.com/nhle/notifeed/internal/store"
	"github.com/nhle/notifeed/pkg/logger"
)

var flagUnhideAll bool

var hiddenCmd = &cobra.Command{
	Use:   "hidden",
	Short: "List notifications hidden on this client",
	Long: "hidden lists the notifications deleted in the feed. Deleting only hides a " +
		"record locally, so it can be brought back with `notifeed hidden unhide`.",
	Args: cobra.NoArgs,
	RunE: runHidden,
}

var unhideCmd = &cobra.Command{
	Use:   "unhide [key...]",
	Short: "Show hidden notifications in the feed again",
	Long: "unhide removes keys, as printed by `notifeed hidden`, from the hidden set. " +
		"The change shows up the next time the feed starts.",
	RunE: runUnhide,
}

func init() {
	unhideCmd.Flags().BoolVar(&flagUnhideAll, "all", false, "unhide every hidden notification")
	hiddenCmd.AddCommand(unhideCmd)
}

// withStore loads the config and opens the local store for a subcommand.
func withStore(ctx context.Context, fn func(ctx context.Context, db store.Store, userID string) error) error {
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

	return fn(ctx, db, cfg.Backend.UserID)
}

func runHidden(cmd *cobra.Command, args []string) error {
	return withStore(cmd.Context(), func(ctx context.Context, db store.Store, userID string) error {
		return printHidden(ctx, cmd.OutOrStdout(), db, userID, time.Now())
	})
}

func runUnhide(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && !flagUnhideAll {
		return errors.New("name at least one key or pass --all")
	}
	return withStore(cmd.Context(), func(ctx context.Context, db store.Store, userID string) error {
		n, err := unhide(ctx, db, userID, args, flagUnhideAll)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d notification(s) unhidden\n", n)
		return nil
	})
}

// printHidden writes one line per hidden notification, most recent first.
func printHidden(ctx context.Context, w io.Writer, db store.Store, userID string, now time.Time) error {
	hidden, err := db.ListHidden(ctx, userID)
	if err != nil {
		return err
	}
	if len(hidden) == 0 {
		fmt.Fprintln(w, "no hidden notifications")
		return nil
	}
	for _, h := range hidden {
		fmt.Fprintf(w, "%s\thidden %s ago\n", h.Key, now.Sub(h.HiddenAt).Round(time.Second))
	}
	return nil
}

// unhide removes keys from the hidden set, or every key when all is set.
// Keys that were not hidden are skipped. It returns how many were removed.
func unhide(ctx context.Context, db store.Store, userID string, keys []string, all bool) (int, error) {
	hidden, err := db.HiddenNotifications(ctx, userID)
	if err != nil {
		return 0, err
	}
	known := make(map[model.Key]bool, len(hidden))
	for _, k := range hidden {
		known[k] = true
	}

	targets := hidden
	if !all {
		targets = targets[:0:0]
		for _, k := range keys {
			if !known[model.Key(k)] {
				logger.Warn("not hidden, skipping", zap.String("key", k))
				continue
			}
			targets = append(targets, model.Key(k))
		}
	}

	for i, k := range targets {
		if err := db.UnhideNotification(ctx, userID, k); err != nil {
			return i, err
		}
	}
	return len(targets), nil
}
