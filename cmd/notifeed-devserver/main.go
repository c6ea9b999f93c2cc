package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nhle/notifeed/internal/devserver"
	"github.com/nhle/notifeed/pkg/logger"
)

var (
	flagAddr     string
	flagToken    string
	flagLatency  time.Duration
	flagUser     string
	flagCount    int
	flagSeed     uint64
	flagDebug    bool
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:   "notifeed-devserver",
	Short: "In-memory notification backend for local development",
	Long: "notifeed-devserver serves the notification REST API from memory, seeded " +
		"with generated system and social notifications.",
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().StringVar(&flagAddr, "addr", ":8085", "listen address")
	rootCmd.Flags().StringVar(&flagToken, "token", os.Getenv("NOTIFEED_DEV_TOKEN"), "required bearer token (empty disables auth)")
	rootCmd.Flags().DurationVar(&flagLatency, "latency", 0, "artificial delay for list responses")
	rootCmd.Flags().StringVar(&flagUser, "user", "demo", "user to seed notifications for")
	rootCmd.Flags().IntVar(&flagCount, "count", 120, "number of notifications to seed")
	rootCmd.Flags().Uint64Var(&flagSeed, "seed", 1, "random seed for generated data")
	rootCmd.Flags().BoolVar(&flagDebug, "debug", false, "gin debug mode and console logs")
	rootCmd.Flags().StringVar(&flagLogLevel, "log-level", "info", "log level")
}

func run(cmd *cobra.Command, args []string) error {
	if err := logger.Init(logger.Config{Level: flagLogLevel, Development: flagDebug}); err != nil {
		return err
	}
	defer logger.Sync()

	if !flagDebug {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := devserver.New(devserver.Config{
		Addr:      flagAddr,
		Token:     flagToken,
		Latency:   flagLatency,
		SeedUser:  flagUser,
		SeedCount: flagCount,
		Seed:      flagSeed,
	})
	if err := srv.Run(ctx); err != nil {
		logger.Error("dev server stopped", zap.Error(err))
		return fmt.Errorf("serving: %w", err)
	}
	logger.Info("dev server shut down")
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
