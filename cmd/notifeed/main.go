package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nhle/notifeed/internal/model"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	flagConfig string
	flagFilter string
)

var rootCmd = &cobra.Command{
	Use:   "notifeed",
	Short: "Terminal notification feed",
	Long: "notifeed shows system and social notifications from a REST backend as one " +
		"infinite-scrolling feed with read state, filters and an unread badge.",
	SilenceUsage: true,
	RunE:         runTUI,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", model.DefaultConfigPath(), "path to config file")
	rootCmd.Flags().StringVar(&flagFilter, "filter", "", "initial filter (all, unread, system, social)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(countCmd)
	rootCmd.AddCommand(hiddenCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("notifeed %s (commit: %s, built: %s)\n", version, commit, date)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
