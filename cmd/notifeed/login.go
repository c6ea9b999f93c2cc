package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/nhle/notifeed/internal/credential"
	"github.com/nhle/notifeed/internal/model"
	"github.com/nhle/notifeed/internal/source/rest"
	"github.com/nhle/notifeed/internal/ui/login"
)

var flagSkipCheck bool

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store the backend URL, user and API token",
	RunE:  runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored API token",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := model.LoadConfig(flagConfig)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		vault, err := credential.Open()
		if err != nil {
			return err
		}
		if err := vault.DeleteToken(cfg.Backend.BaseURL, cfg.Backend.UserID); err != nil {
			return err
		}
		fmt.Printf("Removed token for %s on %s\n", cfg.Backend.UserID, cfg.Backend.BaseURL)
		return nil
	},
}

func init() {
	loginCmd.Flags().BoolVar(&flagSkipCheck, "skip-check", false, "save without contacting the backend")
}

func runLogin(cmd *cobra.Command, args []string) error {
	cfg, err := model.LoadConfig(flagConfig)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	final, err := tea.NewProgram(login.New(cfg.Backend.BaseURL, cfg.Backend.UserID, 80, 24)).Run()
	if err != nil {
		return fmt.Errorf("running login form: %w", err)
	}
	sub, ok := final.(login.Model).Result().(login.SubmittedMsg)
	if !ok {
		return errors.New("login canceled")
	}

	if !flagSkipCheck {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		n, err := rest.NewAdapter(sub.BaseURL, sub.Token, cfg.Backend.Timeout()).UnreadCount(ctx, sub.UserID)
		if err != nil {
			return fmt.Errorf("checking credentials against %s: %w", sub.BaseURL, err)
		}
		fmt.Printf("Connected: %d unread\n", n)
	}

	vault, err := credential.Open()
	if err != nil {
		return err
	}
	if err := vault.SetToken(sub.BaseURL, sub.UserID, sub.Token); err != nil {
		return err
	}

	cfg.Backend.BaseURL = sub.BaseURL
	cfg.Backend.UserID = sub.UserID
	if err := model.SaveConfig(flagConfig, cfg); err != nil {
		return err
	}
	fmt.Printf("Saved config to %s\n", flagConfig)
	return nil
}
