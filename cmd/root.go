package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vibe-coding-testes/contact-hub-zen/internal/config"
	"github.com/vibe-coding-testes/contact-hub-zen/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:           "contact-hub",
	Short:         "Multichannel support tickets: WhatsApp and email ingestion, ticket and client API",
	RunE:          runAPI,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(apiCmd)
	rootCmd.AddCommand(migrateCmd)
}

// loadConfig reads .env and the environment, validates, and sets up logging.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logging.Setup(cfg.LogLevel, cfg.AppEnv)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}
