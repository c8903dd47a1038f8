// Package cli hosts the chatkit command tree. Subcommands wire the library
// packages together the way an embedding app would: config file plus
// CHATKIT_* env plus flags, global logger, then the engine or session store.
package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"chatkit/pkg/config"
	"chatkit/pkg/logger"
)

var (
	version = "dev"
	commit  = "unknown"
)

var (
	flagConfig   string
	flagBackend  string
	flagActivity string
	flagUser     string
	flagName     string
)

var rootCmd = &cobra.Command{
	Use:   "chatkit",
	Short: "Chat engine toolkit: activity chat, advisor sessions, and a dev backend",
	Long: `chatkit drives a poll-based activity chat and an AI advisor session
store against a chat backend, and bundles a stub backend for local
development.`,
	Version: fmt.Sprintf("%s (commit: %s)", version, commit),
}

// Execute runs the command tree. Called by main.main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "chatkit.yaml", "config file path")
	rootCmd.PersistentFlags().StringVar(&flagBackend, "backend", "", "backend base URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagActivity, "activity", "", "activity id (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagUser, "user", "", "acting user id")
	rootCmd.PersistentFlags().StringVar(&flagName, "name", "", "acting user display name")
}

// loadConfig resolves the effective config: file, then env, then flags.
// A .env file next to the binary feeds the env layer when present.
func loadConfig() (config.Config, error) {
	_ = godotenv.Load()
	cfg, envUsed, err := config.LoadEffective(flagConfig)
	if err != nil {
		return cfg, err
	}
	if flagBackend != "" {
		cfg.Backend.BaseURL = flagBackend
	}
	if flagActivity != "" {
		cfg.Chat.ActivityID = flagActivity
	}
	logger.InitWithLevel(cfg.Logging.Level)
	if envUsed {
		logger.Debug("config_env_overrides_applied")
	}
	return cfg, nil
}

func actingUser() (id, name string) {
	id = flagUser
	if id == "" {
		id = os.Getenv("CHATKIT_USER_ID")
	}
	if id == "" {
		id = "local-user"
	}
	name = flagName
	if name == "" {
		name = os.Getenv("CHATKIT_USER_NAME")
	}
	if name == "" {
		name = id
	}
	return id, name
}
