// Package commands implements the wabot CLI commands.
package commands

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/vkuttyp/whatsapp-standalone/pkg/wabot/bot"
)

// NewRootCmd creates the root `wabot` command.
func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "wabot",
		Short:   "WhatsApp menu bot with AI chat",
		Version: version,
		Long: `wabot is a standalone WhatsApp bot: a guided menu state machine per
conversation, free-text AI chat with bounded memory, and media analysis
through a vision model.

Examples:
  wabot setup
  wabot serve
  wabot chat`,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			// A missing .env is not an error.
			_ = godotenv.Load()
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().String("config", "", "path to config file")
	rootCmd.PersistentFlags().Bool("verbose", false, "enable debug logging")

	rootCmd.AddCommand(
		newServeCmd(),
		newConfigCmd(),
		newSetupCmd(),
		newChatCmd(),
		newNotifyCmd(),
	)

	return rootCmd
}

// resolveConfig loads config from --config, auto-discovery, or defaults,
// then overlays WABOT_* environment variables.
func resolveConfig(cmd *cobra.Command) (*bot.Config, error) {
	configPath, _ := cmd.Root().PersistentFlags().GetString("config")

	var cfg *bot.Config
	switch {
	case configPath != "":
		loaded, err := bot.LoadConfigFromFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded

	default:
		if found := bot.FindConfigFile(); found != "" {
			loaded, err := bot.LoadConfigFromFile(found)
			if err != nil {
				return nil, fmt.Errorf("loading config from %s: %w", found, err)
			}
			slog.Info("config loaded", "path", found)
			cfg = loaded
		} else {
			slog.Info("no config file found, using defaults")
			cfg = bot.DefaultConfig()
		}
	}

	cfg.ApplyEnv()
	return cfg, nil
}

// newLogger builds the slog logger from config and the --verbose flag.
func newLogger(cmd *cobra.Command, cfg *bot.Config) *slog.Logger {
	verbose, _ := cmd.Root().PersistentFlags().GetBool("verbose")
	logLevel := slog.LevelInfo
	if verbose || cfg.Logging.Level == "debug" {
		logLevel = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.Logging.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	}
	return slog.New(handler)
}

// ownerJID completes a bare phone number into a full WhatsApp JID.
func ownerJID(owner string) string {
	if owner == "" || strings.Contains(owner, "@") {
		return owner
	}
	return owner + "@s.whatsapp.net"
}
