package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/vkuttyp/whatsapp-standalone/pkg/wabot/bot"
)

// newConfigCmd creates the `wabot config` command.
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage bot configuration",
		Long: `Manage wabot configuration.

Examples:
  wabot config init
  wabot config show
  wabot config validate
  wabot config set-key`,
	}

	cmd.AddCommand(
		newConfigInitCmd(),
		newConfigShowCmd(),
		newConfigValidateCmd(),
		newConfigSetKeyCmd(),
	)

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create a default config.yaml",
		RunE: func(_ *cobra.Command, _ []string) error {
			target := "config.yaml"

			if _, err := os.Stat(target); err == nil {
				return fmt.Errorf("config.yaml already exists. Remove it first or edit it directly")
			}

			cfg := bot.DefaultConfig()
			if err := bot.SaveConfigToFile(cfg, target); err != nil {
				return err
			}

			fmt.Printf("Created %s with default configuration.\n", target)
			fmt.Println("\nNext steps:")
			fmt.Println("  1. Edit config.yaml and set bot.owner to your phone number")
			fmt.Println("  2. Run: wabot config set-key")
			fmt.Println("  3. Run: wabot serve and scan the QR code with WhatsApp")
			return nil
		},
	}
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, path, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			// The key never leaves the keyring via this command.
			if cfg.API.APIKey != "" {
				cfg.API.APIKey = "***"
			}

			fmt.Printf("# Loaded from: %s\n\n", path)

			data, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			fmt.Print(string(data))
			return nil
		},
	}
}

func newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, path, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			fmt.Printf("Config: %s\n", path)
			fmt.Printf("  Name:     %s\n", cfg.Name)
			fmt.Printf("  Model:    %s\n", cfg.Model)
			fmt.Printf("  Prefix:   %s\n", cfg.Bot.CommandPrefix)
			fmt.Printf("  Timeout:  %dm\n", cfg.Bot.TimeoutMinutes)
			fmt.Printf("  Owner:    %s\n", orUnset(cfg.Bot.Owner))
			fmt.Printf("  Memory:   %d turns, sweep above %d conversations\n",
				cfg.Memory.Cap, cfg.Memory.SweepThreshold)
			fmt.Printf("  Media:    enabled=%v max=%d bytes\n", cfg.Media.Enabled, cfg.Media.MaxBytes)
			fmt.Printf("  Schedule: summary %q, sweep %q\n",
				cfg.Maintenance.SummarySpec, cfg.Maintenance.SweepSpec)

			if cfg.Bot.CommandPrefix == "" {
				return fmt.Errorf("bot.command_prefix must not be empty")
			}
			if cfg.Bot.TimeoutMinutes <= 0 {
				return fmt.Errorf("bot.timeout_minutes must be positive")
			}
			if cfg.Memory.Cap <= 0 {
				return fmt.Errorf("memory.cap must be positive")
			}

			fmt.Println("\nConfiguration is valid.")
			return nil
		},
	}
}

// newConfigSetKeyCmd stores the API key in the OS keyring, read without echo.
func newConfigSetKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-key",
		Short: "Store the API key in the OS keyring",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !bot.KeyringAvailable() {
				return fmt.Errorf("OS keyring not available. Use a .env file with WABOT_API_KEY instead")
			}

			fmt.Print("API key: ")
			keyBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
			fmt.Println()
			if err != nil {
				return fmt.Errorf("reading key: %w", err)
			}
			if len(keyBytes) == 0 {
				return fmt.Errorf("empty key, nothing stored")
			}

			cfg, _ := resolveConfig(cmd)
			logger := newLogger(cmd, cfg)
			return bot.StoreAPIKey(string(keyBytes), logger)
		},
	}
}

// loadConfig loads the config from the --config flag or auto-discovers it.
func loadConfig(cmd *cobra.Command) (*bot.Config, string, error) {
	configPath, _ := cmd.Root().PersistentFlags().GetString("config")

	if configPath == "" {
		configPath = bot.FindConfigFile()
	}

	if configPath == "" {
		return nil, "", fmt.Errorf("no config file found.\nRun 'wabot config init' to create one, or use --config <path>")
	}

	cfg, err := bot.LoadConfigFromFile(configPath)
	if err != nil {
		return nil, configPath, fmt.Errorf("loading config from %s: %w", configPath, err)
	}

	return cfg, configPath, nil
}

func orUnset(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}
