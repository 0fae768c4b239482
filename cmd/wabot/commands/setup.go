package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/vkuttyp/whatsapp-standalone/pkg/wabot/bot"
)

// newSetupCmd creates the `wabot setup` command for interactive configuration.
func newSetupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Interactive setup wizard",
		Long: `Starts an interactive wizard to create your initial config.yaml.
Asks for the bot name, your phone number, the model, and the API key.

Examples:
  wabot setup`,
		RunE: runSetup,
	}
}

func runSetup(cmd *cobra.Command, _ []string) error {
	target := "config.yaml"
	if _, err := os.Stat(target); err == nil {
		return fmt.Errorf("config.yaml already exists. Remove it first or edit it directly")
	}

	cfg := bot.DefaultConfig()
	var (
		owner      string
		apiKey     string
		useKeyring = bot.KeyringAvailable()
	)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Bot name").
				Value(&cfg.Name),

			huh.NewInput().
				Title("Your phone number (owner)").
				Description("Country code, no +, spaces or dashes. Example: 919999998888").
				Validate(func(s string) error {
					if len(normalizePhone(s)) < 10 {
						return fmt.Errorf("include the country code, digits only")
					}
					return nil
				}).
				Value(&owner),

			huh.NewInput().
				Title("Menu command prefix").
				Description("Typing <prefix>menu opens the main menu").
				Value(&cfg.Bot.CommandPrefix),

			huh.NewSelect[string]().
				Title("Model").
				Options(
					huh.NewOption("GPT-4o Mini — fast and cheap (default)", "gpt-4o-mini"),
					huh.NewOption("GPT-4o — great all-around", "gpt-4o"),
					huh.NewOption("GPT-5 Mini — cost-effective", "gpt-5-mini"),
					huh.NewOption("GLM-4.7 — balanced capability", "glm-4.7"),
				).
				Value(&cfg.Model),

			huh.NewInput().
				Title("API base URL").
				Description("Any OpenAI-compatible endpoint").
				Value(&cfg.API.BaseURL),

			huh.NewInput().
				Title("API key").
				Description("Leave empty to set WABOT_API_KEY later").
				EchoMode(huh.EchoModePassword).
				Value(&apiKey),
		),
	)

	if err := form.Run(); err != nil {
		return fmt.Errorf("setup aborted: %w", err)
	}

	cfg.Bot.Owner = ownerJID(normalizePhone(owner))

	if apiKey != "" {
		if useKeyring {
			if err := bot.StoreKeyring("api_key", apiKey); err != nil {
				fmt.Printf("Keyring failed (%v), writing the key to .env instead.\n", err)
				useKeyring = false
			} else {
				fmt.Println("API key stored in the OS keyring.")
			}
		}
		if !useKeyring {
			if err := appendEnvFile("WABOT_API_KEY", apiKey); err != nil {
				return fmt.Errorf("writing .env: %w", err)
			}
			fmt.Println("API key written to .env (add .env to your .gitignore).")
		}
	}

	if err := bot.SaveConfigToFile(cfg, target); err != nil {
		return err
	}

	fmt.Printf("\nCreated %s.\n", target)
	fmt.Println("Run 'wabot serve' and scan the QR code with WhatsApp (Linked Devices).")
	return nil
}

// normalizePhone strips +, spaces, dashes and parentheses.
func normalizePhone(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}

// appendEnvFile appends KEY=value to .env, creating it with 0600 if needed.
func appendEnvFile(key, value string) error {
	f, err := os.OpenFile(".env", os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = fmt.Fprintf(f, "%s=%s\n", key, value)
	return err
}
