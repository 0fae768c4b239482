package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vkuttyp/whatsapp-standalone/pkg/wabot/bot"
	"github.com/vkuttyp/whatsapp-standalone/pkg/wabot/channels/whatsapp"
	"github.com/vkuttyp/whatsapp-standalone/pkg/wabot/health"
)

// newServeCmd creates the `wabot serve` command that starts the daemon.
func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the bot daemon",
		Long: `Start wabot as a daemon: connect to WhatsApp (pairing via QR on first
run), process messages, and run the scheduled maintenance jobs.

Examples:
  wabot serve
  wabot serve --config ./config.yaml
  wabot serve --no-qr`,
		RunE: runServe,
	}

	cmd.Flags().Bool("no-qr", false, "do not render the pairing QR code")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	cfg.Bot.Owner = ownerJID(cfg.Bot.Owner)

	logger := newLogger(cmd, cfg)
	bot.ResolveAPIKey(cfg, logger)

	b := bot.New(cfg, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	noQR, _ := cmd.Flags().GetBool("no-qr")
	wa := whatsapp.New(whatsapp.Config{
		AuthDir: cfg.Bot.AuthDir,
		ShowQR:  !noQR,
	}, logger)
	if err := b.ChannelManager().Register(wa); err != nil {
		return fmt.Errorf("registering WhatsApp channel: %w", err)
	}

	if err := b.Start(ctx); err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}

	var healthSrv *health.Server
	if cfg.Health.Enabled {
		healthSrv = health.NewServer(cfg.Health.Addr, &healthProbe{bot: b, wa: wa}, logger)
		healthSrv.Start()
	}

	logger.Info("wabot running. Press Ctrl+C to stop.",
		"name", cfg.Name,
		"prefix", cfg.Bot.CommandPrefix,
		"owner_set", cfg.Bot.Owner != "",
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received, stopping...")
	if healthSrv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		healthSrv.Stop(shutdownCtx)
		shutdownCancel()
	}
	b.Stop()

	return nil
}

// healthProbe adapts the running bot to the health endpoint.
type healthProbe struct {
	bot *bot.Bot
	wa  *whatsapp.Channel
}

func (p *healthProbe) Uptime() time.Duration  { return p.bot.Uptime() }
func (p *healthProbe) SessionCount() int      { return p.bot.Sessions().Len() }
func (p *healthProbe) ConversationCount() int { return p.bot.Memory().Conversations() }
func (p *healthProbe) Connected() bool        { return p.wa != nil && p.wa.Connected() }
func (p *healthProbe) LastActivity() string   { return p.bot.Activity().Last() }
