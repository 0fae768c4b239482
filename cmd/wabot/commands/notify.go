package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vkuttyp/whatsapp-standalone/pkg/wabot/channels"
	"github.com/vkuttyp/whatsapp-standalone/pkg/wabot/channels/whatsapp"
)

const defaultNotifyText = "🚀 Bot deployed and online."

// newNotifyCmd creates the `wabot notify` command: a one-shot message to
// the owner, for deploy hooks and cron alerts.
func newNotifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notify [message]",
		Short: "Send a one-off message to the owner",
		Long: `Connect with the stored credentials, send a single message to the owner
conversation, and exit. Intended for deploy pipelines.

Examples:
  wabot notify
  wabot notify "Nightly backup finished"`,
		Args: cobra.MaximumNArgs(1),
		RunE: runNotify,
	}

	cmd.Flags().Duration("timeout", 60*time.Second, "how long to wait for the connection")
	return cmd
}

func runNotify(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	owner := ownerJID(cfg.Bot.Owner)
	if owner == "" {
		return fmt.Errorf("no owner configured. Set bot.owner in config.yaml or WABOT_OWNER")
	}

	text := defaultNotifyText
	if len(args) == 1 && args[0] != "" {
		text = args[0]
	}

	logger := newLogger(cmd, cfg)

	timeout, _ := cmd.Flags().GetDuration("timeout")
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	wa := whatsapp.New(whatsapp.Config{AuthDir: cfg.Bot.AuthDir, ShowQR: false}, logger)
	if err := wa.Start(ctx); err != nil {
		return fmt.Errorf("connecting: %w", err)
	}
	defer wa.Stop()

	// The websocket needs a moment after Connect before sends go through.
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for !wa.Connected() {
		select {
		case <-ctx.Done():
			return fmt.Errorf("connection not ready in time. Pair the device with 'wabot serve' first")
		case <-ticker.C:
		}
	}

	if err := wa.Send(ctx, owner, &channels.OutgoingMessage{Content: text}); err != nil {
		return fmt.Errorf("sending notification: %w", err)
	}

	logger.Info("notification sent", "to", owner)
	return nil
}
