package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/vkuttyp/whatsapp-standalone/pkg/wabot/bot"
	"github.com/vkuttyp/whatsapp-standalone/pkg/wabot/channels"
)

// newChatCmd creates the `wabot chat` command: the full message pipeline
// (menu, memory, AI) against a local console instead of WhatsApp.
func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Chat with the bot locally",
		Long: `Run the bot against your terminal. The same menu state machine and AI
pipeline as 'wabot serve', without a WhatsApp connection. Useful for
trying prompts and menu flows before going live.

Examples:
  wabot chat
  wabot chat --config ./config.yaml`,
		RunE: runChat,
	}
}

func runChat(cmd *cobra.Command, _ []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	// Local runs keep their state out of the real session file.
	cfg.Bot.DataDir = ".wabot-local"
	cfg.Maintenance.Enabled = false

	logger := newLogger(cmd, cfg)
	bot.ResolveAPIKey(cfg, logger)

	b := bot.New(cfg, logger)
	if err := b.ChannelManager().Register(&consoleChannel{}); err != nil {
		return fmt.Errorf("registering console channel: %w", err)
	}

	rl, err := readline.New("you> ")
	if err != nil {
		return fmt.Errorf("initializing readline: %w", err)
	}
	defer rl.Close()

	fmt.Printf("Chatting with %s. Type %smenu for the menu, /exit to quit.\n\n",
		cfg.Name, cfg.Bot.CommandPrefix)

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "/exit" || line == "/quit" {
			break
		}
		if line == "" {
			continue
		}

		b.HandleMessage(&channels.IncomingMessage{
			Channel: "console",
			ChatID:  "local",
			From:    "local",
			Content: line,
		})
	}

	fmt.Println("Bye.")
	return nil
}

// consoleChannel prints outbound messages to the terminal. It never
// produces inbound messages; the REPL feeds the bot directly.
type consoleChannel struct{}

func (c *consoleChannel) Name() string                             { return "console" }
func (c *consoleChannel) Start(context.Context) error              { return nil }
func (c *consoleChannel) Stop()                                    {}
func (c *consoleChannel) SetSink(chan<- *channels.IncomingMessage) {}
func (c *consoleChannel) SendTyping(context.Context, string) error { return nil }

func (c *consoleChannel) Send(_ context.Context, _ string, msg *channels.OutgoingMessage) error {
	fmt.Printf("bot> %s\n\n", msg.Content)
	return nil
}
