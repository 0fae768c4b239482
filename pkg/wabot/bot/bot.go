package bot

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vkuttyp/whatsapp-standalone/pkg/wabot/channels"
)

// apologyReply is the fixed user-facing text substituted for any failed
// completion or vision call. Failures never propagate past the dispatcher.
const apologyReply = "Sorry, I couldn't process that right now. Please try again in a moment. 🙏"

// mediaPlaceholderTurn is recorded in the memory window in place of raw
// attachment bytes.
const mediaPlaceholderTurn = "[sent media]"

// Bot is the dispatcher: it owns the session store, the memory window and
// the activity log, and sequences every inbound message through timeout
// check, menu step, media analysis and AI chat.
// Message flow: receive → timeout → admin command → menu → media → AI → persist.
type Bot struct {
	config     *Config
	channelMgr *channels.Manager
	sessions   *SessionStore
	memory     *MemoryWindow
	activity   *ActivityLog
	completer  Completer
	maint      *Maintenance

	startTime time.Time
	logger    *slog.Logger

	// now is swappable in tests.
	now func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Bot with all dependencies wired. A nil completer is allowed
// for menu-only operation; AI turns then degrade to the apology reply.
func New(cfg *Config, logger *slog.Logger) *Bot {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	b := &Bot{
		config:     cfg,
		channelMgr: channels.NewManager(logger.With("component", "channels")),
		sessions:   NewSessionStore(cfg.SessionFile(), logger),
		memory:     NewMemoryWindow(cfg.Memory.Cap),
		activity:   NewActivityLog(),
		completer:  NewLLMClient(cfg, logger),
		startTime:  time.Now(),
		logger:     logger,
		now:        time.Now,
	}
	b.maint = NewMaintenance(b, cfg.Maintenance, logger)
	return b
}

// SetCompleter replaces the completion capability (tests, local chat).
func (b *Bot) SetCompleter(c Completer) { b.completer = c }

// ChannelManager returns the channel manager for external registration.
func (b *Bot) ChannelManager() *channels.Manager { return b.channelMgr }

// Sessions returns the session store.
func (b *Bot) Sessions() *SessionStore { return b.sessions }

// Memory returns the memory window.
func (b *Bot) Memory() *MemoryWindow { return b.memory }

// Activity returns the activity log.
func (b *Bot) Activity() *ActivityLog { return b.activity }

// Uptime returns the time since the bot was created.
func (b *Bot) Uptime() time.Duration { return time.Since(b.startTime) }

// Start connects the channels, starts maintenance, and begins the single
// message-processing loop. Messages are handled strictly one at a time, in
// arrival order — session and memory mutation is serialized by construction.
func (b *Bot) Start(ctx context.Context) error {
	b.ctx, b.cancel = context.WithCancel(ctx)
	b.done = make(chan struct{})

	b.logger.Info("starting bot",
		"name", b.config.Name,
		"model", b.config.Model,
		"prefix", b.config.Bot.CommandPrefix,
		"timeout_minutes", b.config.Bot.TimeoutMinutes,
	)

	if err := b.channelMgr.Start(b.ctx); err != nil {
		return fmt.Errorf("failed to start channels: %w", err)
	}

	if b.config.Maintenance.Enabled {
		if err := b.maint.Start(); err != nil {
			b.logger.Error("failed to start maintenance", "error", err)
		}
	}

	go b.messageLoop()

	b.logger.Info("bot started")
	return nil
}

// Stop shuts down maintenance, channels and the message loop.
func (b *Bot) Stop() {
	b.logger.Info("stopping bot...")

	if b.cancel != nil {
		b.cancel()
	}
	b.maint.Stop()
	b.channelMgr.Stop()
	if b.done != nil {
		<-b.done
	}

	b.logger.Info("bot stopped")
}

// messageLoop consumes the merged inbound stream. One worker: an in-flight
// external call suspends only the current message, and no two messages are
// ever processed concurrently.
func (b *Bot) messageLoop() {
	defer close(b.done)
	for {
		select {
		case msg, ok := <-b.channelMgr.Messages():
			if !ok {
				return
			}
			b.HandleMessage(msg)
		case <-b.ctx.Done():
			return
		}
	}
}

// HandleMessage processes a single inbound message end to end. Exported for
// the local chat REPL and tests; the serve loop is the normal caller.
func (b *Bot) HandleMessage(msg *channels.IncomingMessage) {
	start := time.Now()
	text := strings.TrimSpace(msg.Content)

	// Empty message with no attachment is a no-op, not an error.
	if text == "" && msg.Media == nil {
		return
	}

	runID := uuid.New().String()
	logger := b.logger.With(
		"run_id", runID,
		"channel", msg.Channel,
		"chat_id", msg.ChatID,
	)
	logger.Info("incoming message",
		"content_preview", truncate(text, 50),
		"has_media", msg.Media != nil,
	)

	now := b.now()
	sess := b.sessions.Get(msg.ChatID, now)

	// Timeout rule: a non-IDLE session past the inactivity window drops to
	// IDLE, the user gets a notice, and the same input is re-evaluated
	// against IDLE rules — a command right after expiry still works.
	var notice string
	if sess.State != StateIdle && now.Sub(sess.LastSeenTime()) > b.config.Timeout() {
		logger.Info("session expired", "state", sess.State, "last_seen", sess.LastSeenTime())
		sess.State = StateIdle
		notice = SessionExpiredNotice
	}

	// Owner admin commands short-circuit everything else.
	if IsCommand(text) && b.isOwner(msg.ChatID) {
		result := b.HandleCommand(msg.ChatID, text)
		if result.Handled {
			b.send(msg, withNotice(notice, result.Response), false)
			b.sessions.Upsert(msg.ChatID, sess.State, now)
			logger.Info("admin command processed", "duration_ms", time.Since(start).Milliseconds())
			return
		}
	}

	// Menu layer. A handled step is the whole turn: menu replies never also
	// trigger AI chat or media analysis.
	if res := Step(sess.State, text, b.config.Bot.CommandPrefix); res.Handled {
		b.send(msg, withNotice(notice, res.Reply), false)
		b.sessions.Upsert(msg.ChatID, res.Next, now)
		b.activity.Record("menu %s → %s (%s)", sess.State, res.Next, msg.ChatID)
		logger.Info("menu step",
			"from", sess.State, "to", res.Next,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return
	}

	// Media branch: orthogonal to the menu state, which is re-persisted
	// unchanged.
	if msg.Media != nil {
		reply := b.analyzeMedia(msg, text, logger)
		b.memory.Append(msg.ChatID, mediaPlaceholderTurn, reply)
		b.send(msg, withNotice(notice, reply), true)
		b.sessions.Upsert(msg.ChatID, sess.State, now)
		b.activity.Record("media %s (%s)", msg.Media.Type, msg.ChatID)
		logger.Info("media processed", "duration_ms", time.Since(start).Milliseconds())
		return
	}

	// AI chat on whatever text is left.
	if text != "" {
		b.channelMgr.SendTyping(b.ctx, msg.Channel, msg.ChatID)
		reply := b.chat(msg.ChatID, text, logger)
		b.memory.Append(msg.ChatID, text, reply)
		b.send(msg, withNotice(notice, reply), false)
		b.sessions.Upsert(msg.ChatID, sess.State, now)
		b.activity.Record("chat (%s)", msg.ChatID)
		logger.Info("chat processed", "duration_ms", time.Since(start).Milliseconds())
	}
}

// chat runs a completion over the conversation's memory window. Any failure
// degrades to the fixed apology — the single place that policy is applied
// for text turns.
func (b *Bot) chat(chatID, text string, logger *slog.Logger) string {
	if b.completer == nil {
		return apologyReply
	}

	reply, err := b.completer.Complete(b.context(), b.composePrompt(), b.memory.History(chatID), text)
	if err != nil {
		logger.Warn("completion failed", "error", err)
		return apologyReply
	}
	return reply
}

// analyzeMedia downloads the attachment and runs it through the vision
// model with the caption (or the default prompt). Failures degrade to the
// apology reply; oversized or undownloadable media too.
func (b *Bot) analyzeMedia(msg *channels.IncomingMessage, caption string, logger *slog.Logger) string {
	if !b.config.Media.Enabled || b.completer == nil {
		return apologyReply
	}

	ch, ok := b.channelMgr.Channel(msg.Channel)
	if !ok {
		return apologyReply
	}
	mc, ok := ch.(channels.MediaChannel)
	if !ok {
		return apologyReply
	}

	b.channelMgr.SendTyping(b.context(), msg.Channel, msg.ChatID)

	data, mimeType, err := mc.DownloadMedia(b.context(), msg)
	if err != nil {
		logger.Warn("media download failed", "error", err)
		return apologyReply
	}
	if int64(len(data)) > b.config.Media.MaxBytes {
		logger.Warn("media too large", "size", len(data), "max", b.config.Media.MaxBytes)
		return apologyReply
	}

	prompt := caption
	if prompt == "" {
		prompt = b.config.Media.DefaultPrompt
	}

	reply, err := b.completer.CompleteWithVision(b.context(),
		base64.StdEncoding.EncodeToString(data), mimeType, prompt)
	if err != nil {
		logger.Warn("vision call failed", "error", err)
		return apologyReply
	}
	return reply
}

// composePrompt builds the system prompt for AI chat.
func (b *Bot) composePrompt() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are %s, a helpful WhatsApp assistant. Keep replies short and conversational.", b.config.Name)
	if b.config.Instructions != "" {
		sb.WriteString("\n\n")
		sb.WriteString(b.config.Instructions)
	}
	return sb.String()
}

// send delivers at most one outbound message for the turn.
func (b *Bot) send(original *channels.IncomingMessage, content string, quote bool) {
	if content == "" {
		return
	}
	out := &channels.OutgoingMessage{Content: content}
	if quote {
		out.ReplyTo = original.ID
	}
	if err := b.channelMgr.Send(b.context(), original.Channel, original.ChatID, out); err != nil {
		b.logger.Error("failed to send reply",
			"channel", original.Channel,
			"chat_id", original.ChatID,
			"error", err,
		)
	}
}

// SendToOwner delivers a message to the owner conversation on the named
// channel. Used by the daily summary.
func (b *Bot) SendToOwner(channel, content string) error {
	owner := b.config.Bot.Owner
	if owner == "" {
		return fmt.Errorf("no owner configured")
	}
	return b.channelMgr.Send(b.context(), channel, owner, &channels.OutgoingMessage{Content: content})
}

func (b *Bot) isOwner(chatID string) bool {
	return b.config.Bot.Owner != "" && chatID == b.config.Bot.Owner
}

// context returns the bot's run context, or Background before Start.
func (b *Bot) context() context.Context {
	if b.ctx != nil {
		return b.ctx
	}
	return context.Background()
}

// withNotice prepends the expiry notice to the turn's response.
func withNotice(notice, reply string) string {
	if notice == "" {
		return reply
	}
	if reply == "" {
		return notice
	}
	return notice + "\n\n" + reply
}
