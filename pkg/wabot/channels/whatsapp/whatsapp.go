// Package whatsapp implements the WhatsApp channel on top of whatsmeow.
// It owns pairing (QR in the terminal), the credential store, and the
// reconnect lifecycle; the bot core only sees channel-neutral messages.
package whatsapp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mdp/qrterminal/v3"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"

	"github.com/vkuttyp/whatsapp-standalone/pkg/wabot/channels"
)

const (
	// quotedCacheSize bounds the inbound messages kept for reply quoting.
	quotedCacheSize = 256

	reconnectBaseDelay = 2 * time.Second
	reconnectMaxDelay  = time.Minute
)

// Config holds the WhatsApp adapter settings.
type Config struct {
	// AuthDir holds the whatsmeow sqlite credential store.
	AuthDir string

	// ShowQR renders the pairing QR code in the terminal.
	ShowQR bool
}

// quotedRef is what we need to quote an earlier inbound message in a reply.
type quotedRef struct {
	chat   types.JID
	sender types.JID
	msg    *waE2E.Message
}

// Channel is the WhatsApp transport adapter.
type Channel struct {
	cfg    Config
	logger *slog.Logger

	client *whatsmeow.Client
	sink   chan<- *channels.IncomingMessage

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	loggedOut bool
	quoted    map[string]quotedRef
	quotedIDs []string
}

// New creates the adapter without connecting.
func New(cfg Config, logger *slog.Logger) *Channel {
	if cfg.AuthDir == "" {
		cfg.AuthDir = "./auth"
	}
	return &Channel{
		cfg:    cfg,
		logger: logger.With("component", "whatsapp"),
		quoted: make(map[string]quotedRef),
	}
}

// Name implements channels.Channel.
func (c *Channel) Name() string { return "whatsapp" }

// SetSink implements channels.Channel.
func (c *Channel) SetSink(sink chan<- *channels.IncomingMessage) { c.sink = sink }

// Connected reports whether the websocket is up.
func (c *Channel) Connected() bool {
	return c.client != nil && c.client.IsConnected()
}

// Start opens the credential store, connects, and renders the pairing QR
// when no device is stored yet.
func (c *Channel) Start(ctx context.Context) error {
	c.ctx, c.cancel = context.WithCancel(ctx)

	if err := os.MkdirAll(c.cfg.AuthDir, 0o755); err != nil {
		return fmt.Errorf("creating auth dir: %w", err)
	}

	dbPath := filepath.Join(c.cfg.AuthDir, "whatsapp.db")
	container, err := sqlstore.New(c.ctx, "sqlite3",
		fmt.Sprintf("file:%s?_foreign_keys=on", dbPath),
		waLog.Stdout("Database", "ERROR", true))
	if err != nil {
		return fmt.Errorf("opening credential store: %w", err)
	}

	device, err := container.GetFirstDevice(c.ctx)
	if err != nil {
		return fmt.Errorf("loading device: %w", err)
	}

	c.client = whatsmeow.NewClient(device, waLog.Stdout("Client", "ERROR", true))
	// Reconnection is handled by our own loop so logout stays terminal.
	c.client.EnableAutoReconnect = false
	c.client.AddEventHandler(c.handleEvent)

	if c.client.Store.ID == nil {
		// Fresh pairing: the QR channel must be requested before Connect.
		qrChan, err := c.client.GetQRChannel(c.ctx)
		if err != nil {
			return fmt.Errorf("requesting QR channel: %w", err)
		}
		if err := c.client.Connect(); err != nil {
			return fmt.Errorf("connecting: %w", err)
		}
		go c.pairLoop(qrChan)
		return nil
	}

	if err := c.client.Connect(); err != nil {
		return fmt.Errorf("connecting: %w", err)
	}
	return nil
}

// Stop disconnects. The stored credentials survive for the next run.
func (c *Channel) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	if c.client != nil {
		c.client.Disconnect()
	}
}

// pairLoop renders QR codes until pairing succeeds or fails.
func (c *Channel) pairLoop(qrChan <-chan whatsmeow.QRChannelItem) {
	for evt := range qrChan {
		switch evt.Event {
		case "code":
			if c.cfg.ShowQR {
				fmt.Println("Scan this QR code with WhatsApp (Linked Devices):")
				qrterminal.GenerateHalfBlock(evt.Code, qrterminal.L, os.Stdout)
			}
			c.logger.Info("pairing QR code issued")
		case "success":
			c.logger.Info("device paired")
		default:
			c.logger.Warn("pairing event", "event", evt.Event)
		}
	}
}

// handleEvent is the whatsmeow event callback.
func (c *Channel) handleEvent(evt any) {
	switch v := evt.(type) {
	case *events.Message:
		c.handleMessage(v)

	case *events.Connected:
		c.logger.Info("connected to WhatsApp")

	case *events.LoggedOut:
		// Terminal for this credential set: do not reconnect.
		c.mu.Lock()
		c.loggedOut = true
		c.mu.Unlock()
		c.logger.Error("logged out from WhatsApp, re-pairing required", "reason", v.Reason)

	case *events.Disconnected:
		c.mu.Lock()
		terminal := c.loggedOut
		c.mu.Unlock()
		if terminal || c.ctx.Err() != nil {
			return
		}
		c.logger.Warn("disconnected, reconnecting")
		go c.reconnectLoop()
	}
}

// reconnectLoop retries Connect with doubling backoff until it succeeds,
// the context ends, or a logout makes the disconnect terminal.
func (c *Channel) reconnectLoop() {
	delay := reconnectBaseDelay
	for attempt := 1; ; attempt++ {
		select {
		case <-c.ctx.Done():
			return
		case <-time.After(delay):
		}

		c.mu.Lock()
		terminal := c.loggedOut
		c.mu.Unlock()
		if terminal {
			return
		}
		if c.client.IsConnected() {
			return
		}

		if err := c.client.Connect(); err != nil {
			c.logger.Warn("reconnect failed", "attempt", attempt, "error", err)
			delay *= 2
			if delay > reconnectMaxDelay {
				delay = reconnectMaxDelay
			}
			continue
		}
		c.logger.Info("reconnected", "attempt", attempt)
		return
	}
}

// handleMessage converts an inbound whatsmeow message into the channel-
// neutral form and pushes it to the sink.
func (c *Channel) handleMessage(evt *events.Message) {
	// The bot never reacts to its own messages or status broadcasts.
	if evt.Info.IsFromMe || evt.Info.Chat.User == "status" {
		return
	}

	raw := evt.Message
	if raw == nil {
		return
	}

	msg := &channels.IncomingMessage{
		ID:       string(evt.Info.ID),
		Channel:  c.Name(),
		ChatID:   evt.Info.Chat.String(),
		From:     evt.Info.Sender.String(),
		PushName: evt.Info.PushName,
		IsGroup:  evt.Info.Chat.Server == types.GroupServer,
	}

	switch {
	case raw.GetConversation() != "":
		msg.Content = raw.GetConversation()

	case raw.GetExtendedTextMessage() != nil:
		msg.Content = raw.GetExtendedTextMessage().GetText()

	case raw.GetImageMessage() != nil:
		img := raw.GetImageMessage()
		msg.Content = img.GetCaption()
		msg.Media = &channels.MediaInfo{
			Type:     channels.MessageImage,
			MimeType: img.GetMimetype(),
			Filename: "image_" + time.Now().Format("20060102_150405") + ".jpg",
			Raw:      img,
		}

	case raw.GetAudioMessage() != nil && raw.GetAudioMessage().GetPTT():
		aud := raw.GetAudioMessage()
		msg.Media = &channels.MediaInfo{
			Type:     channels.MessageVoice,
			MimeType: aud.GetMimetype(),
			Filename: "voice_" + time.Now().Format("20060102_150405") + ".ogg",
			Raw:      aud,
		}

	default:
		// Stickers, polls, receipts and the rest are not bot input.
		return
	}

	c.remember(msg.ID, quotedRef{chat: evt.Info.Chat, sender: evt.Info.Sender, msg: raw})

	if c.sink != nil {
		c.sink <- msg
	}
}

// remember caches an inbound message for later reply quoting.
func (c *Channel) remember(id string, ref quotedRef) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.quoted[id]; !ok {
		c.quotedIDs = append(c.quotedIDs, id)
	}
	c.quoted[id] = ref

	for len(c.quotedIDs) > quotedCacheSize {
		oldest := c.quotedIDs[0]
		c.quotedIDs = c.quotedIDs[1:]
		delete(c.quoted, oldest)
	}
}

func (c *Channel) lookupQuoted(id string) (quotedRef, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ref, ok := c.quoted[id]
	return ref, ok
}

// Send implements channels.Channel. A non-empty ReplyTo that matches a
// cached inbound message produces a quoted reply.
func (c *Channel) Send(ctx context.Context, chatID string, out *channels.OutgoingMessage) error {
	if !c.Connected() {
		return fmt.Errorf("not connected to WhatsApp")
	}

	jid, err := types.ParseJID(chatID)
	if err != nil {
		return fmt.Errorf("parsing chat id %q: %w", chatID, err)
	}

	waMsg := &waE2E.Message{}
	if ref, ok := c.lookupQuoted(out.ReplyTo); out.ReplyTo != "" && ok {
		waMsg.ExtendedTextMessage = &waE2E.ExtendedTextMessage{
			Text: proto.String(out.Content),
			ContextInfo: &waE2E.ContextInfo{
				StanzaID:      proto.String(out.ReplyTo),
				Participant:   proto.String(ref.sender.String()),
				QuotedMessage: ref.msg,
			},
		}
	} else {
		waMsg.Conversation = proto.String(out.Content)
	}

	sendCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	if _, err := c.client.SendMessage(sendCtx, jid, waMsg); err != nil {
		return fmt.Errorf("sending message: %w", err)
	}
	return nil
}

// SendTyping implements channels.Channel.
func (c *Channel) SendTyping(ctx context.Context, chatID string) error {
	if !c.Connected() {
		return fmt.Errorf("not connected to WhatsApp")
	}
	jid, err := types.ParseJID(chatID)
	if err != nil {
		return fmt.Errorf("parsing chat id %q: %w", chatID, err)
	}
	return c.client.SendChatPresence(ctx, jid, types.ChatPresenceComposing, types.ChatPresenceMediaText)
}

// DownloadMedia implements channels.MediaChannel.
func (c *Channel) DownloadMedia(ctx context.Context, msg *channels.IncomingMessage) ([]byte, string, error) {
	if msg.Media == nil {
		return nil, "", fmt.Errorf("message has no media")
	}
	dl, ok := msg.Media.Raw.(whatsmeow.DownloadableMessage)
	if !ok {
		return nil, "", fmt.Errorf("media payload is not downloadable")
	}

	data, err := c.client.Download(ctx, dl)
	if err != nil {
		return nil, "", fmt.Errorf("downloading media: %w", err)
	}
	return data, msg.Media.MimeType, nil
}
