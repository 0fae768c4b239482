// Package channels defines the channel-neutral message types and the
// interfaces a messaging transport must implement to plug into the bot.
package channels

import "context"

// MessageType identifies the payload carried by an incoming message.
type MessageType string

const (
	MessageText  MessageType = "text"
	MessageImage MessageType = "image"
	MessageVoice MessageType = "voice"
)

// MediaInfo describes an attachment on an incoming message. The raw bytes
// are fetched lazily through MediaChannel.DownloadMedia.
type MediaInfo struct {
	Type     MessageType
	MimeType string
	Filename string

	// Raw carries the transport-specific message payload needed to
	// download the attachment (e.g. the whatsmeow proto message).
	Raw any
}

// IncomingMessage is a single inbound message, already filtered of
// self-authored events by the transport adapter.
type IncomingMessage struct {
	ID       string
	Channel  string
	ChatID   string
	From     string
	PushName string
	Content  string
	IsGroup  bool
	Media    *MediaInfo
}

// OutgoingMessage is a reply to be delivered by a transport.
type OutgoingMessage struct {
	Content string
	// ReplyTo quotes the original message when the transport supports it.
	ReplyTo string
}

// Channel is a messaging transport (WhatsApp, loopback, ...).
type Channel interface {
	Name() string

	// Start connects the transport and begins delivering inbound messages
	// to the sink registered via SetSink. It must not block.
	Start(ctx context.Context) error
	Stop()

	Send(ctx context.Context, chatID string, msg *OutgoingMessage) error
	SendTyping(ctx context.Context, chatID string) error

	// SetSink registers the inbound message sink. Must be called before Start.
	SetSink(sink chan<- *IncomingMessage)
}

// MediaChannel is implemented by transports that can fetch attachment bytes.
type MediaChannel interface {
	Channel
	DownloadMedia(ctx context.Context, msg *IncomingMessage) (data []byte, mimeType string, err error)
}
