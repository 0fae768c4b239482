package channels

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Manager owns the registered channels and funnels their inbound messages
// into a single stream consumed by the dispatcher.
type Manager struct {
	channels map[string]Channel
	inbound  chan *IncomingMessage
	mu       sync.RWMutex
	started  bool
	logger   *slog.Logger
}

// NewManager creates an empty channel manager.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		channels: make(map[string]Channel),
		inbound:  make(chan *IncomingMessage, 64),
		logger:   logger,
	}
}

// Register adds a channel. Fails after Start or on duplicate names.
func (m *Manager) Register(ch Channel) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return fmt.Errorf("cannot register channel %q after start", ch.Name())
	}
	if _, ok := m.channels[ch.Name()]; ok {
		return fmt.Errorf("channel %q already registered", ch.Name())
	}

	ch.SetSink(m.inbound)
	m.channels[ch.Name()] = ch
	return nil
}

// Start connects all registered channels. Zero channels is allowed
// (local chat mode).
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for name, ch := range m.channels {
		if err := ch.Start(ctx); err != nil {
			return fmt.Errorf("starting channel %q: %w", name, err)
		}
		m.logger.Info("channel started", "channel", name)
	}
	m.started = true
	return nil
}

// Stop disconnects all channels and closes the inbound stream.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started {
		return
	}
	for name, ch := range m.channels {
		ch.Stop()
		m.logger.Info("channel stopped", "channel", name)
	}
	m.started = false
	close(m.inbound)
}

// Messages returns the merged inbound stream.
func (m *Manager) Messages() <-chan *IncomingMessage {
	return m.inbound
}

// Channel looks up a registered channel by name.
func (m *Manager) Channel(name string) (Channel, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ch, ok := m.channels[name]
	return ch, ok
}

// Send delivers an outgoing message through the named channel.
func (m *Manager) Send(ctx context.Context, channel, chatID string, msg *OutgoingMessage) error {
	ch, ok := m.Channel(channel)
	if !ok {
		return fmt.Errorf("unknown channel %q", channel)
	}
	return ch.Send(ctx, chatID, msg)
}

// SendTyping shows a composing indicator on the named channel. Failures are
// logged and swallowed: presence is cosmetic.
func (m *Manager) SendTyping(ctx context.Context, channel, chatID string) {
	ch, ok := m.Channel(channel)
	if !ok {
		return
	}
	if err := ch.SendTyping(ctx, chatID); err != nil {
		m.logger.Debug("typing indicator failed", "channel", channel, "error", err)
	}
}
