package channels

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"
)

// stubChannel is a minimal Channel for manager tests.
type stubChannel struct {
	name     string
	sink     chan<- *IncomingMessage
	started  bool
	stopped  bool
	startErr error
	sent     []*OutgoingMessage
}

func (s *stubChannel) Name() string { return s.name }

func (s *stubChannel) Start(context.Context) error {
	s.started = true
	return s.startErr
}

func (s *stubChannel) Stop() { s.stopped = true }

func (s *stubChannel) SetSink(sink chan<- *IncomingMessage) { s.sink = sink }

func (s *stubChannel) Send(_ context.Context, _ string, msg *OutgoingMessage) error {
	s.sent = append(s.sent, msg)
	return nil
}

func (s *stubChannel) SendTyping(context.Context, string) error { return nil }

func testManager() *Manager {
	return NewManager(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestManagerRegister(t *testing.T) {
	m := testManager()

	ch := &stubChannel{name: "whatsapp"}
	if err := m.Register(ch); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if ch.sink == nil {
		t.Fatal("Register must hand the channel its sink")
	}

	if err := m.Register(&stubChannel{name: "whatsapp"}); err == nil {
		t.Fatal("duplicate registration must fail")
	}

	got, ok := m.Channel("whatsapp")
	if !ok || got != Channel(ch) {
		t.Fatal("Channel lookup failed")
	}
	if _, ok := m.Channel("telegram"); ok {
		t.Fatal("unknown channel lookup should miss")
	}
}

func TestManagerStartStop(t *testing.T) {
	m := testManager()
	ch := &stubChannel{name: "whatsapp"}
	m.Register(ch)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !ch.started {
		t.Fatal("channel was not started")
	}

	if err := m.Register(&stubChannel{name: "late"}); err == nil {
		t.Fatal("registration after Start must fail")
	}

	m.Stop()
	if !ch.stopped {
		t.Fatal("channel was not stopped")
	}
}

func TestManagerStartFailure(t *testing.T) {
	m := testManager()
	m.Register(&stubChannel{name: "broken", startErr: fmt.Errorf("no socket")})

	if err := m.Start(context.Background()); err == nil {
		t.Fatal("Start must surface channel start errors")
	}
}

func TestManagerMessageFlow(t *testing.T) {
	m := testManager()
	ch := &stubChannel{name: "whatsapp"}
	m.Register(ch)
	if err := m.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	want := &IncomingMessage{Channel: "whatsapp", ChatID: "a@s.whatsapp.net", Content: "hi"}
	ch.sink <- want

	select {
	case got := <-m.Messages():
		if got != want {
			t.Fatalf("got %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("message never arrived on the merged stream")
	}
}

func TestManagerSend(t *testing.T) {
	m := testManager()
	ch := &stubChannel{name: "whatsapp"}
	m.Register(ch)

	out := &OutgoingMessage{Content: "hello"}
	if err := m.Send(context.Background(), "whatsapp", "a@s.whatsapp.net", out); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(ch.sent) != 1 || ch.sent[0] != out {
		t.Fatalf("sent = %+v", ch.sent)
	}

	if err := m.Send(context.Background(), "telegram", "x", out); err == nil {
		t.Fatal("Send to an unknown channel must fail")
	}
}
