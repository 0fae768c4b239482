package health

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type stubProbe struct {
	connected bool
}

func (p *stubProbe) Uptime() time.Duration  { return 90 * time.Second }
func (p *stubProbe) SessionCount() int      { return 3 }
func (p *stubProbe) ConversationCount() int { return 2 }
func (p *stubProbe) Connected() bool        { return p.connected }
func (p *stubProbe) LastActivity() string   { return "10:30 chat (a@s.whatsapp.net)" }

func newTestServer(connected bool) *Server {
	return NewServer(":0", &stubProbe{connected: connected},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestHealthzOK(t *testing.T) {
	s := newTestServer(true)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.handleHealthz(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}

	var got status
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if got.Status != "ok" {
		t.Errorf("status field = %q", got.Status)
	}
	if got.UptimeSec != 90 {
		t.Errorf("uptime = %d, want 90", got.UptimeSec)
	}
	if got.Sessions != 3 || got.Conversations != 2 {
		t.Errorf("counts = %d/%d, want 3/2", got.Sessions, got.Conversations)
	}
	if !got.Connected {
		t.Error("connected should be true")
	}
	if got.LastActivity == "" {
		t.Error("last activity missing")
	}
}

func TestHealthzDegradedWhenDisconnected(t *testing.T) {
	s := newTestServer(false)

	rec := httptest.NewRecorder()
	s.handleHealthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}

	var got status
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if got.Status != "degraded" {
		t.Errorf("status field = %q, want degraded", got.Status)
	}
}
