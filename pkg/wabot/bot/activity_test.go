package bot

import (
	"strings"
	"testing"
)

func TestActivityLog(t *testing.T) {
	l := NewActivityLog()

	if l.Len() != 0 || l.Last() != "" {
		t.Fatal("new log should be empty")
	}

	l.Record("chat (%s)", "a@s.whatsapp.net")
	l.Record("menu %s → %s", StateIdle, StateMainMenu)

	if l.Len() != 2 {
		t.Fatalf("Len = %d, want 2", l.Len())
	}
	if !strings.Contains(l.Last(), "menu IDLE") {
		t.Errorf("Last = %q, want the menu entry", l.Last())
	}

	entries := l.Drain()
	if len(entries) != 2 {
		t.Fatalf("Drain returned %d entries, want 2", len(entries))
	}
	// Entries are timestamped HH:MM.
	if !strings.Contains(entries[0], "chat (a@s.whatsapp.net)") {
		t.Errorf("entry = %q, want the chat line", entries[0])
	}

	if l.Len() != 0 {
		t.Error("Drain should reset the log")
	}
	if len(l.Drain()) != 0 {
		t.Error("second Drain should be empty")
	}
}
