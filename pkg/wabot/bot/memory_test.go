package bot

import (
	"fmt"
	"testing"
)

func TestMemoryWindowAppendAndTrim(t *testing.T) {
	m := NewMemoryWindow(10)

	for i := 0; i < 7; i++ {
		m.Append("chat", fmt.Sprintf("question %d", i), fmt.Sprintf("answer %d", i))
	}

	hist := m.History("chat")
	if len(hist) != 10 {
		t.Fatalf("history length = %d, want 10", len(hist))
	}

	// Oldest pairs were dropped: the window starts at pair 2.
	if hist[0].Role != "user" || hist[0].Content != "question 2" {
		t.Errorf("oldest turn = %s %q, want user \"question 2\"", hist[0].Role, hist[0].Content)
	}
	if hist[9].Role != "assistant" || hist[9].Content != "answer 6" {
		t.Errorf("newest turn = %s %q, want assistant \"answer 6\"", hist[9].Role, hist[9].Content)
	}

	// Roles alternate user/assistant throughout.
	for i, turn := range hist {
		want := "user"
		if i%2 == 1 {
			want = "assistant"
		}
		if turn.Role != want {
			t.Errorf("turn %d role = %s, want %s", i, turn.Role, want)
		}
	}
}

func TestMemoryWindowIsolation(t *testing.T) {
	m := NewMemoryWindow(10)
	m.Append("a", "hi", "hello")
	m.Append("b", "hey", "yo")

	if len(m.History("a")) != 2 || len(m.History("b")) != 2 {
		t.Fatal("conversations should be independent")
	}

	// Mutating a returned history must not affect the stored buffer.
	hist := m.History("a")
	hist[0].Content = "tampered"
	if m.History("a")[0].Content != "hi" {
		t.Error("History must return a copy")
	}

	m.Forget("a")
	if len(m.History("a")) != 0 {
		t.Error("Forget should drop the buffer")
	}
	if len(m.History("b")) != 2 {
		t.Error("Forget must not touch other conversations")
	}
}

func TestMemoryWindowReset(t *testing.T) {
	m := NewMemoryWindow(10)
	for i := 0; i < 5; i++ {
		m.Append(fmt.Sprintf("chat-%d", i), "hi", "hello")
	}
	if n := m.Conversations(); n != 5 {
		t.Fatalf("Conversations = %d, want 5", n)
	}

	m.Reset()
	if n := m.Conversations(); n != 0 {
		t.Fatalf("Conversations after Reset = %d, want 0", n)
	}
}

func TestMemoryWindowDefaultCap(t *testing.T) {
	m := NewMemoryWindow(0)
	for i := 0; i < 20; i++ {
		m.Append("chat", "q", "a")
	}
	if n := len(m.History("chat")); n != DefaultMemoryCap {
		t.Fatalf("history length = %d, want %d", n, DefaultMemoryCap)
	}
}
