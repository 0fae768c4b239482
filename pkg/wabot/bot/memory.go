package bot

import "sync"

// Turn is a single entry in a conversation's recent history.
type Turn struct {
	Role    string // "user" or "assistant"
	Content string
}

// DefaultMemoryCap is the reference window size: 5 user/assistant pairs.
const DefaultMemoryCap = 10

// MemoryWindow holds a bounded recent-turn buffer per conversation. It is
// in-process only: a restart clears it, unlike the durable session store.
// The mutex matters because the hourly sweep runs on the cron goroutine
// while the dispatcher may be appending.
type MemoryWindow struct {
	cap     int
	buffers map[string][]Turn
	mu      sync.Mutex
}

// NewMemoryWindow creates a window with the given per-conversation cap.
// A non-positive cap falls back to DefaultMemoryCap.
func NewMemoryWindow(capacity int) *MemoryWindow {
	if capacity <= 0 {
		capacity = DefaultMemoryCap
	}
	return &MemoryWindow{
		cap:     capacity,
		buffers: make(map[string][]Turn),
	}
}

// Append records a user turn and the model's reply, then trims the oldest
// entries until the buffer fits the cap.
func (m *MemoryWindow) Append(id, userTurn, botTurn string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	buf := append(m.buffers[id],
		Turn{Role: "user", Content: userTurn},
		Turn{Role: "assistant", Content: botTurn},
	)
	if excess := len(buf) - m.cap; excess > 0 {
		buf = buf[excess:]
	}
	m.buffers[id] = buf
}

// History returns a copy of the conversation's buffer, oldest first.
func (m *MemoryWindow) History(id string) []Turn {
	m.mu.Lock()
	defer m.mu.Unlock()

	buf := m.buffers[id]
	out := make([]Turn, len(buf))
	copy(out, buf)
	return out
}

// Conversations returns the number of distinct conversations tracked.
func (m *MemoryWindow) Conversations() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.buffers)
}

// Forget drops a single conversation's buffer.
func (m *MemoryWindow) Forget(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.buffers, id)
}

// Reset purges every buffer. The hourly sweep calls this when the tracked
// conversation count exceeds its threshold: a full purge, not an eviction.
func (m *MemoryWindow) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buffers = make(map[string][]Turn)
}
