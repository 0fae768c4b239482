package bot

import (
	"fmt"
	"runtime"
	"strings"
	"time"
)

// CommandResult is the outcome of an admin command evaluation.
type CommandResult struct {
	Handled  bool
	Response string
}

// IsCommand reports whether the text looks like an admin command.
func IsCommand(text string) bool {
	return strings.HasPrefix(text, "/")
}

// HandleCommand executes an owner admin command. Unknown commands are not
// handled and fall through to normal message processing.
func (b *Bot) HandleCommand(chatID, text string) CommandResult {
	cmd, _, _ := strings.Cut(strings.TrimSpace(text), " ")

	switch strings.ToLower(cmd) {
	case "/status":
		return CommandResult{Handled: true, Response: b.statusReport()}

	case "/reset":
		b.memory.Forget(chatID)
		return CommandResult{Handled: true, Response: "Memory cleared for this chat."}

	case "/sessions":
		return CommandResult{Handled: true, Response: b.sessionsReport()}
	}

	return CommandResult{}
}

// statusReport summarizes process and bot state for the owner.
func (b *Bot) statusReport() string {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	var sb strings.Builder
	sb.WriteString("*Bot Status* 🤖\n\n")
	fmt.Fprintf(&sb, "Uptime: %s\n", b.Uptime().Round(time.Second))
	fmt.Fprintf(&sb, "Goroutines: %d\n", runtime.NumGoroutine())
	fmt.Fprintf(&sb, "Heap: %.1f MiB\n", float64(mem.HeapAlloc)/(1<<20))
	fmt.Fprintf(&sb, "Sessions: %d\n", b.sessions.Len())
	fmt.Fprintf(&sb, "Memory window: %d chats\n", b.memory.Conversations())
	if last := b.activity.Last(); last != "" {
		fmt.Fprintf(&sb, "Last activity: %s\n", last)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// sessionsReport lists tracked sessions grouped by state.
func (b *Bot) sessionsReport() string {
	counts := make(map[State]int)
	for _, sess := range b.sessions.Snapshot() {
		counts[sess.State]++
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "*Sessions* (%d)\n\n", b.sessions.Len())
	for _, state := range []State{StateIdle, StateMainMenu, StateSettings} {
		if n := counts[state]; n > 0 {
			fmt.Fprintf(&sb, "%s: %d\n", state, n)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}
