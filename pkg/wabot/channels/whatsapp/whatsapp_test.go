package whatsapp

import (
	"fmt"
	"io"
	"log/slog"
	"testing"
)

func TestQuotedCacheEviction(t *testing.T) {
	c := New(Config{}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	for i := 0; i < quotedCacheSize+10; i++ {
		c.remember(fmt.Sprintf("msg-%d", i), quotedRef{})
	}

	if len(c.quoted) != quotedCacheSize {
		t.Fatalf("cache size = %d, want %d", len(c.quoted), quotedCacheSize)
	}

	// The oldest entries were evicted, the newest survive.
	if _, ok := c.lookupQuoted("msg-0"); ok {
		t.Error("oldest entry should have been evicted")
	}
	if _, ok := c.lookupQuoted(fmt.Sprintf("msg-%d", quotedCacheSize+9)); !ok {
		t.Error("newest entry should be cached")
	}
}

func TestQuotedCacheUpdateDoesNotDuplicate(t *testing.T) {
	c := New(Config{}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	c.remember("same", quotedRef{})
	c.remember("same", quotedRef{})

	if len(c.quotedIDs) != 1 {
		t.Fatalf("id list length = %d, want 1", len(c.quotedIDs))
	}
}
