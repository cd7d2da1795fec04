package rawlog

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "raw.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestWriteAndRecent(t *testing.T) {
	store := openTestStore(t)

	payload := map[string]any{"uniqueId": "viewer1", "comment": "hi"}
	if err := store.Write("tiktok", "chat", payload); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := store.Write("twitch", "channel.cheer", map[string]any{"bits": 100}); err != nil {
		t.Fatalf("write: %v", err)
	}

	entries, err := store.Recent(context.Background(), "", 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	// newest first
	if entries[0].Platform != "twitch" || entries[1].Platform != "tiktok" {
		t.Fatalf("unexpected order: %s, %s", entries[0].Platform, entries[1].Platform)
	}

	var decoded map[string]any
	if err := json.Unmarshal(entries[1].Payload, &decoded); err != nil {
		t.Fatalf("payload not valid JSON: %v", err)
	}
	if decoded["uniqueId"] != "viewer1" {
		t.Fatalf("payload round-trip lost data: %v", decoded)
	}
	if entries[0].ReceivedAt.IsZero() {
		t.Fatalf("received_at not recorded")
	}
}

func TestRecentPlatformFilterAndLimit(t *testing.T) {
	store := openTestStore(t)

	for i := 0; i < 5; i++ {
		if err := store.Write("youtube", "LiveChatTextMessage", map[string]any{"n": i}); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := store.Write("twitch", "stream.online", map[string]any{}); err != nil {
		t.Fatalf("write: %v", err)
	}

	entries, err := store.Recent(context.Background(), "youtube", 3)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("limit not applied: got %d", len(entries))
	}
	for _, e := range entries {
		if e.Platform != "youtube" {
			t.Fatalf("platform filter leaked %s", e.Platform)
		}
	}

	n, err := store.Count(context.Background(), "youtube")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 5 {
		t.Fatalf("count = %d, want 5", n)
	}
}

func TestAsyncDrainsOnClose(t *testing.T) {
	store := openTestStore(t)

	async := NewAsync(store, AsyncOptions{QueueSize: 16})
	for i := 0; i < 10; i++ {
		if err := async.Write("tiktok", "gift", map[string]any{"n": i}); err != nil {
			t.Fatalf("async write: %v", err)
		}
	}
	async.Close()
	async.Close() // second close must be a no-op

	n, err := store.Count(context.Background(), "")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 10 {
		t.Fatalf("async lost writes: got %d, want 10", n)
	}
}
