package eventstore

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/habibuoy/VirtualAIAssistant/internal/config"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestOpenEphemeral(t *testing.T) {
	ctx := context.Background()
	cfg := config.EventStoreConfig{RetentionMode: "ephemeral"}
	es, err := Open(ctx, cfg, newLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = es.Close() })
	if err := es.AppendTurnEvent(ctx, TurnEvent{ConversationID: "c", TurnID: "t"}); err != nil {
		t.Fatalf("ephemeral append should be a no-op: %v", err)
	}
}

func TestAppendAndQuery(t *testing.T) {
	tmp := t.TempDir()
	cfg := config.EventStoreConfig{Path: filepath.Join(tmp, "turns.db"), RetentionMode: "persistent"}
	es, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open event store: %v", err)
	}
	t.Cleanup(func() { _ = es.Close() })

	convID := "conversation-123"
	if err := es.EnsureConversation(context.Background(), convID, "Gemini"); err != nil {
		t.Fatalf("ensure conversation: %v", err)
	}
	if err := es.AppendTurnEvent(context.Background(), TurnEvent{ConversationID: convID, TurnID: "turn-1", Stage: "transcript", Payload: []byte("hello")}); err != nil {
		t.Fatalf("append event: %v", err)
	}
	events, err := es.ListTurnEvents(context.Background(), convID, 10)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if string(events[0].Payload) != "hello" {
		t.Fatalf("unexpected payload: %s", events[0].Payload)
	}
	if events[0].Stage != "transcript" {
		t.Fatalf("unexpected stage: %s", events[0].Stage)
	}
}

func TestPruneByDaysAndTurns(t *testing.T) {
	tmp := t.TempDir()
	cfg := config.EventStoreConfig{Path: filepath.Join(tmp, "turns.db"), RetentionMode: "persistent", RetentionDays: 1, MaxTurns: 1}
	es, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open event store: %v", err)
	}
	t.Cleanup(func() { _ = es.Close() })

	es.clock = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }
	if err := es.EnsureConversation(context.Background(), "old-conversation", "Gemini"); err != nil {
		t.Fatalf("ensure conversation: %v", err)
	}
	if err := es.AppendTurnEvent(context.Background(), TurnEvent{ConversationID: "old-conversation", TurnID: "turn-1", Stage: "reply"}); err != nil {
		t.Fatalf("append event: %v", err)
	}

	es.clock = func() time.Time { return time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC) }
	if err := es.EnsureConversation(context.Background(), "new-conversation", "ChatGPT"); err != nil {
		t.Fatalf("ensure conversation: %v", err)
	}
	if err := es.Prune(context.Background()); err != nil {
		t.Fatalf("prune: %v", err)
	}

	events, err := es.ListTurnEvents(context.Background(), "old-conversation", 10)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected old conversation events pruned")
	}
}
