package reasoner

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/foldcore/orchestrator/internal/platform/logger"
)

func writeFixture(t *testing.T, messages []Message) string {
	t.Helper()
	raw, err := json.Marshal(messages)
	if err != nil {
		t.Fatalf("marshal fixture: %v", err)
	}
	path := filepath.Join(t.TempDir(), "fixture.json")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestMockClientReplaysFixtureInOrder(t *testing.T) {
	fixture := []Message{
		{Type: MessagePrologue, Text: "starting"},
		{Type: MessageThinking, Text: "folding"},
		{Type: MessageConclusion, Text: "done", Final: true},
	}
	path := writeFixture(t, fixture)
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	client, err := NewMockClient(MockConfig{DataPath: path, DelayMode: DelayNone}, log)
	if err != nil {
		t.Fatalf("NewMockClient: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	ch, sess, err := client.Stream(ctx, "job_x", "MKVLLA")
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if sess == nil || sess.Session == "" {
		t.Fatal("expected a mock session handle")
	}

	var got []Message
	for msg := range ch {
		got = append(got, msg)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(got))
	}
	if got[0].Type != MessagePrologue || got[2].Type != MessageConclusion {
		t.Fatalf("unexpected message order: %+v", got)
	}
}

func TestMockClientStopsAtFinalMessage(t *testing.T) {
	fixture := []Message{
		{Type: MessageConclusion, Text: "done", Final: true},
		{Type: MessageThinking, Text: "unreachable"},
	}
	path := writeFixture(t, fixture)
	log, _ := logger.New("test")
	client, err := NewMockClient(MockConfig{DataPath: path}, log)
	if err != nil {
		t.Fatalf("NewMockClient: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	ch, _, err := client.Stream(ctx, "job_x", "MKVLLA")
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	var count int
	for range ch {
		count++
	}
	if count != 1 {
		t.Fatalf("expected stream to stop after the final message, got %d messages", count)
	}
}

func TestNewMockClientMissingFixtureErrors(t *testing.T) {
	log, _ := logger.New("test")
	if _, err := NewMockClient(MockConfig{DataPath: "/nonexistent/fixture.json"}, log); err == nil {
		t.Fatal("expected an error for a missing fixture file")
	}
}
