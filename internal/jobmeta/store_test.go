package jobmeta

import (
	"context"
	"testing"
	"time"

	"github.com/foldcore/orchestrator/internal/keys"
	"github.com/foldcore/orchestrator/internal/model"
	"github.com/foldcore/orchestrator/internal/platform/kvstore"
	"github.com/foldcore/orchestrator/internal/platform/logger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return New(kvstore.NewFake(), keys.NewScheme("test"), log, time.Hour)
}

func TestCreateThenGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	jobID := model.NewJobID()

	if _, err := s.Create(ctx, jobID, "MKVLLAAAAAAAAAA", "conv-1"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := s.Get(ctx, jobID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Sequence != "MKVLLAAAAAAAAAA" || got.ConversationID != "conv-1" {
		t.Fatalf("unexpected meta: %+v", got)
	}
}

func TestSequenceConvenienceAccessor(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	jobID := model.NewJobID()
	if _, err := s.Create(ctx, jobID, "MKVLLAAAAAAAAAA", ""); err != nil {
		t.Fatalf("Create: %v", err)
	}
	seq, err := s.Sequence(ctx, jobID)
	if err != nil {
		t.Fatalf("Sequence: %v", err)
	}
	if seq != "MKVLLAAAAAAAAAA" {
		t.Fatalf("unexpected sequence: %s", seq)
	}
}

func TestReasonerSessionLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	jobID := model.NewJobID()
	if _, err := s.Create(ctx, jobID, "MKVLLAAAAAAAAAA", ""); err != nil {
		t.Fatalf("Create: %v", err)
	}

	sess := &model.ReasonerSession{Instance: "inst-1", Session: "sess-1", BackendURL: "http://reasoner:9000"}
	if err := s.SetReasonerSession(ctx, jobID, sess); err != nil {
		t.Fatalf("SetReasonerSession: %v", err)
	}
	got, err := s.Get(ctx, jobID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ReasonerSession == nil || got.ReasonerSession.Session != "sess-1" {
		t.Fatalf("expected reasoner session to be recorded, got %+v", got.ReasonerSession)
	}

	if err := s.ClearReasonerSession(ctx, jobID); err != nil {
		t.Fatalf("ClearReasonerSession: %v", err)
	}
	cleared, err := s.Get(ctx, jobID)
	if err != nil {
		t.Fatalf("Get after clear: %v", err)
	}
	if cleared.ReasonerSession != nil {
		t.Fatalf("expected reasoner session to be cleared, got %+v", cleared.ReasonerSession)
	}
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Get(context.Background(), "job_doesnotexist"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
