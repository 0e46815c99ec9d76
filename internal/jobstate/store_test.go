package jobstate

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

	created, err := s.Create(ctx, jobID)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.Status != model.StatusQueued || created.Stage != model.StageQueued {
		t.Fatalf("unexpected initial state: %+v", created)
	}

	got, err := s.Get(ctx, jobID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.JobID != jobID || got.Version != 1 {
		t.Fatalf("unexpected fetched state: %+v", got)
	}
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Get(context.Background(), "job_doesnotexist"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateProgressClampsAndBumpsVersion(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	jobID := model.NewJobID()
	if _, err := s.Create(ctx, jobID); err != nil {
		t.Fatalf("Create: %v", err)
	}

	updated, err := s.UpdateProgress(ctx, jobID, 150, "running msa")
	if err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}
	if updated.Progress != 100 {
		t.Fatalf("expected progress clamped to 100, got %d", updated.Progress)
	}
	if updated.Version != 2 {
		t.Fatalf("expected version bumped to 2, got %d", updated.Version)
	}
}

func TestUpdateStageRejectsBackwardTransition(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	jobID := model.NewJobID()
	if _, err := s.Create(ctx, jobID); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := s.UpdateStage(ctx, jobID, model.StageMSA); err != nil {
		t.Fatalf("UpdateStage to MSA: %v", err)
	}
	if _, err := s.UpdateStage(ctx, jobID, model.StageQueued); err == nil {
		t.Fatal("expected backward stage transition to be rejected")
	}
}

func TestMarkCanceledIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	jobID := model.NewJobID()
	if _, err := s.Create(ctx, jobID); err != nil {
		t.Fatalf("Create: %v", err)
	}
	first, err := s.MarkCanceled(ctx, jobID, "user requested")
	if err != nil {
		t.Fatalf("MarkCanceled: %v", err)
	}
	if first.Status != model.StatusCanceled {
		t.Fatalf("expected canceled status, got %s", first.Status)
	}
	second, err := s.MarkCanceled(ctx, jobID, "user requested again")
	if err != nil {
		t.Fatalf("second MarkCanceled: %v", err)
	}
	if second.Message != "user requested" {
		t.Fatalf("expected no-op on already-terminal job, message changed to %q", second.Message)
	}
}

func TestIsCanceledReflectsStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	jobID := model.NewJobID()
	if _, err := s.Create(ctx, jobID); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if canceled, err := s.IsCanceled(ctx, jobID); err != nil || canceled {
		t.Fatalf("expected fresh job to not be canceled, got %v, err %v", canceled, err)
	}
	if _, err := s.MarkCanceled(ctx, jobID, "stop"); err != nil {
		t.Fatalf("MarkCanceled: %v", err)
	}
	if canceled, err := s.IsCanceled(ctx, jobID); err != nil || !canceled {
		t.Fatalf("expected job to be canceled, got %v, err %v", canceled, err)
	}
}
