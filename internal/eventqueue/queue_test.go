package eventqueue

import (
	"context"
	"testing"
	"time"

	"github.com/foldcore/orchestrator/internal/keys"
	"github.com/foldcore/orchestrator/internal/model"
	"github.com/foldcore/orchestrator/internal/platform/kvstore"
	"github.com/foldcore/orchestrator/internal/platform/logger"
)

func newTestQueue(t *testing.T, maxEvents int) *Queue {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return New(kvstore.NewFake(), keys.NewScheme("test"), log, time.Hour, 24*time.Hour, maxEvents)
}

func event(jobID string, seq int) *model.Event {
	return &model.Event{
		EventID:   model.EventID(jobID, seq),
		JobID:     jobID,
		Seq:       seq,
		TS:        model.NowMillis(),
		EventType: model.EventThinkingTxt,
		Progress:  seq,
	}
}

func TestPushThenRange(t *testing.T) {
	q := newTestQueue(t, 0)
	ctx := context.Background()
	jobID := model.NewJobID()

	for i := 1; i <= 3; i++ {
		if err := q.Push(ctx, event(jobID, i)); err != nil {
			t.Fatalf("Push: %v", err)
		}
	}

	all, err := q.Range(ctx, jobID, 0, -1)
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 events, got %d", len(all))
	}
	if all[0].Seq != 1 || all[2].Seq != 3 {
		t.Fatalf("unexpected event order: %+v", all)
	}
}

func TestFromOffsetReturnsOnlyNewer(t *testing.T) {
	q := newTestQueue(t, 0)
	ctx := context.Background()
	jobID := model.NewJobID()
	for i := 1; i <= 5; i++ {
		if err := q.Push(ctx, event(jobID, i)); err != nil {
			t.Fatalf("Push: %v", err)
		}
	}
	fresh, err := q.FromOffset(ctx, jobID, 3)
	if err != nil {
		t.Fatalf("FromOffset: %v", err)
	}
	if len(fresh) != 2 || fresh[0].Seq != 4 || fresh[1].Seq != 5 {
		t.Fatalf("unexpected FromOffset result: %+v", fresh)
	}
}

func TestPushTrimsToMaxEvents(t *testing.T) {
	q := newTestQueue(t, 2)
	ctx := context.Background()
	jobID := model.NewJobID()
	for i := 1; i <= 5; i++ {
		if err := q.Push(ctx, event(jobID, i)); err != nil {
			t.Fatalf("Push: %v", err)
		}
	}
	all, err := q.Range(ctx, jobID, 0, -1)
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected trim to 2 events, got %d", len(all))
	}
	if all[0].Seq != 4 || all[1].Seq != 5 {
		t.Fatalf("expected oldest events dropped, got %+v", all)
	}
}

func TestLatestReturnsMostRecent(t *testing.T) {
	q := newTestQueue(t, 0)
	ctx := context.Background()
	jobID := model.NewJobID()
	for i := 1; i <= 3; i++ {
		if err := q.Push(ctx, event(jobID, i)); err != nil {
			t.Fatalf("Push: %v", err)
		}
	}
	latest, err := q.Latest(ctx, jobID)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if latest == nil || latest.Seq != 3 {
		t.Fatalf("expected latest seq 3, got %+v", latest)
	}
}

func TestLatestOnEmptyJobReturnsNil(t *testing.T) {
	q := newTestQueue(t, 0)
	latest, err := q.Latest(context.Background(), model.NewJobID())
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if latest != nil {
		t.Fatalf("expected nil latest for empty job, got %+v", latest)
	}
}

func TestCountAndDelete(t *testing.T) {
	q := newTestQueue(t, 0)
	ctx := context.Background()
	jobID := model.NewJobID()
	if err := q.Push(ctx, event(jobID, 1)); err != nil {
		t.Fatalf("Push: %v", err)
	}
	n, err := q.Count(ctx, jobID)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected count 1, got %d", n)
	}
	if err := q.Delete(ctx, jobID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	n, err = q.Count(ctx, jobID)
	if err != nil {
		t.Fatalf("Count after delete: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected count 0 after delete, got %d", n)
	}
}
