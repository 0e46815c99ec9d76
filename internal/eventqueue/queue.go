// Package eventqueue owns the per-job event list: the ordered,
// persisted log of everything the segmentation engine has emitted for
// a job, replayable by any instance, per spec.md §4.1/§4.4.
package eventqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/foldcore/orchestrator/internal/keys"
	"github.com/foldcore/orchestrator/internal/model"
	"github.com/foldcore/orchestrator/internal/platform/kvstore"
	"github.com/foldcore/orchestrator/internal/platform/logger"
)

// DefaultMaxEvents is the default cap on events retained per job; older
// events are trimmed from the head once the list exceeds it.
const DefaultMaxEvents = 1000

// Queue is the event queue component.
type Queue struct {
	kv        kvstore.Store
	sc        keys.Scheme
	log       *logger.Logger
	ttl       time.Duration
	completed time.Duration
	maxEvents int64
}

// New builds an event queue. ttl is the TTL applied while a job is
// active; completedTTL is applied once a job reaches a terminal state
// so completed event logs outlive the active TTL for late replay.
func New(kv kvstore.Store, sc keys.Scheme, log *logger.Logger, ttl, completedTTL time.Duration, maxEvents int) *Queue {
	if maxEvents <= 0 {
		maxEvents = DefaultMaxEvents
	}
	return &Queue{
		kv:        kv,
		sc:        sc,
		log:       log.With("service", "EventQueue"),
		ttl:       ttl,
		completed: completedTTL,
		maxEvents: int64(maxEvents),
	}
}

// Push appends an event and trims the list to maxEvents, dropping the
// oldest entries first.
func (q *Queue) Push(ctx context.Context, ev *model.Event) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("eventqueue: marshal %s: %w", ev.EventID, err)
	}
	key := q.sc.Events(ev.JobID)
	if err := q.kv.RPush(ctx, key, string(raw)); err != nil {
		return fmt.Errorf("eventqueue: push %s: %w", ev.JobID, err)
	}
	if err := q.kv.LTrim(ctx, key, -q.maxEvents, -1); err != nil {
		q.log.Warn("failed to trim event queue", "job_id", ev.JobID, "error", err)
	}
	if q.ttl > 0 {
		if err := q.kv.Expire(ctx, key, q.ttl); err != nil {
			q.log.Warn("failed to set events ttl", "job_id", ev.JobID, "error", err)
		}
	}
	return nil
}

// Range returns the events in [start,stop] (inclusive, negative
// indices count from the tail, same convention as LRANGE).
func (q *Queue) Range(ctx context.Context, jobID string, start, stop int64) ([]*model.Event, error) {
	raw, err := q.kv.LRange(ctx, q.sc.Events(jobID), start, stop)
	if err != nil {
		return nil, fmt.Errorf("eventqueue: range %s: %w", jobID, err)
	}
	return decodeAll(jobID, raw)
}

// FromOffset returns every event whose seq is strictly greater than
// afterSeq, the replay primitive the reconnect endpoint uses against a
// client-reported Last-Event-ID.
func (q *Queue) FromOffset(ctx context.Context, jobID string, afterSeq int) ([]*model.Event, error) {
	all, err := q.Range(ctx, jobID, 0, -1)
	if err != nil {
		return nil, err
	}
	out := all[:0:0]
	for _, ev := range all {
		if ev.Seq > afterSeq {
			out = append(out, ev)
		}
	}
	return out, nil
}

// Count returns the number of events currently retained for a job.
func (q *Queue) Count(ctx context.Context, jobID string) (int64, error) {
	n, err := q.kv.LLen(ctx, q.sc.Events(jobID))
	if err != nil {
		return 0, fmt.Errorf("eventqueue: count %s: %w", jobID, err)
	}
	return n, nil
}

// Latest returns the most recently pushed event, or nil if the job has
// no events yet.
func (q *Queue) Latest(ctx context.Context, jobID string) (*model.Event, error) {
	events, err := q.Range(ctx, jobID, -1, -1)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, nil
	}
	return events[0], nil
}

// Delete removes a job's entire event log.
func (q *Queue) Delete(ctx context.Context, jobID string) error {
	if err := q.kv.Del(ctx, q.sc.Events(jobID)); err != nil {
		return fmt.Errorf("eventqueue: delete %s: %w", jobID, err)
	}
	return nil
}

// RefreshTTL re-applies the active-job TTL.
func (q *Queue) RefreshTTL(ctx context.Context, jobID string) error {
	if q.ttl <= 0 {
		return nil
	}
	if err := q.kv.Expire(ctx, q.sc.Events(jobID), q.ttl); err != nil {
		return fmt.Errorf("eventqueue: refresh ttl %s: %w", jobID, err)
	}
	return nil
}

// SetCompletionTTL switches a job's event log to the longer
// post-terminal retention window once it reaches complete, failed, or
// canceled.
func (q *Queue) SetCompletionTTL(ctx context.Context, jobID string) error {
	if q.completed <= 0 {
		return nil
	}
	if err := q.kv.Expire(ctx, q.sc.Events(jobID), q.completed); err != nil {
		return fmt.Errorf("eventqueue: set completion ttl %s: %w", jobID, err)
	}
	return nil
}

func decodeAll(jobID string, raw []string) ([]*model.Event, error) {
	out := make([]*model.Event, 0, len(raw))
	for _, r := range raw {
		var ev model.Event
		if err := json.Unmarshal([]byte(r), &ev); err != nil {
			return nil, fmt.Errorf("eventqueue: decode %s: %w", jobID, err)
		}
		out = append(out, &ev)
	}
	return out, nil
}
