// Package jobstate owns the job state hash: the versioned, mutable
// status/stage/progress record every instance reads and CAS-updates to
// drive and observe a job's lifecycle, per spec.md §4.1/§4.2.
package jobstate

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/foldcore/orchestrator/internal/keys"
	"github.com/foldcore/orchestrator/internal/model"
	"github.com/foldcore/orchestrator/internal/platform/kvstore"
	"github.com/foldcore/orchestrator/internal/platform/logger"
)

// ErrNotFound is returned when a job's state hash does not exist.
var ErrNotFound = errors.New("jobstate: not found")

// ErrInvalidTransition is returned when a requested stage or status
// change would violate the lifecycle DAG.
var ErrInvalidTransition = errors.New("jobstate: invalid transition")

// Store is the job state component: a thin, CAS-aware layer over the
// shared key/value store scoped to one key family.
type Store struct {
	kv  kvstore.Store
	sc  keys.Scheme
	log *logger.Logger
	ttl time.Duration
}

// New builds a job state store. ttl is applied to the state hash on
// every create and refreshed on update so running jobs do not expire
// out from under a slow client.
func New(kv kvstore.Store, sc keys.Scheme, log *logger.Logger, ttl time.Duration) *Store {
	return &Store{kv: kv, sc: sc, log: log.With("service", "JobStateStore"), ttl: ttl}
}

// Create initializes a fresh, queued job state record.
func (s *Store) Create(ctx context.Context, jobID string) (*model.State, error) {
	now := model.NowMillis()
	st := &model.State{
		JobID:     jobID,
		Status:    model.StatusQueued,
		Stage:     model.StageQueued,
		Progress:  0,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	key := s.sc.State(jobID)
	if err := s.kv.HSet(ctx, key, toFields(st)); err != nil {
		return nil, fmt.Errorf("jobstate: create %s: %w", jobID, err)
	}
	if s.ttl > 0 {
		if err := s.kv.Expire(ctx, key, s.ttl); err != nil {
			s.log.Warn("failed to set state ttl", "job_id", jobID, "error", err)
		}
	}
	return st, nil
}

// Get reads a job's current state.
func (s *Store) Get(ctx context.Context, jobID string) (*model.State, error) {
	fields, err := s.kv.HGetAll(ctx, s.sc.State(jobID))
	if err != nil {
		return nil, fmt.Errorf("jobstate: get %s: %w", jobID, err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}
	return fromFields(jobID, fields), nil
}

// Exists reports whether jobID has a state record.
func (s *Store) Exists(ctx context.Context, jobID string) (bool, error) {
	ok, err := s.kv.Exists(ctx, s.sc.State(jobID))
	if err != nil {
		return false, fmt.Errorf("jobstate: exists %s: %w", jobID, err)
	}
	return ok, nil
}

// IsCanceled reports whether jobID's current status is canceled. It is
// the check the SSE driver polls before emitting each event.
func (s *Store) IsCanceled(ctx context.Context, jobID string) (bool, error) {
	st, err := s.Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return st.Status == model.StatusCanceled, nil
}

// UpdateProgress advances progress and message without touching status
// or stage, clamping progress into [0,100]. It retries the CAS update
// against the freshest version on a concurrent write.
func (s *Store) UpdateProgress(ctx context.Context, jobID string, progress int, message string) (*model.State, error) {
	return s.casUpdate(ctx, jobID, func(st *model.State) error {
		st.Progress = model.ClampProgress(progress)
		st.Message = message
		return nil
	})
}

// UpdateStage advances a job to the next pipeline stage, refusing a
// transition the stage DAG forbids.
func (s *Store) UpdateStage(ctx context.Context, jobID string, stage model.Stage) (*model.State, error) {
	return s.casUpdate(ctx, jobID, func(st *model.State) error {
		if !st.Stage.CanAdvanceTo(stage) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, st.Stage, stage)
		}
		st.Stage = stage
		if stage == model.StageError {
			st.Status = model.StatusFailed
		}
		return nil
	})
}

// MarkRunning transitions a queued job to running.
func (s *Store) MarkRunning(ctx context.Context, jobID string) (*model.State, error) {
	return s.casUpdate(ctx, jobID, func(st *model.State) error {
		if st.Status.IsTerminal() {
			return fmt.Errorf("%w: job %s is already terminal", ErrInvalidTransition, jobID)
		}
		st.Status = model.StatusRunning
		return nil
	})
}

// MarkComplete finalizes a job as complete at 100% progress.
func (s *Store) MarkComplete(ctx context.Context, jobID, message string) (*model.State, error) {
	return s.casUpdate(ctx, jobID, func(st *model.State) error {
		if st.Status.IsTerminal() {
			return nil
		}
		st.Status = model.StatusComplete
		st.Stage = model.StageDone
		st.Progress = 100
		st.Message = message
		st.CompletedAt = model.NowMillis()
		return nil
	})
}

// MarkFailed finalizes a job as failed.
func (s *Store) MarkFailed(ctx context.Context, jobID, message string) (*model.State, error) {
	return s.casUpdate(ctx, jobID, func(st *model.State) error {
		if st.Status.IsTerminal() {
			return nil
		}
		st.Status = model.StatusFailed
		st.Stage = model.StageError
		st.Message = message
		st.CompletedAt = model.NowMillis()
		return nil
	})
}

// MarkCanceled finalizes a job as canceled. Calling it on an
// already-terminal job leaves status, message and completed_at as they
// are, making cancellation idempotent; version and updated_at still
// advance.
func (s *Store) MarkCanceled(ctx context.Context, jobID, message string) (*model.State, error) {
	return s.casUpdate(ctx, jobID, func(st *model.State) error {
		if st.Status.IsTerminal() {
			return nil
		}
		st.Status = model.StatusCanceled
		st.Message = message
		st.CompletedAt = model.NowMillis()
		return nil
	})
}

// Delete removes a job's state record entirely.
func (s *Store) Delete(ctx context.Context, jobID string) error {
	if err := s.kv.Del(ctx, s.sc.State(jobID)); err != nil {
		return fmt.Errorf("jobstate: delete %s: %w", jobID, err)
	}
	return nil
}

// RefreshTTL re-applies the configured TTL to a job's state hash
// without changing its contents.
func (s *Store) RefreshTTL(ctx context.Context, jobID string) error {
	if s.ttl <= 0 {
		return nil
	}
	if err := s.kv.Expire(ctx, s.sc.State(jobID), s.ttl); err != nil {
		return fmt.Errorf("jobstate: refresh ttl %s: %w", jobID, err)
	}
	return nil
}

// maxCASAttempts bounds the read-mutate-CAS retry loop against a
// concurrently-written state hash.
const maxCASAttempts = 5

func (s *Store) casUpdate(ctx context.Context, jobID string, mutate func(*model.State) error) (*model.State, error) {
	key := s.sc.State(jobID)
	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		current, err := s.Get(ctx, jobID)
		if err != nil {
			return nil, err
		}
		next := *current
		if err := mutate(&next); err != nil {
			return nil, err
		}
		next.UpdatedAt = model.NowMillis()

		ok, _, err := s.kv.CASUpdate(ctx, key, current.Version, toFields(&next))
		if err != nil {
			if errors.Is(err, kvstore.ErrNotFound) {
				return nil, ErrNotFound
			}
			return nil, fmt.Errorf("jobstate: cas update %s: %w", jobID, err)
		}
		if ok {
			if s.ttl > 0 {
				if err := s.kv.Expire(ctx, key, s.ttl); err != nil {
					s.log.Warn("failed to refresh state ttl", "job_id", jobID, "error", err)
				}
			}
			next.Version = current.Version + 1
			return &next, nil
		}
		// lost the race, retry against the freshest version
	}
	return nil, fmt.Errorf("jobstate: cas update %s: exceeded %d retries", jobID, maxCASAttempts)
}

func toFields(st *model.State) map[string]string {
	return map[string]string{
		"job_id":       st.JobID,
		"status":       string(st.Status),
		"stage":        string(st.Stage),
		"progress":     strconv.Itoa(st.Progress),
		"message":      st.Message,
		"version":      strconv.FormatInt(st.Version, 10),
		"created_at":   strconv.FormatInt(st.CreatedAt, 10),
		"updated_at":   strconv.FormatInt(st.UpdatedAt, 10),
		"completed_at": strconv.FormatInt(st.CompletedAt, 10),
	}
}

func fromFields(jobID string, f map[string]string) *model.State {
	return &model.State{
		JobID:       jobID,
		Status:      model.Status(f["status"]),
		Stage:       model.Stage(f["stage"]),
		Progress:    atoi(f["progress"]),
		Message:     f["message"],
		Version:     atoi64(f["version"]),
		CreatedAt:   atoi64(f["created_at"]),
		UpdatedAt:   atoi64(f["updated_at"]),
		CompletedAt: atoi64(f["completed_at"]),
	}
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func atoi64(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}
