// Package cancelpath owns the cancellation algorithm of spec.md §4.7: a
// plain service that marks a job canceled in shared state and fires a
// best-effort interrupt at the reasoner, following the teacher's
// interface-over-struct service pattern.
package cancelpath

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/foldcore/orchestrator/internal/jobmeta"
	"github.com/foldcore/orchestrator/internal/jobstate"
	"github.com/foldcore/orchestrator/internal/model"
	"github.com/foldcore/orchestrator/internal/platform/logger"
	"github.com/foldcore/orchestrator/internal/reasoner"
)

// ErrNotFound is returned when the target job has no state record.
var ErrNotFound = errors.New("cancelpath: not found")

// Result is the response shape of the cancel endpoint.
type Result struct {
	OK     bool         `json:"ok"`
	JobID  string       `json:"jobId"`
	Status model.Status `json:"status"`
}

// Service is the cancellation path component.
type Service struct {
	log             *logger.Logger
	state           *jobstate.Store
	meta            *jobmeta.Store
	reasoner        reasoner.Client
	interruptTimeout time.Duration
}

// New builds a cancellation service. interruptTimeout bounds the
// best-effort interrupt call to the reasoner (default 10s per
// spec.md §5).
func New(log *logger.Logger, state *jobstate.Store, meta *jobmeta.Store, client reasoner.Client, interruptTimeout time.Duration) *Service {
	if interruptTimeout <= 0 {
		interruptTimeout = 10 * time.Second
	}
	return &Service{
		log:              log.With("service", "CancelPath"),
		state:            state,
		meta:             meta,
		reasoner:         client,
		interruptTimeout: interruptTimeout,
	}
}

// Cancel runs the full algorithm: validate, check terminality, mark
// canceled, best-effort interrupt, clear the session record.
func (s *Service) Cancel(ctx context.Context, jobID string) (*Result, error) {
	if !model.ValidJobID(jobID) {
		return nil, fmt.Errorf("cancelpath: invalid job id %s", jobID)
	}

	current, err := s.state.Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, jobstate.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if current.Status.IsTerminal() {
		return &Result{OK: false, JobID: jobID, Status: current.Status}, nil
	}

	updated, err := s.state.MarkCanceled(ctx, jobID, "canceled by client request")
	if err != nil {
		return nil, fmt.Errorf("cancelpath: mark_canceled %s: %w", jobID, err)
	}

	s.interrupt(ctx, jobID)

	if err := s.meta.ClearReasonerSession(ctx, jobID); err != nil {
		s.log.Warn("failed to clear reasoner session after cancel", "job_id", jobID, "error", err)
	}

	return &Result{OK: true, JobID: jobID, Status: updated.Status}, nil
}

// interrupt fires the best-effort reasoner interrupt. Failure here is
// logged and otherwise ignored: cancellation is authoritative via
// shared state regardless of whether the reasoner acknowledges it.
func (s *Service) interrupt(ctx context.Context, jobID string) {
	if s.reasoner == nil {
		return
	}
	meta, err := s.meta.Get(ctx, jobID)
	if err != nil || meta.ReasonerSession == nil {
		return
	}

	interruptCtx, cancel := context.WithTimeout(context.Background(), s.interruptTimeout)
	defer cancel()
	if err := s.reasoner.Interrupt(interruptCtx, meta.ReasonerSession); err != nil {
		s.log.Warn("best-effort reasoner interrupt failed", "job_id", jobID, "error", err)
	}
}
