// Package jobmeta owns the job meta hash: the small, mostly-immutable
// set of inputs (sequence, conversation id, reasoner session handle)
// any instance needs to (re)drive a job's stream from scratch, per
// spec.md §4.1.
package jobmeta

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

// ErrNotFound is returned when a job's meta hash does not exist.
var ErrNotFound = errors.New("jobmeta: not found")

// Store is the job meta component.
type Store struct {
	kv  kvstore.Store
	sc  keys.Scheme
	log *logger.Logger
	ttl time.Duration
}

// New builds a job meta store. ttl mirrors the job state TTL so the
// two records expire together.
func New(kv kvstore.Store, sc keys.Scheme, log *logger.Logger, ttl time.Duration) *Store {
	return &Store{kv: kv, sc: sc, log: log.With("service", "JobMetaStore"), ttl: ttl}
}

// Create writes a job's immutable drive inputs.
func (s *Store) Create(ctx context.Context, jobID, sequence, conversationID string) (*model.Meta, error) {
	meta := &model.Meta{
		JobID:          jobID,
		Sequence:       sequence,
		ConversationID: conversationID,
		CreatedAt:      model.NowMillis(),
	}
	key := s.sc.Meta(jobID)
	if err := s.kv.HSet(ctx, key, toFields(meta)); err != nil {
		return nil, fmt.Errorf("jobmeta: create %s: %w", jobID, err)
	}
	if s.ttl > 0 {
		if err := s.kv.Expire(ctx, key, s.ttl); err != nil {
			s.log.Warn("failed to set meta ttl", "job_id", jobID, "error", err)
		}
	}
	return meta, nil
}

// Get reads a job's meta record.
func (s *Store) Get(ctx context.Context, jobID string) (*model.Meta, error) {
	fields, err := s.kv.HGetAll(ctx, s.sc.Meta(jobID))
	if err != nil {
		return nil, fmt.Errorf("jobmeta: get %s: %w", jobID, err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}
	return fromFields(jobID, fields), nil
}

// Sequence is a convenience accessor used by the streaming driver when
// a replay request omits the sequence and must recover it from meta.
func (s *Store) Sequence(ctx context.Context, jobID string) (string, error) {
	meta, err := s.Get(ctx, jobID)
	if err != nil {
		return "", err
	}
	return meta.Sequence, nil
}

// SetReasonerSession records the opaque handle the cancellation path
// uses to interrupt an in-flight reasoner stream.
func (s *Store) SetReasonerSession(ctx context.Context, jobID string, sess *model.ReasonerSession) error {
	if sess == nil {
		return nil
	}
	key := s.sc.Meta(jobID)
	fields := map[string]string{
		"reasoner_instance":    sess.Instance,
		"reasoner_session":     sess.Session,
		"reasoner_backend_url": sess.BackendURL,
	}
	if err := s.kv.HSet(ctx, key, fields); err != nil {
		return fmt.Errorf("jobmeta: set reasoner session %s: %w", jobID, err)
	}
	return nil
}

// ClearReasonerSession removes a job's reasoner interrupt handle once
// cancellation or completion has been processed.
func (s *Store) ClearReasonerSession(ctx context.Context, jobID string) error {
	key := s.sc.Meta(jobID)
	if err := s.kv.HSet(ctx, key, map[string]string{
		"reasoner_instance":    "",
		"reasoner_session":     "",
		"reasoner_backend_url": "",
	}); err != nil {
		return fmt.Errorf("jobmeta: clear reasoner session %s: %w", jobID, err)
	}
	return nil
}

// Exists reports whether jobID has a meta record.
func (s *Store) Exists(ctx context.Context, jobID string) (bool, error) {
	ok, err := s.kv.Exists(ctx, s.sc.Meta(jobID))
	if err != nil {
		return false, fmt.Errorf("jobmeta: exists %s: %w", jobID, err)
	}
	return ok, nil
}

// Delete removes a job's meta record entirely.
func (s *Store) Delete(ctx context.Context, jobID string) error {
	if err := s.kv.Del(ctx, s.sc.Meta(jobID)); err != nil {
		return fmt.Errorf("jobmeta: delete %s: %w", jobID, err)
	}
	return nil
}

// RefreshTTL re-applies the configured TTL.
func (s *Store) RefreshTTL(ctx context.Context, jobID string) error {
	if s.ttl <= 0 {
		return nil
	}
	if err := s.kv.Expire(ctx, s.sc.Meta(jobID), s.ttl); err != nil {
		return fmt.Errorf("jobmeta: refresh ttl %s: %w", jobID, err)
	}
	return nil
}

func toFields(m *model.Meta) map[string]string {
	f := map[string]string{
		"job_id":          m.JobID,
		"sequence":        m.Sequence,
		"conversation_id": m.ConversationID,
		"created_at":      strconv.FormatInt(m.CreatedAt, 10),
	}
	if m.ReasonerSession != nil {
		f["reasoner_instance"] = m.ReasonerSession.Instance
		f["reasoner_session"] = m.ReasonerSession.Session
		f["reasoner_backend_url"] = m.ReasonerSession.BackendURL
	}
	return f
}

func fromFields(jobID string, f map[string]string) *model.Meta {
	m := &model.Meta{
		JobID:          jobID,
		Sequence:       f["sequence"],
		ConversationID: f["conversation_id"],
		CreatedAt:      atoi64(f["created_at"]),
	}
	if f["reasoner_session"] != "" || f["reasoner_backend_url"] != "" {
		m.ReasonerSession = &model.ReasonerSession{
			Instance:   f["reasoner_instance"],
			Session:    f["reasoner_session"],
			BackendURL: f["reasoner_backend_url"],
		}
	}
	return m
}

func atoi64(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}
