package model

import "time"

// Status is the lifecycle status of a job. Terminal statuses are
// Complete, Failed, and Canceled; once set, no further transition is
// permitted.
type Status string

const (
	StatusQueued   Status = "queued"
	StatusRunning  Status = "running"
	StatusPartial  Status = "partial"
	StatusComplete Status = "complete"
	StatusFailed   Status = "failed"
	StatusCanceled Status = "canceled"
)

// IsTerminal reports whether no further status transition is allowed.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusComplete, StatusFailed, StatusCanceled:
		return true
	default:
		return false
	}
}

// Stage is the coarse prediction pipeline phase a job is in. Stage may
// only advance monotonically through the tuple below, except DONE may
// follow RELAX or QA directly, and ERROR may follow any non-terminal
// stage.
type Stage string

const (
	StageQueued Stage = "QUEUED"
	StageMSA    Stage = "MSA"
	StageModel  Stage = "MODEL"
	StageRelax  Stage = "RELAX"
	StageQA     Stage = "QA"
	StageDone   Stage = "DONE"
	StageError  Stage = "ERROR"
)

var stageOrder = map[Stage]int{
	StageQueued: 0,
	StageMSA:    1,
	StageModel:  2,
	StageRelax:  3,
	StageQA:     4,
	StageDone:   5,
	StageError:  6,
}

// CanAdvanceTo reports whether a transition from s to next is permitted
// by the stage DAG in the spec: monotonic order, with DONE reachable
// from RELAX or QA, and ERROR reachable from any non-terminal stage.
func (s Stage) CanAdvanceTo(next Stage) bool {
	if next == StageError {
		return s != StageDone && s != StageError
	}
	if next == StageDone {
		return s == StageRelax || s == StageQA
	}
	cur, ok := stageOrder[s]
	if !ok {
		return true
	}
	nxt, ok := stageOrder[next]
	if !ok {
		return false
	}
	return nxt >= cur
}

// ReasonerSession is the opaque handle recorded against a job so the
// cancellation path can interrupt the external reasoner mid-stream.
type ReasonerSession struct {
	Instance   string `json:"instance"`
	Session    string `json:"session"`
	BackendURL string `json:"backend_url"`
}

// State is the versioned, mutable runtime record of a job: status,
// stage, progress, and the bookkeeping fields needed for optimistic
// concurrency control across instances.
type State struct {
	JobID       string `json:"job_id"`
	Status      Status `json:"status"`
	Stage       Stage  `json:"stage"`
	Progress    int    `json:"progress"`
	Message     string `json:"message"`
	Version     int64  `json:"version"`
	CreatedAt   int64  `json:"created_at"`
	UpdatedAt   int64  `json:"updated_at"`
	CompletedAt int64  `json:"completed_at,omitempty"`
}

// Meta is the small, mostly-immutable set of inputs any instance needs
// to (re)drive a job's stream from scratch.
type Meta struct {
	JobID           string           `json:"job_id"`
	Sequence        string           `json:"sequence"`
	ConversationID  string           `json:"conversation_id,omitempty"`
	CreatedAt       int64            `json:"created_at"`
	ReasonerSession *ReasonerSession `json:"reasoner_session,omitempty"`
}

// Job is the external, read-only view returned to API clients: the
// union of a job's meta and current state.
type Job struct {
	JobID          string  `json:"jobId"`
	Sequence       string  `json:"sequence"`
	ConversationID string  `json:"conversationId,omitempty"`
	Status         Status  `json:"status"`
	Stage          Stage   `json:"stage"`
	Progress       int     `json:"progress"`
	Message        string  `json:"message"`
	Version        int64   `json:"version"`
	CreatedAt      int64   `json:"createdAt"`
	CompletedAt    int64   `json:"completedAt,omitempty"`
}

func NowMillis() int64 {
	return time.Now().UnixMilli()
}

// ClampProgress clamps an arbitrary integer into the valid [0,100] range,
// per the invariant that progress is always stored clamped regardless
// of what the caller passed.
func ClampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
