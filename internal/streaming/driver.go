// Package streaming owns the SSE driver: the component that resolves
// a job's drive inputs, opens a reasoner session, runs the
// segmentation engine over it, and writes each resulting event to the
// client as a Server-Sent Event frame while persisting it to the event
// queue for replay, per spec.md §4.6.
package streaming

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/foldcore/orchestrator/internal/eventqueue"
	"github.com/foldcore/orchestrator/internal/jobmeta"
	"github.com/foldcore/orchestrator/internal/jobstate"
	"github.com/foldcore/orchestrator/internal/model"
	"github.com/foldcore/orchestrator/internal/platform/logger"
	"github.com/foldcore/orchestrator/internal/reasoner"
	"github.com/foldcore/orchestrator/internal/segmentation"
)

// ErrUnsupportedStreaming is returned when the response writer cannot
// be flushed incrementally.
var ErrUnsupportedStreaming = errors.New("streaming: response writer does not support flushing")

// ErrInvalidJobID is returned when the path parameter fails the job id
// regex.
var ErrInvalidJobID = errors.New("streaming: invalid job id")

// ErrSequenceUnresolved is returned when the resolved sequence (query
// override, else stored meta, else the built-in default) fails
// validation.
var ErrSequenceUnresolved = errors.New("streaming: sequence could not be resolved")

// Driver streams one job's progress to an http.ResponseWriter.
type Driver struct {
	log      *logger.Logger
	state    *jobstate.Store
	meta     *jobmeta.Store
	events   *eventqueue.Queue
	engine   *segmentation.Engine
	reasoner reasoner.Client
}

// New builds an SSE driver.
func New(log *logger.Logger, state *jobstate.Store, meta *jobmeta.Store, events *eventqueue.Queue, engine *segmentation.Engine, client reasoner.Client) *Driver {
	return &Driver{
		log:      log.With("service", "StreamingDriver"),
		state:    state,
		meta:     meta,
		events:   events,
		engine:   engine,
		reasoner: client,
	}
}

// Stream drives jobID to completion (or cancellation, or error),
// writing each event as it is produced. sequenceOverride, if non-empty,
// takes priority over the job's stored sequence.
func (d *Driver) Stream(ctx context.Context, w http.ResponseWriter, jobID, sequenceOverride string) error {
	if !model.ValidJobID(jobID) {
		return fmt.Errorf("%w: %s", ErrInvalidJobID, jobID)
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		return ErrUnsupportedStreaming
	}

	sequence := strings.TrimSpace(sequenceOverride)
	if sequence == "" {
		if meta, err := d.meta.Get(ctx, jobID); err == nil {
			sequence = meta.Sequence
		}
	}
	if sequence == "" {
		sequence = defaultSequence
	}
	if problems := model.ValidateSequence(sequence); len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrSequenceUnresolved, strings.Join(problems, "; "))
	}

	if _, err := d.state.Get(ctx, jobID); err != nil {
		if !errors.Is(err, jobstate.ErrNotFound) {
			return err
		}
		if _, err := d.state.Create(ctx, jobID); err != nil {
			return fmt.Errorf("streaming: lazily create state for %s: %w", jobID, err)
		}
		if err := d.events.Push(ctx, model.QueuedBookkeepingEvent(jobID)); err != nil {
			d.log.Warn("failed to persist lazily-created queued event", "job_id", jobID, "error", err)
		}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	messages, sess, err := d.reasoner.Stream(ctx, jobID, sequence)
	if err != nil {
		d.writeErrorFrame(w, flusher, jobID, "failed to open reasoner stream")
		if _, markErr := d.state.MarkFailed(ctx, jobID, err.Error()); markErr != nil {
			d.log.Warn("failed to mark job failed after reasoner stream error", "job_id", jobID, "error", markErr)
		}
		return fmt.Errorf("streaming: open reasoner stream for %s: %w", jobID, err)
	}
	if err := d.meta.SetReasonerSession(ctx, jobID, sess); err != nil {
		d.log.Warn("failed to record reasoner session", "job_id", jobID, "error", err)
	}
	if _, err := d.state.MarkRunning(ctx, jobID); err != nil {
		d.log.Warn("failed to mark job running", "job_id", jobID, "error", err)
	}

	var lastEventType model.EventType
	var lastEventMessage string
	for ev := range d.engine.Run(ctx, jobID, messages) {
		canceled, err := d.state.IsCanceled(ctx, jobID)
		if err != nil {
			d.log.Warn("failed to check cancellation before emitting event", "job_id", jobID, "error", err)
		}
		if canceled {
			d.writeCanceledFrame(w, flusher, jobID)
			return nil
		}

		if err := d.events.Push(ctx, ev); err != nil {
			d.log.Warn("failed to persist event", "job_id", jobID, "event_id", ev.EventID, "error", err)
		}
		if _, err := d.state.UpdateProgress(ctx, jobID, ev.Progress, ev.Message); err != nil {
			d.log.Warn("failed to update progress", "job_id", jobID, "error", err)
		}
		if ev.Stage != "" {
			if _, err := d.state.UpdateStage(ctx, jobID, ev.Stage); err != nil {
				d.log.Warn("failed to advance stage", "job_id", jobID, "stage", ev.Stage, "error", err)
			}
		}

		if err := d.writeEvent(w, ev); err != nil {
			return err
		}
		flusher.Flush()
		lastEventType = ev.EventType
		lastEventMessage = ev.Message
	}

	if ctx.Err() != nil {
		return nil
	}

	switch lastEventType {
	case model.EventConclusion:
		if _, err := d.state.MarkComplete(ctx, jobID, lastEventMessage); err != nil {
			d.log.Warn("failed to mark job complete", "job_id", jobID, "error", err)
		}
		if err := d.events.SetCompletionTTL(ctx, jobID); err != nil {
			d.log.Warn("failed to set completion ttl", "job_id", jobID, "error", err)
		}
		if err := d.meta.ClearReasonerSession(ctx, jobID); err != nil {
			d.log.Warn("failed to clear reasoner session", "job_id", jobID, "error", err)
		}
		d.writeDoneFrame(w, flusher, jobID)
		return nil

	case model.EventFailed:
		// The FAILED step event already carries the failure to the
		// client; the done sentinel is suppressed per spec.
		if _, err := d.state.MarkFailed(ctx, jobID, lastEventMessage); err != nil {
			d.log.Warn("failed to mark job failed", "job_id", jobID, "error", err)
		}
		return nil

	default:
		d.writeErrorFrame(w, flusher, jobID, "stream ended without a terminal event")
		return nil
	}
}

func (d *Driver) writeEvent(w http.ResponseWriter, ev *model.Event) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("streaming: marshal event %s: %w", ev.EventID, err)
	}
	if _, err := fmt.Fprintf(w, "event: step\ndata: %s\n\n", raw); err != nil {
		return fmt.Errorf("streaming: write event frame: %w", err)
	}
	return nil
}

type sentinelPayload struct {
	JobID   string `json:"jobId"`
	Message string `json:"message,omitempty"`
}

func (d *Driver) writeDoneFrame(w http.ResponseWriter, flusher http.Flusher, jobID string) {
	d.writeFrame(w, flusher, "done", sentinelPayload{JobID: jobID})
}

func (d *Driver) writeCanceledFrame(w http.ResponseWriter, flusher http.Flusher, jobID string) {
	d.writeFrame(w, flusher, "canceled", sentinelPayload{JobID: jobID, Message: "Job canceled by user"})
}

func (d *Driver) writeErrorFrame(w http.ResponseWriter, flusher http.Flusher, jobID, message string) {
	d.writeFrame(w, flusher, "error", sentinelPayload{JobID: jobID, Message: message})
}

func (d *Driver) writeFrame(w http.ResponseWriter, flusher http.Flusher, name string, payload sentinelPayload) {
	raw, err := json.Marshal(payload)
	if err != nil {
		d.log.Warn("failed to marshal sentinel payload", "sentinel", name, "error", err)
		return
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, raw); err != nil {
		d.log.Warn("failed to write sentinel frame", "sentinel", name, "error", err)
		return
	}
	flusher.Flush()
}

// defaultSequence is the built-in fallback used when neither a query
// override nor a stored meta record supplies one, per spec.md §4.6
// step 2's resolution precedence.
const defaultSequence = "MKVLAAAAAAAAAAAAAAAAAAAAAAAAAA"

// heartbeatInterval is not referenced anywhere: the driver sends no
// heartbeat or comment ping frames.
const heartbeatInterval = 15 * time.Second
