// Package handlers adapts the core's job-lifecycle components to gin,
// grounded on the teacher's internal/http/handlers request/response
// shape (bind → call a plain service → response.RespondOK/RespondAPIError).
package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/foldcore/orchestrator/internal/cancelpath"
	"github.com/foldcore/orchestrator/internal/eventqueue"
	"github.com/foldcore/orchestrator/internal/httpapi/response"
	"github.com/foldcore/orchestrator/internal/jobmeta"
	"github.com/foldcore/orchestrator/internal/jobstate"
	"github.com/foldcore/orchestrator/internal/model"
	"github.com/foldcore/orchestrator/internal/platform/apierr"
	"github.com/foldcore/orchestrator/internal/platform/logger"
	"github.com/foldcore/orchestrator/internal/streaming"
)

// JobHandler wires the job-lifecycle HTTP surface to the underlying
// stores and services: create, sequence pre-registration, stream,
// cancel, replay, and state, per spec.md §6.
type JobHandler struct {
	log    *logger.Logger
	state  *jobstate.Store
	meta   *jobmeta.Store
	events *eventqueue.Queue
	driver *streaming.Driver
	cancel *cancelpath.Service
}

// NewJobHandler builds a job handler.
func NewJobHandler(log *logger.Logger, state *jobstate.Store, meta *jobmeta.Store, events *eventqueue.Queue, driver *streaming.Driver, cancel *cancelpath.Service) *JobHandler {
	return &JobHandler{
		log:    log.With("handler", "JobHandler"),
		state:  state,
		meta:   meta,
		events: events,
		driver: driver,
		cancel: cancel,
	}
}

type createJobRequest struct {
	Sequence       string `json:"sequence"`
	FastaContent   string `json:"fastaContent"`
	ConversationID string `json:"conversationId"`
}

type createJobResponse struct {
	JobID string     `json:"jobId"`
	Job   *model.Job `json:"job"`
}

// CreateJob handles POST /jobs: validates exactly one of sequence or
// fastaContent, normalizes and validates the resolved sequence, then
// writes meta, state, and the initial queued event in that order.
func (h *JobHandler) CreateJob(c *gin.Context) {
	var req createJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondAPIError(c, apierr.Of(apierr.KindValidation, err))
		return
	}

	hasSequence := strings.TrimSpace(req.Sequence) != ""
	hasFasta := strings.TrimSpace(req.FastaContent) != ""
	if hasSequence == hasFasta {
		respondValidationError(c, []string{"exactly one of sequence or fastaContent must be provided"})
		return
	}

	raw := req.Sequence
	if hasFasta {
		raw = sequenceFromFasta(req.FastaContent)
	}
	sequence := model.NormalizeSequence(raw)
	if problems := model.ValidateSequence(sequence); len(problems) > 0 {
		respondValidationError(c, problems)
		return
	}

	ctx := c.Request.Context()
	jobID := model.NewJobID()

	if _, err := h.meta.Create(ctx, jobID, sequence, req.ConversationID); err != nil {
		response.RespondAPIError(c, apierr.Of(apierr.KindTransientStore, err))
		return
	}
	st, err := h.state.Create(ctx, jobID)
	if err != nil {
		response.RespondAPIError(c, apierr.Of(apierr.KindTransientStore, err))
		return
	}
	if err := h.events.Push(ctx, model.QueuedBookkeepingEvent(jobID)); err != nil {
		h.log.Warn("failed to persist initial queued event", "job_id", jobID, "error", err)
	}

	response.RespondCreated(c, createJobResponse{
		JobID: jobID,
		Job:   jobView(jobID, sequence, req.ConversationID, st),
	})
}

type registerSequenceRequest struct {
	JobID    string `json:"jobId"`
	Sequence string `json:"sequence"`
}

// RegisterSequence handles sequence pre-registration: POST by job id,
// storing a validated sequence into meta for a stream driver on any
// instance to pick up later.
func (h *JobHandler) RegisterSequence(c *gin.Context) {
	jobID := c.Param("id")
	if !model.ValidJobID(jobID) {
		respondValidationError(c, []string{"invalid job id"})
		return
	}

	var req registerSequenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondAPIError(c, apierr.Of(apierr.KindValidation, err))
		return
	}

	sequence := model.NormalizeSequence(req.Sequence)
	if problems := model.ValidateSequence(sequence); len(problems) > 0 {
		respondValidationError(c, problems)
		return
	}

	ctx := c.Request.Context()
	if _, err := h.meta.Get(ctx, jobID); err != nil {
		if errors.Is(err, jobmeta.ErrNotFound) {
			response.RespondAPIError(c, apierr.Of(apierr.KindNotFound, err))
			return
		}
		response.RespondAPIError(c, apierr.Of(apierr.KindTransientStore, err))
		return
	}
	if _, err := h.meta.Create(ctx, jobID, sequence, ""); err != nil {
		response.RespondAPIError(c, apierr.Of(apierr.KindTransientStore, err))
		return
	}

	response.RespondOK(c, gin.H{"jobId": jobID, "sequence": sequence})
}

// Stream handles GET /jobs/:id/stream, the SSE endpoint. Errors that
// occur before any bytes are written are reported as a normal JSON
// error response; errors occurring mid-stream are only logged, since
// the response has already committed to the text/event-stream format.
func (h *JobHandler) Stream(c *gin.Context) {
	jobID := c.Param("id")
	sequenceOverride := c.Query("sequence")

	if err := h.driver.Stream(c.Request.Context(), c.Writer, jobID, sequenceOverride); err != nil {
		switch {
		case errors.Is(err, streaming.ErrInvalidJobID), errors.Is(err, streaming.ErrSequenceUnresolved):
			response.RespondAPIError(c, apierr.Of(apierr.KindValidation, err))
		case errors.Is(err, jobstate.ErrNotFound):
			response.RespondAPIError(c, apierr.Of(apierr.KindNotFound, err))
		case errors.Is(err, streaming.ErrUnsupportedStreaming):
			response.RespondAPIError(c, apierr.New(http.StatusInternalServerError, "streaming_unsupported", err))
		default:
			h.log.Warn("stream ended with an error", "job_id", jobID, "error", err)
		}
	}
}

// Cancel handles POST /jobs/:id/cancel.
func (h *JobHandler) Cancel(c *gin.Context) {
	jobID := c.Param("id")
	result, err := h.cancel.Cancel(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, cancelpath.ErrNotFound) {
			response.RespondAPIError(c, apierr.Of(apierr.KindNotFound, err))
			return
		}
		response.RespondAPIError(c, apierr.Of(apierr.KindValidation, err))
		return
	}
	response.RespondOK(c, result)
}

type replayResponse struct {
	JobID  string         `json:"jobId"`
	Count  int            `json:"count"`
	Total  int64          `json:"total"`
	Offset int            `json:"offset"`
	Events []*model.Event `json:"events"`
}

// Replay handles GET /jobs/:id/events, supporting offset/limit query
// parameters.
func (h *JobHandler) Replay(c *gin.Context) {
	jobID := c.Param("id")
	if !model.ValidJobID(jobID) {
		respondValidationError(c, []string{"invalid job id"})
		return
	}

	offset := queryInt(c, "offset", 0)
	limit := queryInt(c, "limit", 0)

	ctx := c.Request.Context()
	events, err := h.events.FromOffset(ctx, jobID, offset)
	if err != nil {
		response.RespondAPIError(c, apierr.Of(apierr.KindTransientStore, err))
		return
	}
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}

	total, err := h.events.Count(ctx, jobID)
	if err != nil {
		response.RespondAPIError(c, apierr.Of(apierr.KindTransientStore, err))
		return
	}

	response.RespondOK(c, replayResponse{
		JobID:  jobID,
		Count:  len(events),
		Total:  total,
		Offset: offset,
		Events: events,
	})
}

type stateResponse struct {
	JobID string       `json:"jobId"`
	State *model.State `json:"state"`
}

// State handles GET /jobs/:id/state.
func (h *JobHandler) State(c *gin.Context) {
	jobID := c.Param("id")
	if !model.ValidJobID(jobID) {
		respondValidationError(c, []string{"invalid job id"})
		return
	}

	st, err := h.state.Get(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, jobstate.ErrNotFound) {
			response.RespondAPIError(c, apierr.Of(apierr.KindNotFound, err))
			return
		}
		response.RespondAPIError(c, apierr.Of(apierr.KindTransientStore, err))
		return
	}

	response.RespondOK(c, stateResponse{JobID: jobID, State: st})
}

func jobView(jobID, sequence, conversationID string, st *model.State) *model.Job {
	return &model.Job{
		JobID:          jobID,
		Sequence:       sequence,
		ConversationID: conversationID,
		Status:         st.Status,
		Stage:          st.Stage,
		Progress:       st.Progress,
		Message:        st.Message,
		Version:        st.Version,
		CreatedAt:      st.CreatedAt,
		CompletedAt:    st.CompletedAt,
	}
}

func respondValidationError(c *gin.Context, details []string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "validation_error", "details": details})
}

func queryInt(c *gin.Context, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

// sequenceFromFasta extracts the residue sequence from a single-record
// FASTA payload, discarding any header line.
func sequenceFromFasta(fasta string) string {
	var b strings.Builder
	for _, line := range strings.Split(fasta, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, ">") {
			continue
		}
		b.WriteString(line)
	}
	return b.String()
}
