// Package segmentation classifies the reasoner's foreign message
// stream into the service's own event taxonomy: it groups thinking
// messages into numbered blocks, synthesizes structure artifacts, and
// interpolates progress, per spec.md §4.5.
package segmentation

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/foldcore/orchestrator/internal/model"
	"github.com/foldcore/orchestrator/internal/platform/logger"
	"github.com/foldcore/orchestrator/internal/reasoner"
)

// Engine turns a reasoner message stream into an ordered event stream
// for one job.
type Engine struct {
	log          *logger.Logger
	structureDir string
}

// New builds a segmentation engine. structureDir is the base directory
// a THINKING message's attachment filename is resolved against when no
// inline PDB payload is present.
func New(log *logger.Logger, structureDir string) *Engine {
	return &Engine{log: log.With("service", "SegmentationEngine"), structureDir: structureDir}
}

// Run classifies messages into events for jobID. It first drains
// messages fully (N, the total reasoner message count, must be known
// at engine start per spec.md §4.5's progress formula), then replays
// them in order onto the returned channel, checking ctx between each
// emission so a canceled job stops short. The channel is closed when
// every message has been classified or the context is done.
func (e *Engine) Run(ctx context.Context, jobID string, messages <-chan reasoner.Message) <-chan *model.Event {
	out := make(chan *model.Event, 1)

	go func() {
		defer close(out)

		buffered := drain(ctx, messages)
		n := len(buffered)

		bookkeeping := model.QueuedBookkeepingEvent(jobID)
		if !emit(ctx, out, bookkeeping) {
			return
		}

		seq := 2
		currentBlock := 0
		structureOrdinal := 0

		for i, msg := range buffered {
			ev, consumedBlock, artifactEmitted := e.classify(jobID, msg, i+1, n, seq, currentBlock, &structureOrdinal)
			if ev == nil {
				continue
			}
			if !emit(ctx, out, ev) {
				return
			}
			seq++
			if artifactEmitted {
				currentBlock = consumedBlock + 1
			}
			if ev.EventType == model.EventFailed {
				return
			}
		}
	}()

	return out
}

func drain(ctx context.Context, messages <-chan reasoner.Message) []reasoner.Message {
	var buffered []reasoner.Message
	for {
		select {
		case msg, ok := <-messages:
			if !ok {
				return buffered
			}
			buffered = append(buffered, msg)
			if msg.Final {
				return buffered
			}
		case <-ctx.Done():
			return buffered
		}
	}
}

func emit(ctx context.Context, out chan<- *model.Event, ev *model.Event) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// classify implements the (type, has_attachment, state) -> event-type
// classifier from spec.md §4.5. It returns the event to emit, the
// block index the event belongs to (so the caller can decide whether
// to advance current_block), and whether a structure artifact was
// synthesized (which is what actually closes a block).
func (e *Engine) classify(jobID string, msg reasoner.Message, i, n, seq, currentBlock int, structureOrdinal *int) (ev *model.Event, block int, artifactEmitted bool) {
	progress := interpolateProgress(i, n)

	base := &model.Event{
		JobID:    jobID,
		EventID:  model.EventID(jobID, seq),
		Seq:      seq,
		TS:       model.NowMillis(),
		Stage:    model.StageModel,
		Status:   model.StatusRunning,
		Progress: progress,
		Message:  msg.Text,
	}

	switch msg.Type {
	case reasoner.MessagePrologue:
		base.EventType = model.EventPrologue
		return base, currentBlock, false

	case reasoner.MessageAnnotation:
		base.EventType = model.EventAnnotation
		return base, currentBlock, false

	case reasoner.MessageConclusion:
		base.EventType = model.EventConclusion
		base.Stage = model.StageDone
		base.Status = model.StatusComplete
		base.Progress = 100
		return base, currentBlock, false

	case reasoner.MessageError:
		base.EventType = model.EventFailed
		base.Stage = model.StageError
		base.Status = model.StatusFailed
		if base.Message == "" {
			base.Message = "reasoner reported an error"
		}
		return base, currentBlock, false

	case reasoner.MessageThinking:
		blk := currentBlock
		base.BlockIndex = &blk
		if !msg.HasAttachment {
			base.EventType = model.EventThinkingTxt
			return base, currentBlock, false
		}
		*structureOrdinal++
		artifact, err := e.synthesizeArtifact(jobID, msg, *structureOrdinal)
		if err != nil {
			e.log.Warn("structure attachment unreadable, falling back to THINKING_TEXT", "job_id", jobID, "error", err)
			*structureOrdinal--
			base.EventType = model.EventThinkingTxt
			return base, currentBlock, false
		}
		base.EventType = model.EventThinkingPDB
		base.Artifacts = []*model.StructureArtifact{artifact}
		return base, currentBlock, true

	default:
		// Unknown reasoner message types default to THINKING_TEXT rather
		// than crash, per spec.md §9 DESIGN NOTES.
		blk := currentBlock
		base.BlockIndex = &blk
		base.EventType = model.EventThinkingTxt
		return base, currentBlock, false
	}
}

// interpolateProgress implements min(95, 10 + floor(85*i/N)) for i in
// 1..N, except the caller overrides this for CONCLUSION messages,
// which always report 100.
func interpolateProgress(i, n int) int {
	if n <= 0 {
		return 10
	}
	p := 10 + (85*i)/n
	if p > 95 {
		p = 95
	}
	return p
}

func (e *Engine) synthesizeArtifact(jobID string, msg reasoner.Message, ordinal int) (*model.StructureArtifact, error) {
	pdbData := msg.AttachmentPDB
	if pdbData == "" {
		if msg.AttachmentFilename == "" {
			return nil, fmt.Errorf("segmentation: attachment has no inline data or filename")
		}
		path := filepath.Join(e.structureDir, msg.AttachmentFilename)
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("segmentation: read structure file %s: %w", path, err)
		}
		pdbData = string(raw)
	}

	return &model.StructureArtifact{
		StructureID:   model.StructureID(jobID, ordinal),
		Label:         msg.AttachmentLabel,
		Filename:      msg.AttachmentFilename,
		InlinePDBData: pdbData,
		CreatedAt:     model.NowMillis(),
		COT:           msg.Text,
	}, nil
}
