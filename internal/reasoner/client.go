package reasoner

import (
	"context"

	"github.com/foldcore/orchestrator/internal/model"
)

// Client is the reasoner component's external interface. Stream opens
// a narration session for a sequence and returns a channel of
// Messages, closed when the reasoner's stream ends or the context is
// canceled (the mock client also closes it right after a Final
// message). Interrupt asks a running session to stop.
type Client interface {
	Stream(ctx context.Context, jobID, sequence string) (<-chan Message, *model.ReasonerSession, error)
	Interrupt(ctx context.Context, sess *model.ReasonerSession) error
}
