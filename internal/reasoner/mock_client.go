package reasoner

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/foldcore/orchestrator/internal/model"
	"github.com/foldcore/orchestrator/internal/platform/logger"
)

// DelayMode selects how the mock client paces message emission.
type DelayMode string

const (
	// DelayNone emits every fixture message back to back, for fast tests.
	DelayNone DelayMode = "none"
	// DelayFixed sleeps exactly DelayMinMS between messages.
	DelayFixed DelayMode = "fixed"
	// DelayRandom sleeps a uniform random duration in [DelayMinMS,DelayMaxMS].
	DelayRandom DelayMode = "random"
	// DelayReal replays each fixture message's own recorded DelayMS,
	// falling back to DelayMinMS when a message has none.
	DelayReal DelayMode = "real"
)

// MockConfig configures the fixture-backed mock reasoner client.
type MockConfig struct {
	DataPath   string
	DelayMode  DelayMode
	DelayMinMS int
	DelayMaxMS int
}

// mockClient replays a fixed fixture file of messages, useful for
// local development and tests without a live reasoner backend.
type mockClient struct {
	log      *logger.Logger
	cfg      MockConfig
	messages []Message
}

// NewMockClient loads the fixture file at cfg.DataPath once and returns
// a Client that replays it for every Stream call.
func NewMockClient(cfg MockConfig, log *logger.Logger) (Client, error) {
	raw, err := os.ReadFile(cfg.DataPath)
	if err != nil {
		return nil, fmt.Errorf("reasoner: read mock fixture %s: %w", cfg.DataPath, err)
	}
	var messages []Message
	if err := json.Unmarshal(raw, &messages); err != nil {
		return nil, fmt.Errorf("reasoner: parse mock fixture %s: %w", cfg.DataPath, err)
	}
	if cfg.DelayMode == "" {
		cfg.DelayMode = DelayNone
	}
	return &mockClient{
		log:      log.With("service", "ReasonerMockClient"),
		cfg:      cfg,
		messages: messages,
	}, nil
}

func (c *mockClient) Stream(ctx context.Context, jobID, sequence string) (<-chan Message, *model.ReasonerSession, error) {
	sess := &model.ReasonerSession{
		Instance:   "mock",
		Session:    uuid.NewString(),
		BackendURL: "mock://reasoner",
	}

	out := make(chan Message, 16)
	go func() {
		defer close(out)
		for i, msg := range c.messages {
			if i > 0 {
				if d := c.delay(msg); d > 0 {
					select {
					case <-time.After(d):
					case <-ctx.Done():
						return
					}
				}
			}
			select {
			case out <- msg:
			case <-ctx.Done():
				return
			}
			if msg.Final {
				return
			}
		}
	}()

	return out, sess, nil
}

func (c *mockClient) Interrupt(_ context.Context, sess *model.ReasonerSession) error {
	c.log.Info("mock interrupt received", "session", sessionOf(sess))
	return nil
}

func (c *mockClient) delay(msg Message) time.Duration {
	switch c.cfg.DelayMode {
	case DelayFixed:
		return time.Duration(c.cfg.DelayMinMS) * time.Millisecond
	case DelayRandom:
		lo, hi := c.cfg.DelayMinMS, c.cfg.DelayMaxMS
		if hi <= lo {
			return time.Duration(lo) * time.Millisecond
		}
		return time.Duration(lo+rand.Intn(hi-lo+1)) * time.Millisecond
	case DelayReal:
		if msg.DelayMS > 0 {
			return time.Duration(msg.DelayMS) * time.Millisecond
		}
		return time.Duration(c.cfg.DelayMinMS) * time.Millisecond
	default:
		return 0
	}
}

func sessionOf(sess *model.ReasonerSession) string {
	if sess == nil {
		return ""
	}
	return sess.Session
}
