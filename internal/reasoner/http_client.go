package reasoner

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/foldcore/orchestrator/internal/model"
	"github.com/foldcore/orchestrator/internal/pkg/httpx"
	"github.com/foldcore/orchestrator/internal/platform/logger"
)

// httpClient drives the real reasoner backend over HTTP, consuming its
// response body as an SSE stream of JSON messages.
type httpClient struct {
	log        *logger.Logger
	httpClient *http.Client
	baseURL    string
	instance   string
}

// NewHTTPClient builds a reasoner client that talks to a live backend
// at baseURL (e.g. http://reasoner:9000).
func NewHTTPClient(baseURL string, timeout time.Duration, log *logger.Logger) Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &httpClient{
		log:        log.With("service", "ReasonerHTTPClient"),
		httpClient: &http.Client{Timeout: 0}, // streaming: no blanket client timeout
		baseURL:    strings.TrimRight(baseURL, "/"),
		instance:   uuid.NewString(),
	}
}

func (c *httpClient) Stream(ctx context.Context, jobID, sequence string) (<-chan Message, *model.ReasonerSession, error) {
	body, err := json.Marshal(map[string]string{"job_id": jobID, "sequence": sequence})
	if err != nil {
		return nil, nil, fmt.Errorf("reasoner: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/fold/stream", bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("reasoner: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("reasoner: dial: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, nil, fmt.Errorf("reasoner: unexpected status %d", resp.StatusCode)
	}

	sess := &model.ReasonerSession{
		Instance:   c.instance,
		Session:    resp.Header.Get("X-Reasoner-Session"),
		BackendURL: c.baseURL,
	}
	if sess.Session == "" {
		sess.Session = uuid.NewString()
	}

	out := make(chan Message, 16)
	go func() {
		defer close(out)
		defer resp.Body.Close()
		if err := streamSSE(resp.Body, func(event, data string) error {
			if data == "" {
				return nil
			}
			var msg Message
			if err := json.Unmarshal([]byte(data), &msg); err != nil {
				c.log.Warn("dropping unparseable reasoner message", "job_id", jobID, "error", err)
				return nil
			}
			msg.Raw = json.RawMessage(data)
			select {
			case out <- msg:
			case <-ctx.Done():
				return ctx.Err()
			}
			return nil
		}); err != nil && !errors.Is(err, context.Canceled) {
			c.log.Warn("reasoner stream ended with error", "job_id", jobID, "error", err)
		}
	}()

	return out, sess, nil
}

func (c *httpClient) Interrupt(ctx context.Context, sess *model.ReasonerSession) error {
	if sess == nil || sess.BackendURL == "" {
		return nil
	}
	url := strings.TrimRight(sess.BackendURL, "/") + "/interrupt/" + sess.Session

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return fmt.Errorf("reasoner: build interrupt request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if httpx.IsRetryableError(err) {
			c.log.Warn("reasoner interrupt failed, not retrying (best effort)", "session", sess.Session, "error", err)
		}
		return fmt.Errorf("reasoner: interrupt: %w", err)
	}
	defer resp.Body.Close()
	if httpx.IsRetryableHTTPStatus(resp.StatusCode) {
		return fmt.Errorf("reasoner: interrupt returned retryable status %d", resp.StatusCode)
	}
	return nil
}

// streamSSE scans r as a text/event-stream body, invoking onEvent once
// per dispatched event with its event name (if any) and joined data
// lines.
func streamSSE(r io.Reader, onEvent func(event string, data string) error) error {
	br := bufio.NewReader(r)
	var (
		eventName string
		dataLines []string
	)

	flush := func() error {
		if len(dataLines) == 0 {
			eventName = ""
			return nil
		}
		data := strings.Join(dataLines, "\n")
		dataLines = nil
		ev := eventName
		eventName = ""
		if onEvent == nil {
			return nil
		}
		return onEvent(ev, data)
	}

	for {
		line, err := br.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				_ = flush()
				break
			}
			return err
		}
		line = strings.TrimRight(line, "\r\n")

		if line == "" {
			if err := flush(); err != nil {
				return err
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		if strings.HasPrefix(line, "event:") {
			eventName = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			continue
		}
		if strings.HasPrefix(line, "data:") {
			dataLines = append(dataLines, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
			continue
		}
	}

	return nil
}
