package reasoner

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/foldcore/orchestrator/internal/model"
	"github.com/foldcore/orchestrator/internal/platform/logger"
)

func TestHTTPClientStreamParsesSSEMessages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("X-Reasoner-Session", "sess-42")
		w.WriteHeader(http.StatusOK)
		flusher := w.(http.Flusher)
		fmt.Fprintf(w, "data: {\"type\":\"PROLOGUE\",\"text\":\"starting\"}\n\n")
		flusher.Flush()
		fmt.Fprintf(w, "data: {\"type\":\"CONCLUSION\",\"text\":\"done\",\"final\":true}\n\n")
		flusher.Flush()
	}))
	defer srv.Close()

	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	client := NewHTTPClient(srv.URL, 5*time.Second, log)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ch, sess, err := client.Stream(ctx, "job_x", "MKVLLA")
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if sess.Session != "sess-42" {
		t.Fatalf("expected session handle from response header, got %q", sess.Session)
	}

	var got []Message
	for msg := range ch {
		got = append(got, msg)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(got))
	}
	if got[0].Type != MessagePrologue || !got[1].Final {
		t.Fatalf("unexpected decoded messages: %+v", got)
	}
}

func TestHTTPClientInterruptPostsToBackend(t *testing.T) {
	var called bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		if r.URL.Path != "/interrupt/sess-1" {
			t.Errorf("unexpected interrupt path: %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	log, _ := logger.New("test")
	client := NewHTTPClient(srv.URL, 5*time.Second, log)
	sess := &model.ReasonerSession{Instance: "inst-1", Session: "sess-1", BackendURL: srv.URL}
	err := client.Interrupt(context.Background(), sess)
	if err != nil {
		t.Fatalf("Interrupt: %v", err)
	}
	if !called {
		t.Fatal("expected interrupt request to reach the backend")
	}
}
