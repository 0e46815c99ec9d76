package httpapi

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/foldcore/orchestrator/internal/cancelpath"
	"github.com/foldcore/orchestrator/internal/eventqueue"
	"github.com/foldcore/orchestrator/internal/httpapi/handlers"
	"github.com/foldcore/orchestrator/internal/jobmeta"
	"github.com/foldcore/orchestrator/internal/jobstate"
	"github.com/foldcore/orchestrator/internal/keys"
	"github.com/foldcore/orchestrator/internal/observability"
	"github.com/foldcore/orchestrator/internal/platform/kvstore"
	"github.com/foldcore/orchestrator/internal/platform/logger"
	"github.com/foldcore/orchestrator/internal/reasoner"
	"github.com/foldcore/orchestrator/internal/segmentation"
	"github.com/foldcore/orchestrator/internal/streaming"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	kv := kvstore.NewFake()
	sc := keys.NewScheme("test")

	state := jobstate.New(kv, sc, log, time.Hour)
	meta := jobmeta.New(kv, sc, log, time.Hour)
	events := eventqueue.New(kv, sc, log, time.Hour, time.Hour, 0)
	engine := segmentation.New(log, t.TempDir())

	fixturePath := t.TempDir() + "/fixture.json"
	if err := writeEmptyFixture(fixturePath); err != nil {
		t.Fatalf("writeEmptyFixture: %v", err)
	}
	client, err := reasoner.NewMockClient(reasoner.MockConfig{DataPath: fixturePath, DelayMode: reasoner.DelayNone}, log)
	if err != nil {
		t.Fatalf("NewMockClient: %v", err)
	}

	driver := streaming.New(log, state, meta, events, engine, client)
	cancelSvc := cancelpath.New(log, state, meta, client, time.Second)
	jobHandler := handlers.NewJobHandler(log, state, meta, events, driver, cancelSvc)

	// A private registry avoids colliding with other tests in this
	// package that also construct Metrics: /metrics itself always
	// scrapes the process-wide default registry, so this only confirms
	// the route is wired, not that these particular series are present.
	metrics := observability.NewMetrics(prometheus.NewRegistry())

	return NewRouter(RouterConfig{
		Log:         log,
		Metrics:     metrics,
		JobHandler:  jobHandler,
		CORSOrigins: []string{"http://localhost:3000"},
	})
}

func writeEmptyFixture(path string) error {
	return os.WriteFile(path, []byte(`[{"type":"CONCLUSION","text":"done","final":true}]`), 0o644)
}

func TestHealthzReturnsOK(t *testing.T) {
	r := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestMetricsEndpointIsRegistered(t *testing.T) {
	r := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
