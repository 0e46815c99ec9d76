package config

import (
	"testing"
	"time"

	"github.com/foldcore/orchestrator/internal/platform/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg := Load(testLogger(t))

	if cfg.JobStateTTL != 86400*time.Second {
		t.Fatalf("expected default job-state TTL of 86400s, got %v", cfg.JobStateTTL)
	}
	if cfg.StaleTerminalAfter != 259200*time.Second {
		t.Fatalf("expected default stale-terminal threshold of 259200s, got %v", cfg.StaleTerminalAfter)
	}
	if cfg.OrphanMetaAfter != 172800*time.Second {
		t.Fatalf("expected default orphan-meta threshold of 172800s, got %v", cfg.OrphanMetaAfter)
	}
	if cfg.MaxEventsPerJob != 1000 {
		t.Fatalf("expected default max events per job of 1000, got %d", cfg.MaxEventsPerJob)
	}
	if cfg.ReaperInterval != 600*time.Second {
		t.Fatalf("expected default reaper interval of 600s, got %v", cfg.ReaperInterval)
	}
	if cfg.UseMock {
		t.Fatal("expected use_mock to default to false")
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "http://localhost:3000" {
		t.Fatalf("expected a single default CORS origin, got %v", cfg.CORSOrigins)
	}
}

func TestLoadReadsOverridesFromEnvironment(t *testing.T) {
	t.Setenv("JOB_STATE_TTL_SECONDS", "120")
	t.Setenv("USE_MOCK_REASONER", "true")
	t.Setenv("CORS_ORIGINS", "https://a.example.com, https://b.example.com")
	t.Setenv("MOCK_REASONER_DELAY_MODE", "real")

	cfg := Load(testLogger(t))

	if cfg.JobStateTTL != 120*time.Second {
		t.Fatalf("expected overridden job-state TTL of 120s, got %v", cfg.JobStateTTL)
	}
	if !cfg.UseMock {
		t.Fatal("expected use_mock override to be true")
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[0] != "https://a.example.com" || cfg.CORSOrigins[1] != "https://b.example.com" {
		t.Fatalf("expected two trimmed CORS origins, got %v", cfg.CORSOrigins)
	}
	if cfg.MockDelayMode != "real" {
		t.Fatalf("expected mock delay mode override of real, got %s", cfg.MockDelayMode)
	}
}
