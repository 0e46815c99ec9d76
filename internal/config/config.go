// Package config loads the core's runtime configuration from the
// environment, grounded on the teacher's internal/app.LoadConfig and
// internal/utils.GetEnv* helper family, per spec.md §6.
package config

import (
	"time"

	"github.com/foldcore/orchestrator/internal/platform/logger"
	"github.com/foldcore/orchestrator/internal/reasoner"
	"github.com/foldcore/orchestrator/internal/utils"
)

// Config is every environment-driven setting the core reads at start.
type Config struct {
	KVHost         string
	KVPort         string
	KVPassword     string
	KVDB           int
	KVDialTimeout  time.Duration
	KVReadTimeout  time.Duration
	KVWriteTimeout time.Duration

	KeyPrefix string

	JobStateTTL        time.Duration
	EventsTTL          time.Duration
	StaleTerminalAfter time.Duration
	OrphanMetaAfter    time.Duration
	MaxEventsPerJob    int
	ReaperInterval     time.Duration

	ReasonerBaseURL       string
	ReasonerTimeout       time.Duration
	ReasonerInterruptWait time.Duration

	UseMock        bool
	MockDataPath   string
	MockDelayMode  reasoner.DelayMode
	MockDelayMinMS int
	MockDelayMaxMS int

	StructureDir string

	BindHost    string
	BindPort    string
	CORSOrigins []string
}

// Load reads every setting from the environment, applying spec.md §6's
// defaults wherever a variable is unset.
func Load(log *logger.Logger) Config {
	return Config{
		KVHost:         utils.GetEnv("KV_HOST", "localhost", log),
		KVPort:         utils.GetEnv("KV_PORT", "6379", log),
		KVPassword:     utils.GetEnv("KV_PASSWORD", "", log),
		KVDB:           utils.GetEnvAsInt("KV_DB", 0, log),
		KVDialTimeout:  utils.GetEnvAsDuration("KV_DIAL_TIMEOUT_SECONDS", 5*time.Second, log),
		KVReadTimeout:  utils.GetEnvAsDuration("KV_READ_TIMEOUT_SECONDS", 3*time.Second, log),
		KVWriteTimeout: utils.GetEnvAsDuration("KV_WRITE_TIMEOUT_SECONDS", 3*time.Second, log),

		KeyPrefix: utils.GetEnv("KV_PREFIX", "foldcore", log),

		JobStateTTL:        utils.GetEnvAsDuration("JOB_STATE_TTL_SECONDS", 86400*time.Second, log),
		EventsTTL:          utils.GetEnvAsDuration("EVENTS_TTL_SECONDS", 86400*time.Second, log),
		StaleTerminalAfter: utils.GetEnvAsDuration("STALE_TERMINAL_THRESHOLD_SECONDS", 259200*time.Second, log),
		OrphanMetaAfter:    utils.GetEnvAsDuration("ORPHAN_META_THRESHOLD_SECONDS", 172800*time.Second, log),
		MaxEventsPerJob:    utils.GetEnvAsInt("MAX_EVENTS_PER_JOB", 1000, log),
		ReaperInterval:     utils.GetEnvAsDuration("REAPER_INTERVAL_SECONDS", 600*time.Second, log),

		ReasonerBaseURL:       utils.GetEnv("REASONER_BASE_URL", "http://localhost:9090", log),
		ReasonerTimeout:       utils.GetEnvAsDuration("REASONER_STREAM_TIMEOUT_SECONDS", 300*time.Second, log),
		ReasonerInterruptWait: utils.GetEnvAsDuration("REASONER_INTERRUPT_TIMEOUT_SECONDS", 10*time.Second, log),

		UseMock:        utils.GetEnvAsBool("USE_MOCK_REASONER", false, log),
		MockDataPath:   utils.GetEnv("MOCK_REASONER_DATA_PATH", "./testdata/mock_reasoner_fixture.json", log),
		MockDelayMode:  reasoner.DelayMode(utils.GetEnv("MOCK_REASONER_DELAY_MODE", "random", log)),
		MockDelayMinMS: utils.GetEnvAsInt("MOCK_REASONER_DELAY_MIN_MS", 50, log),
		MockDelayMaxMS: utils.GetEnvAsInt("MOCK_REASONER_DELAY_MAX_MS", 400, log),

		StructureDir: utils.GetEnv("STRUCTURE_FILE_DIR", "./data/structures", log),

		BindHost:    utils.GetEnv("BIND_HOST", "0.0.0.0", log),
		BindPort:    utils.GetEnv("BIND_PORT", "8080", log),
		CORSOrigins: utils.GetEnvAsStringSlice("CORS_ORIGINS", []string{"http://localhost:3000"}, log),
	}
}
