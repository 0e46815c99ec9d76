// Package app wires every component into one runnable process,
// grounded on the teacher's internal/app.App + wireRepos/wireServices/
// wireHandlers/wireRouter construction pipeline.
package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/foldcore/orchestrator/internal/cancelpath"
	"github.com/foldcore/orchestrator/internal/config"
	"github.com/foldcore/orchestrator/internal/eventqueue"
	"github.com/foldcore/orchestrator/internal/httpapi"
	"github.com/foldcore/orchestrator/internal/httpapi/handlers"
	"github.com/foldcore/orchestrator/internal/jobmeta"
	"github.com/foldcore/orchestrator/internal/jobstate"
	"github.com/foldcore/orchestrator/internal/keys"
	"github.com/foldcore/orchestrator/internal/observability"
	"github.com/foldcore/orchestrator/internal/platform/kvstore"
	"github.com/foldcore/orchestrator/internal/platform/logger"
	"github.com/foldcore/orchestrator/internal/reaper"
	"github.com/foldcore/orchestrator/internal/reasoner"
	"github.com/foldcore/orchestrator/internal/segmentation"
	"github.com/foldcore/orchestrator/internal/streaming"
)

// App is the process-level container: every wired component plus the
// gin server ready to run.
type App struct {
	Log     *logger.Logger
	Cfg     config.Config
	KV      kvstore.Store
	Metrics *observability.Metrics
	State   *jobstate.Store
	Meta    *jobmeta.Store
	Events  *eventqueue.Queue
	Reaper  *reaper.Reaper
	Server  *httpapi.Server

	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
}

// New builds the full dependency graph from environment configuration.
func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("loading environment variables")
	cfg := config.Load(log)

	kv, err := kvstore.NewRedisStore(kvstore.Config{
		Addr:         cfg.KVHost + ":" + cfg.KVPort,
		Password:     cfg.KVPassword,
		DB:           cfg.KVDB,
		DialTimeout:  cfg.KVDialTimeout,
		ReadTimeout:  cfg.KVReadTimeout,
		WriteTimeout: cfg.KVWriteTimeout,
	}, log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init kv store: %w", err)
	}

	sc := keys.NewScheme(cfg.KeyPrefix)
	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
	otelShutdown := observability.InitOTel(context.Background(), log, observability.OtelConfig{
		ServiceName: "foldcore",
		Environment: logMode,
	})

	state := jobstate.New(kv, sc, log, cfg.JobStateTTL)
	meta := jobmeta.New(kv, sc, log, cfg.JobStateTTL)
	events := eventqueue.New(kv, sc, log, cfg.EventsTTL, cfg.StaleTerminalAfter, cfg.MaxEventsPerJob)

	var client reasoner.Client
	if cfg.UseMock {
		client, err = reasoner.NewMockClient(reasoner.MockConfig{
			DataPath:   cfg.MockDataPath,
			DelayMode:  cfg.MockDelayMode,
			DelayMinMS: cfg.MockDelayMinMS,
			DelayMaxMS: cfg.MockDelayMaxMS,
		}, log)
		if err != nil {
			log.Sync()
			return nil, fmt.Errorf("init mock reasoner client: %w", err)
		}
	} else {
		client = reasoner.NewHTTPClient(cfg.ReasonerBaseURL, cfg.ReasonerTimeout, log)
	}

	engine := segmentation.New(log, cfg.StructureDir)
	driver := streaming.New(log, state, meta, events, engine, client)
	cancelSvc := cancelpath.New(log, state, meta, client, cfg.ReasonerInterruptWait)

	r := reaper.New(log, kv, sc, reaper.Config{
		Interval:      cfg.ReaperInterval,
		StaleTerminal: cfg.StaleTerminalAfter,
		OrphanMeta:    cfg.OrphanMetaAfter,
	}, metrics)

	jobHandler := handlers.NewJobHandler(log, state, meta, events, driver, cancelSvc)
	server := httpapi.NewServer(httpapi.RouterConfig{
		Log:         log,
		Metrics:     metrics,
		JobHandler:  jobHandler,
		CORSOrigins: cfg.CORSOrigins,
	})

	return &App{
		Log:          log,
		Cfg:          cfg,
		KV:           kv,
		Metrics:      metrics,
		State:        state,
		Meta:         meta,
		Events:       events,
		Reaper:       r,
		Server:       server,
		otelShutdown: otelShutdown,
	}, nil
}

// Start launches the background reaper sweep loop when runReaper is
// true. runServer is accepted for symmetry with the teacher's
// Start(runServer, runWorker) signature but the HTTP server itself is
// only ever driven by Run.
func (a *App) Start(runServer, runReaper bool) {
	if a == nil || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	if runReaper && a.Reaper != nil {
		a.Reaper.Start(ctx)
	}
	_ = runServer
}

// Run blocks serving HTTP on addr.
func (a *App) Run(addr string) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	return a.Server.Run(addr)
}

// Close stops background work and flushes the logger.
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.otelShutdown != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.otelShutdown(shutdownCtx); err != nil && a.Log != nil {
			a.Log.Warn("otel shutdown failed", "error", err)
		}
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}

func init() {
	gin.SetMode(gin.ReleaseMode)
}
