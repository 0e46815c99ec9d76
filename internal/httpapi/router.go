package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/foldcore/orchestrator/internal/httpapi/handlers"
	"github.com/foldcore/orchestrator/internal/httpapi/middleware"
	"github.com/foldcore/orchestrator/internal/observability"
	"github.com/foldcore/orchestrator/internal/platform/logger"
)

// RouterConfig collects everything NewRouter needs to wire the job
// lifecycle surface.
type RouterConfig struct {
	Log         *logger.Logger
	Metrics     *observability.Metrics
	JobHandler  *handlers.JobHandler
	CORSOrigins []string
}

// NewRouter builds the gin engine: trace context, request logging,
// metrics, and CORS run ahead of every route, per spec.md §6.
func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.AttachTraceContext())
	r.Use(middleware.RequestLogger(cfg.Log))
	r.Use(middleware.Metrics(cfg.Metrics))
	r.Use(middleware.CORS(cfg.CORSOrigins))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(observability.MetricsHandler()))
	}

	v1 := r.Group("/v1")
	{
		v1.POST("/jobs", cfg.JobHandler.CreateJob)
		v1.POST("/jobs/:id/sequence", cfg.JobHandler.RegisterSequence)
		v1.GET("/jobs/:id/stream", cfg.JobHandler.Stream)
		v1.POST("/jobs/:id/cancel", cfg.JobHandler.Cancel)
		v1.GET("/jobs/:id/events", cfg.JobHandler.Replay)
		v1.GET("/jobs/:id/state", cfg.JobHandler.State)
	}

	return r
}
