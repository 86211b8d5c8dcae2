package httpapi

import (
	"github.com/gin-gonic/gin"
	swaggerfiles "github.com/swaggo/files"
	ginswagger "github.com/swaggo/gin-swagger"

	"github.com/pytake/taskqueue/internal/authn"
	"github.com/pytake/taskqueue/internal/config"
	"github.com/pytake/taskqueue/internal/metrics"
	"github.com/pytake/taskqueue/internal/middleware"
	"github.com/pytake/taskqueue/internal/store"
	"github.com/pytake/taskqueue/internal/wshub"
)

// NewRouter assembles the gin engine: ambient middleware first, then
// the domain routes, optionally gating mutating routes behind an admin
// bearer token.
func NewRouter(h *Handler, db store.Store, cfg *config.Config, jwtManager *authn.JWTManager, hub *wshub.Hub, process *metrics.ProcessRegistry) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.CORS(cfg))
	r.Use(middleware.SecurityHeaders(middleware.APISecurityHeadersConfig()))
	r.Use(middleware.RateLimiter(db, cfg))

	r.GET("/health", h.Health)
	r.GET("/metrics", h.Metrics)
	r.GET("/queues", h.QueuesSummary)
	r.GET("/recent", h.Recent)
	r.GET("/jobs/:id", h.GetJob)
	r.GET("/demo", h.Demo)
	r.GET("/demo/complex", h.DemoComplex)

	admin := r.Group("")
	if cfg.Auth.Enabled && jwtManager != nil {
		admin.Use(authn.RequireAdmin(jwtManager))
	}
	admin.POST("/jobs", h.CreateJob)
	admin.POST("/_tick", h.Tick)

	if cfg.WebSocket.Enabled && hub != nil {
		r.GET("/ws/events", func(c *gin.Context) { hub.ServeHTTP(c.Writer, c.Request) })
	}

	if process != nil && cfg.Monitoring.ProcessMetricsEnabled {
		r.GET(cfg.Monitoring.ProcessMetricsPath, gin.WrapH(process.Handler()))
	}

	r.GET("/swagger/*any", ginswagger.WrapHandler(swaggerfiles.Handler))

	return r
}
