package app

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stayknown/core/internal/middleware"
	"github.com/stayknown/core/internal/modules/ingest"
	"github.com/stayknown/core/internal/modules/live/page"
	"github.com/stayknown/core/internal/modules/live/seed"
	"github.com/stayknown/core/internal/modules/live/stream"
	"github.com/stayknown/core/internal/modules/live/token"
	"github.com/stayknown/core/internal/modules/system/health"
	"github.com/stayknown/core/internal/pkg/metrics"
	"github.com/stayknown/core/internal/pkg/response"
)

func (a *App) registerRoutes() {
	r := a.router
	authMW := middleware.Auth(a.signer)

	r.NoRoute(func(c *gin.Context) {
		response.NotFound(c)
	})
	r.NoMethod(func(c *gin.Context) {
		response.MethodNotAllowed(c)
	})

	appInfo := gin.H{
		"name":    "stayknown-core",
		"version": "1.0.0",
	}

	// Viewer page at the root, like the product URL in shared links.
	root := r.Group("")
	page.NewHandler(a.cfg.SigningSecret).RegisterRoutes(root)

	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Versioned API
	api := r.Group("/api/v2")
	api.Use(middleware.RateLimit(a.rc.Raw()))

	api.GET("", func(c *gin.Context) { c.PureJSON(http.StatusOK, appInfo) })
	api.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"data": "pong"}) })

	health.RegisterRoutes(api, a.db, a.rc, a.sched, authMW)

	// Live tracking: seed + stream are gated by the capability link at the
	// page boundary, not here.
	seedSvc := seed.NewService(seed.NewGormStore(a.db), a.logger)
	seed.NewHandler(seedSvc).RegisterRoutes(api)

	relay := stream.NewRelay(a.feed, a.cfg.Live.KeepaliveInterval, a.logger)
	stream.NewHandler(relay).RegisterRoutes(api)

	token.NewHandler(a.cfg.SigningSecret, a.cfg.Live.LinkTTL).RegisterRoutes(api, authMW)

	// Owner-side writes
	ingestSvc := ingest.NewService(a.db, a.feed, a.logger)
	ingest.NewHandler(ingestSvc).RegisterRoutes(api, authMW)
}
