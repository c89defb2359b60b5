package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/polaris-foundation/polaris-locations-api/config"
	"github.com/polaris-foundation/polaris-locations-api/internal/api/handler"
	"github.com/polaris-foundation/polaris-locations-api/internal/api/middleware"
	"github.com/polaris-foundation/polaris-locations-api/pkg/jwt"
	"github.com/polaris-foundation/polaris-locations-api/pkg/response"
)

var (
	writeScopes = []string{
		handler.ScopeWriteLocation,
		handler.ScopeWriteGDMLocation,
		handler.ScopeWriteSENDLocation,
	}
	readScopes = []string{
		handler.ScopeReadLocationAll,
		handler.ScopeReadGDMAll,
		handler.ScopeReadGDMLocation,
		handler.ScopeReadSENDLocation,
	}
)

// Setup builds the gin engine. limiter may be nil; reg receives the HTTP
// metrics and is served on /metrics.
func Setup(
	cfg *config.Config,
	h *handler.Handler,
	jwtMgr *jwt.Manager,
	limiter middleware.RateLimiter,
	reg *prometheus.Registry,
	logger *zap.Logger,
) *gin.Engine {
	r := gin.New()

	// ── global middleware ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Metrics(middleware.NewHTTPMetrics(reg)))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(cfg.Server.MaxBodyBytes))

	// ── system ──
	r.GET("/running", h.System.Running)
	r.GET("/version", h.System.Version)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	if cfg.Server.AllowDropData {
		r.POST("/drop_data", h.System.DropData)
	}

	// ── locations ──
	writeLimit := middleware.RateLimit(limiter, cfg.Server.WriteLimit, time.Minute)

	loc := r.Group("/dhos/v1/location")
	loc.Use(middleware.JWTAuth(jwtMgr))
	{
		write := middleware.RequireScopes(writeScopes...)
		read := middleware.RequireScopes(readScopes...)

		loc.POST("", write, writeLimit, h.Location.CreateLocation)
		loc.POST("/bulk", write, writeLimit, h.Location.CreateLocations)
		loc.GET("/search", read, h.Location.SearchLocations)
		loc.POST("/search", read, h.Location.SearchLocationsByUUID)
		loc.GET("/export", read, h.Export.ExportLocations)
		loc.PATCH("/:location_id", write, writeLimit, h.Location.UpdateLocation)
		loc.GET("/:location_id", read, h.Location.GetLocation)
	}

	r.NoRoute(func(c *gin.Context) {
		response.NotFound(c, 10404, "route not found")
	})

	return r
}
