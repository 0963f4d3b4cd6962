package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/redisolar/internal/infra/config"
	"github.com/yanqian/redisolar/pkg/metrics"
)

// NewRouter wires up the HTTP handlers and returns a configured server.
func NewRouter(cfg *config.Config, handler *Handler, collectors *metrics.Collectors) *http.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(
		gin.Recovery(),
		requestIDMiddleware(),
		requestLogger(handler.logger),
		metricsMiddleware(collectors),
		corsMiddleware(cfg.HTTP.CORS.AllowedOrigins),
		errorHandlingMiddleware(handler.logger),
	)

	router.GET("/healthz", handler.Health)
	router.GET("/metrics", gin.WrapH(collectors.Handler()))

	api := router.Group("/api/v1")
	api.Use(rateLimitMiddleware(cfg.HTTP.RateLimit, handler.logger))
	{
		api.POST("/sites", handler.CreateSite)
		api.GET("/sites", handler.ListSites)
		api.GET("/sites/:id", handler.GetSite)
		api.POST("/meterReadings", handler.SubmitReadings)
		api.GET("/meterReadings", handler.RecentReadings)
		api.GET("/meterReadings/:siteId", handler.SiteReadings)
		api.GET("/siteStats/:siteId", handler.SiteStats)
	}

	return &http.Server{
		Addr:           cfg.HTTP.Address,
		Handler:        router,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}
}
