package server

import (
	"github.com/gin-gonic/gin"

	"github.com/sagelearn/engage-backend/internal/http/handlers"
	"github.com/sagelearn/engage-backend/internal/http/middleware"
	"github.com/sagelearn/engage-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log                 *logger.Logger
	AuthMiddleware      *middleware.AuthMiddleware
	HealthHandler       *handlers.HealthHandler
	SessionHandler      *handlers.SessionHandler
	EngagementHandler   *handlers.EngagementHandler
	InterventionHandler *handlers.InterventionHandler
	ResourceHandler     *handlers.ResourceHandler
	ExtraOrigins        []string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.ExtraOrigins...))
	router.Use(middleware.RequestLogger(cfg.Log))

	// Public
	router.GET("/healthcheck", cfg.HealthHandler.HealthCheck)

	// Protected
	api := router.Group("/api")
	api.Use(cfg.AuthMiddleware.RequireAuth())

	sessions := api.Group("/sessions")
	{
		sessions.POST("/start", cfg.SessionHandler.Start)
		sessions.GET("/active", cfg.SessionHandler.GetActive)
		sessions.GET("/stats", cfg.SessionHandler.Stats)
		sessions.POST("/stats/rebuild", cfg.SessionHandler.RebuildStats)
		sessions.GET("", cfg.SessionHandler.List)
		sessions.POST("/:sessionId/end", cfg.SessionHandler.End)
		sessions.GET("/:sessionId", cfg.SessionHandler.Detail)
	}

	engagement := api.Group("/engagement")
	{
		engagement.POST("/log", cfg.EngagementHandler.Log)
		engagement.GET("/:sessionId/timeline", cfg.EngagementHandler.Timeline)
		engagement.GET("/:sessionId/current", cfg.EngagementHandler.Current)
		engagement.GET("/:sessionId/averages", cfg.EngagementHandler.Averages)
	}

	interventions := api.Group("/interventions")
	{
		// One ":id" wildcard for both session-scoped and intervention-scoped
		// routes; gin rejects differing param names at the same position.
		interventions.GET("/stats", cfg.InterventionHandler.Stats)
		interventions.GET("/:id/suggestion", cfg.InterventionHandler.Suggestion)
		interventions.POST("/:id/response", cfg.InterventionHandler.Respond)
		interventions.GET("/:id/history", cfg.InterventionHandler.History)
	}

	api.GET("/resources", cfg.ResourceHandler.List)

	return router
}
