package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/pdfpilot/pdfpilot-backend/internal/handlers"
	"github.com/pdfpilot/pdfpilot-backend/internal/middleware"
)

type RouterConfig struct {
	AllowOrigins        []string
	AuthMiddleware      *middleware.AuthMiddleware
	RateLimitMiddleware *middleware.RateLimitMiddleware
	AuthHandler         *handlers.AuthHandler
	FileHandler         *handlers.FileHandler
	MessageHandler      *handlers.MessageHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()
	router.Use(otelgin.Middleware("pdfpilot-backend"))

	// Cors
	origins := cfg.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	// ===============
	// || Public    ||
	// ===============
	router.GET("/healthcheck", handlers.HealthCheck)

	// ===============
	// || Protected ||
	// ===============
	api := router.Group("/api")
	api.Use(cfg.AuthMiddleware.RequireAuth())
	// Auth
	api.POST("/auth/callback", cfg.AuthHandler.Callback)
	// Files
	api.GET("/files", cfg.FileHandler.List)
	api.POST("/files/upload-complete", cfg.FileHandler.UploadComplete)
	api.GET("/files/:id/upload-status", cfg.FileHandler.UploadStatus)
	api.GET("/files/:id/messages", cfg.FileHandler.ListMessages)
	api.DELETE("/files/:id", cfg.FileHandler.Delete)
	// Chat
	api.POST("/message", cfg.RateLimitMiddleware.Limit(), cfg.MessageHandler.Send)

	return router
}
