package server

import (
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/veilhq/veil-backend/internal/handlers"
	"github.com/veilhq/veil-backend/internal/middleware"
)

type RouterConfig struct {
	ServiceName     string
	AllowedOrigins  []string
	AuthHandler     *handlers.AuthHandler
	AuthMiddleware  *middleware.AuthMiddleware
	IngestHandler   *handlers.IngestHandler
	ThreadHandler   *handlers.ThreadHandler
	ThemeHandler    *handlers.ThemeHandler
	ExportHandler   *handlers.ExportHandler
	DigestHandler   *handlers.DigestHandler
	RotationHandler *handlers.RotationHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000", "http://localhost:5173"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "veil-backend"
	}
	router.Use(otelgin.Middleware(serviceName))

	// ===============
	// || Public    ||
	// ===============
	router.GET("/healthcheck", handlers.HealthCheck)
	router.POST("/register", cfg.AuthHandler.Register)
	router.POST("/login", cfg.AuthHandler.Login)
	router.POST("/api/ingest/slack", cfg.IngestHandler.SubmitFeedback)

	// ===============
	// || Protected ||
	// ===============
	protected := router.Group("/api")
	protected.Use(cfg.AuthMiddleware.RequireAuth())
	// Auth
	protected.POST("/logout", cfg.AuthHandler.Logout)
	// Threads
	protected.GET("/threads", cfg.ThreadHandler.List)
	protected.GET("/threads/:id", cfg.ThreadHandler.GetByID)
	// Themes
	protected.GET("/themes", cfg.ThemeHandler.List)
	protected.POST("/themes/rebuild", cfg.ThemeHandler.Rebuild)
	// Exports
	protected.GET("/export", cfg.ExportHandler.Download)
	protected.POST("/export/bucket", cfg.ExportHandler.ToBucket)
	// Digest
	protected.GET("/digest/preview", cfg.DigestHandler.Preview)
	// Key rotation
	protected.POST("/keys/rotate", cfg.RotationHandler.Rotate)
	protected.GET("/keys/history", cfg.RotationHandler.History)

	return router
}
