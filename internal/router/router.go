package router

import (
	"net/http"
	"time"

	"github.com/acefrcr/acefrcr-backend/internal/config"
	"github.com/acefrcr/acefrcr-backend/internal/handler"
	"github.com/acefrcr/acefrcr-backend/internal/middleware"
	"github.com/acefrcr/acefrcr-backend/internal/response"
	"github.com/acefrcr/acefrcr-backend/internal/service"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth    *handler.AuthHandler
	Attempt *handler.AttemptHandler
	WS      *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Apply brotli middleware globally.
	router.Use(middleware.Brotli())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for auth routes (30 requests per minute per IP).
	authLimiter := middleware.NewRateLimiter(30, time.Minute)

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	auth := router.Group("/api/v1/auth")
	auth.Use(authLimiter.Middleware())
	{
		auth.POST("/login", handlers.Auth.Login)
		auth.POST("/logout", middleware.RequireUserJWT(authService), handlers.Auth.Logout)
	}

	// ─── 2. Attempt Group (JWT + Single Device) ────────────────────────
	attemptAPI := router.Group("/api/v1/attempts")
	attemptAPI.Use(
		middleware.RequireUserJWT(authService),
		middleware.CheckSingleDeviceSession(authService),
	)
	{
		attemptAPI.GET("/history", handlers.Attempt.History)
		attemptAPI.POST("/:module/start", handlers.Attempt.Start)
		attemptAPI.POST("/:module/select", handlers.Attempt.Select)
		attemptAPI.POST("/:module/submit", handlers.Attempt.Submit)
		attemptAPI.POST("/:module/next", handlers.Attempt.Next)
		attemptAPI.POST("/:module/finalize", handlers.Attempt.Finalize)
		attemptAPI.GET("/:module/state", handlers.Attempt.GetState)
		attemptAPI.GET("/:module/paper", handlers.Attempt.GetPaper)
	}

	// ─── 3. WebSocket Group (WS Auth via query token) ──────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireWSAuth(authService))
	{
		ws.GET("/attempts/:module/stream", handlers.WS.AttemptEventStream)
	}

	return router
}
