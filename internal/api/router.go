package api

import (
	"github.com/duochat/duochat-backend/internal/api/handlers"
	"github.com/duochat/duochat-backend/internal/api/middleware"
	"github.com/duochat/duochat-backend/internal/config"
	"github.com/duochat/duochat-backend/internal/websocket"
	jwtutil "github.com/duochat/duochat-backend/pkg/jwt"
	"github.com/duochat/duochat-backend/pkg/ratelimit"
	"github.com/gin-gonic/gin"
)

// Dependencies are the wired components the HTTP surface serves.
type Dependencies struct {
	Calls       handlers.CallService
	Stats       handlers.Stats
	Users       middleware.UserLoader
	DB          handlers.Pinger
	Hub         *websocket.Hub
	JoinLimiter ratelimit.Limiter
	JWTManager  *jwtutil.JWTManager
}

// SetupRouter API 라우터 설정
func SetupRouter(cfg *config.Config, deps Dependencies) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// 전역 미들웨어
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.CORS(cfg.CORSAllowedOrigins))

	// Handler 초기화
	callHandler := handlers.NewCallHandler(deps.Calls)
	healthHandler := handlers.NewHealthHandler(deps.DB, deps.Stats)
	wsHandler := handlers.NewWebSocketHandler(deps.Hub, cfg.CORSAllowedOrigins)

	// Health check
	router.GET("/health", healthHandler.HealthCheck)

	api := router.Group("/api")
	api.Use(middleware.Auth(deps.JWTManager, deps.Users))
	{
		// WebSocket endpoint
		api.GET("/ws", wsHandler.HandleWebSocket)

		// Matchmaking routes
		match := api.Group("/match")
		{
			if deps.JoinLimiter != nil {
				match.POST("/join", middleware.RateLimit(deps.JoinLimiter, middleware.UserKeyFunc), callHandler.Join)
			} else {
				match.POST("/join", callHandler.Join)
			}
			match.POST("/leave", callHandler.Leave)
		}

		// Call routes
		call := api.Group("/call")
		{
			call.POST("/end", callHandler.EndCall)
			call.POST("/status", callHandler.CallStatus)
			call.POST("/token", callHandler.RefreshToken)
		}

		api.GET("/video/history", callHandler.History)
	}

	return router
}
