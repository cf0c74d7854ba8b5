package handlers

import (
	"github.com/duochat/duochat-backend/internal/api/middleware"
	"github.com/duochat/duochat-backend/internal/service"
	"github.com/duochat/duochat-backend/internal/websocket"
	"github.com/gin-gonic/gin"
	gorilla "github.com/gorilla/websocket"
)

// WebSocketHandler WebSocket 연결 처리
type WebSocketHandler struct {
	hub      *websocket.Hub
	upgrader *gorilla.Upgrader
}

// NewWebSocketHandler WebSocketHandler 생성
func NewWebSocketHandler(hub *websocket.Hub, allowedOrigins []string) *WebSocketHandler {
	return &WebSocketHandler{
		hub:      hub,
		upgrader: websocket.NewUpgrader(allowedOrigins),
	}
}

// HandleWebSocket WebSocket 연결 엔드포인트 (match_ready, call_ended 이벤트 수신)
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	// 인증 미들웨어에서 설정한 userID 가져오기
	userID := c.GetString(middleware.ContextUserID)
	if userID == "" {
		respondError(c, service.ErrUnauthorized)
		return
	}

	websocket.ServeWs(h.hub, h.upgrader, c.Writer, c.Request, userID)
}
