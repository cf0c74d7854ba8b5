package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/duochat/duochat-backend/internal/api/middleware"
	"github.com/duochat/duochat-backend/internal/matchmaking"
	"github.com/duochat/duochat-backend/internal/models"
	"github.com/duochat/duochat-backend/internal/service"
	"github.com/gin-gonic/gin"
)

// CallService is the matchmaking and call lifecycle API the handlers drive.
type CallService interface {
	Join(ctx context.Context, p matchmaking.Participant) (*service.JoinResult, error)
	Leave(ctx context.Context, participantID string) bool
	EndCall(ctx context.Context, req service.EndCallRequest) (*service.EndCallResult, error)
	Status(ctx context.Context, callID string) (bool, error)
	RefreshToken(ctx context.Context, roomID, participantID string) (*service.TokenResult, error)
	History(ctx context.Context, userID string) ([]models.CallHistoryEntry, error)
}

type CallHandler struct {
	calls CallService
}

func NewCallHandler(calls CallService) *CallHandler {
	return &CallHandler{calls: calls}
}

type joinRequest struct {
	LookingFor string `json:"lookingFor"`
}

type matchedResponse struct {
	OK bool `json:"ok"`
	*matchmaking.MatchResult
}

// Join 매칭 대기열 참가 또는 대기 중인 매칭 결과 수신
func (h *CallHandler) Join(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		respondError(c, service.ErrUnauthorized)
		return
	}

	var req joinRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, "Invalid request body")
		return
	}

	pref, err := matchmaking.ParsePreference(req.LookingFor)
	if err != nil {
		respondError(c, err)
		return
	}

	result, err := h.calls.Join(c.Request.Context(), matchmaking.NewParticipant(user, pref))
	if err != nil {
		respondError(c, err)
		return
	}

	if result.Match != nil {
		c.JSON(http.StatusOK, matchedResponse{OK: true, MatchResult: result.Match})
		return
	}

	body := gin.H{
		"ok":      true,
		"waiting": true,
		"message": "Waiting for a match",
	}
	if result.ActiveRoomID != "" {
		body["message"] = "Already in a call"
		body["activeRoomId"] = result.ActiveRoomID
	}
	c.JSON(http.StatusOK, body)
}

// Leave 매칭 대기열에서 나가기
func (h *CallHandler) Leave(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		respondError(c, service.ErrUnauthorized)
		return
	}

	h.calls.Leave(c.Request.Context(), user.ID)

	c.JSON(http.StatusOK, gin.H{
		"ok":      true,
		"message": "Left matchmaking queue",
	})
}

type endCallRequest struct {
	RoomID   string `json:"roomId"`
	CallID   string `json:"callId"`
	ForceEnd bool   `json:"forceEnd"`
}

// EndCall 통화 종료
func (h *CallHandler) EndCall(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		respondError(c, service.ErrUnauthorized)
		return
	}

	var req endCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	if req.RoomID == "" {
		badRequest(c, "roomId is required")
		return
	}

	result, err := h.calls.EndCall(c.Request.Context(), service.EndCallRequest{
		RoomID:      req.RoomID,
		CallID:      req.CallID,
		RequesterID: user.ID,
		ForceEnd:    req.ForceEnd,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":       true,
		"ended":    true,
		"forceEnd": result.ForceEnd,
		"message":  result.Message,
		"duration": result.DurationSeconds,
	})
}

type callStatusRequest struct {
	CallID string `json:"callId"`
}

// CallStatus 통화 종료 여부 조회
func (h *CallHandler) CallStatus(c *gin.Context) {
	var req callStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	if req.CallID == "" {
		badRequest(c, "callId is required")
		return
	}

	ended, err := h.calls.Status(c.Request.Context(), req.CallID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ended": ended})
}

type tokenRequest struct {
	RoomID string `json:"roomId"`
}

// RefreshToken 통화방 토큰 재발급
func (h *CallHandler) RefreshToken(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		respondError(c, service.ErrUnauthorized)
		return
	}

	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	if req.RoomID == "" {
		badRequest(c, "roomId is required")
		return
	}

	token, err := h.calls.RefreshToken(c.Request.Context(), req.RoomID, user.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":          true,
		"token":       token.Token,
		"channelName": token.ChannelName,
		"appId":       token.AppID,
		"expiresAt":   token.ExpiresAt,
	})
}

// History 최근 통화 기록
func (h *CallHandler) History(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		respondError(c, service.ErrUnauthorized)
		return
	}

	calls, err := h.calls.History(c.Request.Context(), user.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"calls": calls,
		"total": len(calls),
	})
}
