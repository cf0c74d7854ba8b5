package handlers

import (
	"errors"
	"net/http"

	"github.com/duochat/duochat-backend/internal/api/middleware"
	"github.com/duochat/duochat-backend/internal/service"
	"github.com/duochat/duochat-backend/pkg/logger"
	"github.com/gin-gonic/gin"
)

var kindStatus = map[service.ErrorKind]int{
	service.KindUnauthorized: http.StatusUnauthorized,
	service.KindValidation:   http.StatusBadRequest,
	service.KindForbidden:    http.StatusForbidden,
	service.KindNotFound:     http.StatusNotFound,
	service.KindDependency:   http.StatusInternalServerError,
}

// respondError writes the structured rejection for err. Dependency failures
// are logged and hidden behind a generic message.
func respondError(c *gin.Context, err error) {
	kind := service.KindOf(err)
	status, ok := kindStatus[kind]
	if !ok {
		status = http.StatusInternalServerError
	}

	body := gin.H{
		"ok":   false,
		"kind": kind,
	}

	if kind == service.KindDependency {
		logger.Error("Request failed",
			"path", c.Request.URL.Path,
			"userId", c.GetString(middleware.ContextUserID),
			"error", err)
		body["error"] = "Internal server error"
	} else {
		body["error"] = err.Error()
	}

	if errors.Is(err, service.ErrPremiumRequired) {
		body["requiresPremium"] = true
	}

	c.AbortWithStatusJSON(status, body)
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"ok":    false,
		"kind":  service.KindValidation,
		"error": msg,
	})
}
