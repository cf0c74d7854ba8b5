package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/duochat/duochat-backend/internal/models"
	jwtutil "github.com/duochat/duochat-backend/pkg/jwt"
	"github.com/duochat/duochat-backend/pkg/logger"
	"github.com/gin-gonic/gin"
)

const (
	ContextUserID = "userID"
	ContextUser   = "user"
)

// UserLoader resolves the identity record behind a verified token.
type UserLoader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// Auth JWT 인증 미들웨어. 검증된 사용자를 context에 저장
func Auth(jwtManager *jwtutil.JWTManager, users UserLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			abortUnauthorized(c, "Authorization header required")
			return
		}

		// 토큰 검증
		claims, err := jwtManager.Verify(token)
		if err != nil {
			abortUnauthorized(c, "Invalid or expired token")
			return
		}

		user, err := users.FindByID(c.Request.Context(), claims.UserID)
		if err != nil {
			logger.Error("Failed to load user", "userId", claims.UserID, "error", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"ok":    false,
				"kind":  "dependency",
				"error": "Internal server error",
			})
			return
		}
		if user == nil {
			abortUnauthorized(c, "User not found")
			return
		}

		c.Set(ContextUserID, user.ID)
		c.Set(ContextUser, user)

		c.Next()
	}
}

// bearerToken reads "Bearer <token>" from the Authorization header. Browsers
// cannot set headers on websocket upgrades, so the token query parameter is
// accepted as well.
func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		token := c.Query("token")
		return token, token != ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"ok":    false,
		"kind":  "unauthorized",
		"error": msg,
	})
}

// CurrentUser returns the user stored by Auth.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(ContextUser)
	if !ok {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok && user != nil
}
