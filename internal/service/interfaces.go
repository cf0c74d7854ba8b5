package service

import (
	"context"
	"time"

	"github.com/duochat/duochat-backend/internal/models"
	"github.com/duochat/duochat-backend/pkg/rtctoken"
)

// Ledger is the durable record of calls.
type Ledger interface {
	CreateCall(ctx context.Context, params models.CreateCallParams) (*models.Call, error)
	// FinishCall moves an active call to ended. It returns nil, nil when the
	// call does not exist or is already terminal.
	FinishCall(ctx context.Context, callID string, endedAt time.Time, durationSeconds int) (*models.Call, error)
	MarkCancelled(ctx context.Context, callID string) error
	FindCallByID(ctx context.Context, callID string) (*models.Call, error)
	ListCallsForUser(ctx context.Context, userID string, limit int) ([]*models.Call, error)
}

// UsageCounter accumulates talk time per user.
type UsageCounter interface {
	IncrementVideoSeconds(ctx context.Context, userID string, seconds int) error
}

// UserDirectory resolves the public profile of call partners.
type UserDirectory interface {
	FindSummaries(ctx context.Context, userIDs []string) (map[string]models.UserSummary, error)
}

// UserStore is the identity record store as seen by the call service.
type UserStore interface {
	UsageCounter
	UserDirectory
}

// CredentialIssuer mints media room join tokens.
type CredentialIssuer interface {
	IssueToken(ctx context.Context, grant rtctoken.Grant, ttl time.Duration) (string, error)
	AppID() string
}

// Notifier pushes an event to a connected user. Delivery is best-effort.
type Notifier interface {
	SendToUser(userID string, msgType string, payload interface{})
}

type noopNotifier struct{}

func (noopNotifier) SendToUser(string, string, interface{}) {}
