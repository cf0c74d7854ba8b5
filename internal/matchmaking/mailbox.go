package matchmaking

import (
	"context"
	"sync"

	"github.com/duochat/duochat-backend/internal/models"
)

// CallRole tells a participant which side of the pairing they are on.
type CallRole string

const (
	CallRoleCaller CallRole = "caller"
	CallRoleCallee CallRole = "callee"
)

// MatchResult is the payload a participant receives once paired.
type MatchResult struct {
	Matched     bool               `json:"matched"`
	RoomID      string             `json:"roomId"`
	CallID      string             `json:"callId"`
	ChannelName string             `json:"channelName"`
	Token       string             `json:"yourToken"`
	Account     string             `json:"yourAccount"`
	Role        CallRole           `json:"role"`
	Other       models.UserSummary `json:"other"`
}

// Mailbox parks a match result for the participant who did not trigger the
// match until their next request. Take is read-once.
type Mailbox interface {
	Put(ctx context.Context, participantID string, result MatchResult) error
	Take(ctx context.Context, participantID string) (MatchResult, bool, error)
	Discard(ctx context.Context, keys ...string) error
}

// MemoryMailbox keeps pending results in process memory.
type MemoryMailbox struct {
	mu    sync.Mutex
	slots map[string]MatchResult
}

func NewMemoryMailbox() *MemoryMailbox {
	return &MemoryMailbox{slots: make(map[string]MatchResult)}
}

func (m *MemoryMailbox) Put(_ context.Context, participantID string, result MatchResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots[participantID] = result
	return nil
}

func (m *MemoryMailbox) Take(_ context.Context, participantID string) (MatchResult, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	result, ok := m.slots[participantID]
	if ok {
		delete(m.slots, participantID)
	}
	return result, ok, nil
}

func (m *MemoryMailbox) Discard(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.slots, k)
	}
	return nil
}

func (m *MemoryMailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.slots)
}
