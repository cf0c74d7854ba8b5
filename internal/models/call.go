package models

import "time"

type CallStatus string

const (
	CallStatusActive    CallStatus = "active"
	CallStatusEnded     CallStatus = "ended"
	CallStatusCompleted CallStatus = "completed"
	CallStatusCancelled CallStatus = "cancelled"
	CallStatusRejected  CallStatus = "rejected"
	CallStatusNoAnswer  CallStatus = "no_answer"
)

// IsTerminal reports whether the status can no longer change.
func (s CallStatus) IsTerminal() bool {
	return s != CallStatusActive
}

// CallMetadata ties a ledger row to the media room it was created for.
type CallMetadata struct {
	RoomID      string `json:"roomId,omitempty"`
	ChannelName string `json:"channelName,omitempty"`
	Source      string `json:"source,omitempty"`
}

type Call struct {
	ID              string       `json:"id" db:"id"`
	CallerID        string       `json:"callerId" db:"caller_id"`
	CalleeID        string       `json:"calleeId" db:"callee_id"`
	StartedAt       time.Time    `json:"startedAt" db:"started_at"`
	EndedAt         *time.Time   `json:"endedAt,omitempty" db:"ended_at"`
	Status          CallStatus   `json:"status" db:"status"`
	DurationSeconds int          `json:"durationSeconds" db:"duration_seconds"`
	Metadata        CallMetadata `json:"metadata" db:"metadata"`
	CreatedAt       time.Time    `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time    `json:"updatedAt" db:"updated_at"`
}

// HasParticipant reports whether userID is the caller or the callee.
func (c *Call) HasParticipant(userID string) bool {
	return c.CallerID == userID || c.CalleeID == userID
}

// OtherParty returns the id of the participant that is not userID.
func (c *Call) OtherParty(userID string) string {
	if c.CallerID == userID {
		return c.CalleeID
	}
	return c.CallerID
}

type CreateCallParams struct {
	CallerID  string
	CalleeID  string
	StartedAt time.Time
	Status    CallStatus
	Metadata  CallMetadata
}

// CallHistoryEntry is a call as seen by one of its participants.
type CallHistoryEntry struct {
	Call
	OtherUser UserSummary `json:"otherUser"`
}
