package matchmaking

import (
	"errors"
	"sync"
	"time"
)

var (
	ErrRoomExists      = errors.New("room already registered")
	ErrParticipantBusy = errors.New("participant already in a call")
)

// Session is an active two-party call keyed by room id.
type Session struct {
	CallID      string
	RoomID      string
	ChannelName string
	InitiatorID string
	ReceiverID  string
	StartedAt   time.Time
}

func (s Session) Has(participantID string) bool {
	return s.InitiatorID == participantID || s.ReceiverID == participantID
}

// Other returns the partner of participantID.
func (s Session) Other(participantID string) string {
	if s.InitiatorID == participantID {
		return s.ReceiverID
	}
	return s.InitiatorID
}

// Sessions tracks active calls and the participants held for a match that is
// still being formed. A participant is in at most one of the two.
type Sessions struct {
	mu            sync.RWMutex
	byRoom        map[string]Session
	byParticipant map[string]string
	reserved      map[string]struct{}
}

func NewSessions() *Sessions {
	return &Sessions{
		byRoom:        make(map[string]Session),
		byParticipant: make(map[string]string),
		reserved:      make(map[string]struct{}),
	}
}

// Reserve holds the participants for a match in formation. It fails without
// side effects if any of them is busy.
func (s *Sessions) Reserve(participantIDs ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range participantIDs {
		if s.busyLocked(id) {
			return ErrParticipantBusy
		}
	}
	for _, id := range participantIDs {
		s.reserved[id] = struct{}{}
	}
	return nil
}

// Release drops reservations that did not turn into a session.
func (s *Sessions) Release(participantIDs ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range participantIDs {
		delete(s.reserved, id)
	}
}

// Register activates a session. Reservations held by its participants are
// consumed.
func (s *Sessions) Register(session Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byRoom[session.RoomID]; ok {
		return ErrRoomExists
	}
	for _, id := range []string{session.InitiatorID, session.ReceiverID} {
		if _, ok := s.byParticipant[id]; ok {
			return ErrParticipantBusy
		}
	}

	s.byRoom[session.RoomID] = session
	for _, id := range []string{session.InitiatorID, session.ReceiverID} {
		delete(s.reserved, id)
		s.byParticipant[id] = session.RoomID
	}
	return nil
}

func (s *Sessions) Get(roomID string) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.byRoom[roomID]
	return session, ok
}

// Remove deletes and returns the session. Only one caller gets ok for a room.
func (s *Sessions) Remove(roomID string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.byRoom[roomID]
	if !ok {
		return Session{}, false
	}
	delete(s.byRoom, roomID)
	for _, id := range []string{session.InitiatorID, session.ReceiverID} {
		if s.byParticipant[id] == roomID {
			delete(s.byParticipant, id)
		}
	}
	return session, true
}

// Claim removes the session and holds both participants as reserved, so they
// cannot be matched again until Release or a new Register.
func (s *Sessions) Claim(roomID string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.byRoom[roomID]
	if !ok {
		return Session{}, false
	}
	delete(s.byRoom, roomID)
	for _, id := range []string{session.InitiatorID, session.ReceiverID} {
		if s.byParticipant[id] == roomID {
			delete(s.byParticipant, id)
		}
		s.reserved[id] = struct{}{}
	}
	return session, true
}

// RemoveByCallID removes the session backed by the ledger record callID.
func (s *Sessions) RemoveByCallID(callID string) (Session, bool) {
	s.mu.Lock()
	roomID := ""
	for id, session := range s.byRoom {
		if session.CallID == callID {
			roomID = id
			break
		}
	}
	s.mu.Unlock()

	if roomID == "" {
		return Session{}, false
	}
	return s.Remove(roomID)
}

// ForParticipant returns the active session the participant is in.
func (s *Sessions) ForParticipant(participantID string) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	roomID, ok := s.byParticipant[participantID]
	if !ok {
		return Session{}, false
	}
	session, ok := s.byRoom[roomID]
	return session, ok
}

// Busy reports whether the participant is in a session or reserved for one.
func (s *Sessions) Busy(participantID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.busyLocked(participantID)
}

func (s *Sessions) busyLocked(participantID string) bool {
	if _, ok := s.byParticipant[participantID]; ok {
		return true
	}
	_, ok := s.reserved[participantID]
	return ok
}

func (s *Sessions) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byRoom)
}
