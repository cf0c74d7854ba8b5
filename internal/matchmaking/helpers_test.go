package matchmaking

import (
	"time"

	"github.com/duochat/duochat-backend/internal/models"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func participant(id string, role models.Role, pref Preference) Participant {
	return Participant{
		ID:         id,
		Role:       role,
		Preference: pref,
		Profile:    models.UserSummary{ID: id, FirstName: id, Role: role},
	}
}

func entry(p Participant, joinedAt time.Time) Entry {
	return Entry{Participant: p, JoinedAt: joinedAt}
}

func ids(q *Queue, now time.Time) []string {
	var out []string
	for e := range q.Scan(now) {
		out = append(out, e.Participant.ID)
	}
	return out
}
