// Package matchmaking holds the in-memory state of the matchmaker: the waiting
// queue, the pairing rule, active call sessions and the pending match mailbox.
package matchmaking

import (
	"errors"
	"fmt"

	"github.com/duochat/duochat-backend/internal/models"
)

// Preference is the partner role a participant is willing to be matched with.
type Preference string

const (
	PreferenceMale   Preference = "male"
	PreferenceFemale Preference = "female"
	PreferenceAny    Preference = "both"
)

var ErrInvalidPreference = errors.New("invalid preference")

// ParsePreference maps request input to a Preference. Empty input means any.
func ParsePreference(s string) (Preference, error) {
	switch Preference(s) {
	case "", PreferenceAny:
		return PreferenceAny, nil
	case PreferenceMale, PreferenceFemale:
		return Preference(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPreference, s)
	}
}

// IsFilter reports whether the preference narrows the partner role.
func (p Preference) IsFilter() bool {
	return p == PreferenceMale || p == PreferenceFemale
}

// Participant is a user looking for, or engaged in, a match.
type Participant struct {
	ID         string
	Email      string
	Role       models.Role
	Preference Preference
	Profile    models.UserSummary
	Verified   bool
	Premium    bool
}

// NewParticipant derives a participant from the identity record.
func NewParticipant(u *models.User, pref Preference) Participant {
	return Participant{
		ID:         u.ID,
		Email:      u.Email,
		Role:       u.Role,
		Preference: pref,
		Profile:    u.Summary(),
		Verified:   u.IsVerified,
		Premium:    u.IsPremium(),
	}
}

// Accepts reports whether p is willing to be matched with role.
func (p Participant) Accepts(role models.Role) bool {
	switch p.Preference {
	case "", PreferenceAny:
		return true
	default:
		return string(p.Preference) == string(role)
	}
}

// Compatible is the two-sided pairing rule: each side's preference must accept
// the other's role.
func Compatible(a, b Participant) bool {
	return a.Accepts(b.Role) && b.Accepts(a.Role)
}
