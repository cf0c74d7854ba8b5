package models

import "time"

type Role string

const (
	RoleMale   Role = "male"
	RoleFemale Role = "female"
	RoleAdmin  Role = "admin"
)

type SubscriptionType string

const (
	SubscriptionFree    SubscriptionType = "free"
	SubscriptionPremium SubscriptionType = "premium"
)

type User struct {
	ID                string           `json:"id" db:"id"`
	Email             string           `json:"email" db:"email"`
	FirstName         string           `json:"firstName" db:"first_name"`
	LastName          string           `json:"lastName" db:"last_name"`
	Role              Role             `json:"role" db:"role"`
	IsVerified        bool             `json:"isVerified" db:"is_verified"`
	SubscriptionType  SubscriptionType `json:"subscriptionType" db:"subscription_type"`
	ProfilePicture    *string          `json:"profilePicture,omitempty" db:"profile_picture"`
	TotalVideoSeconds int64            `json:"totalVideoSeconds" db:"total_video_seconds"`
	CreatedAt         time.Time        `json:"createdAt" db:"created_at"`
	UpdatedAt         time.Time        `json:"updatedAt" db:"updated_at"`
}

func (u *User) IsPremium() bool {
	return u.SubscriptionType == SubscriptionPremium
}

// DisplayName joins first and last name, skipping empty parts.
func (u *User) DisplayName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	default:
		return u.FirstName + " " + u.LastName
	}
}

// UserSummary is what the other side of a call gets to see.
type UserSummary struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	FirstName      string  `json:"firstName"`
	Role           Role    `json:"role"`
	ProfilePicture *string `json:"profilePicture,omitempty"`
}

func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:             u.ID,
		Name:           u.DisplayName(),
		FirstName:      u.FirstName,
		Role:           u.Role,
		ProfilePicture: u.ProfilePicture,
	}
}
