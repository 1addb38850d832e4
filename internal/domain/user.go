package domain

import "time"

// PresenceStatus is a user's availability state.
type PresenceStatus string

const (
	StatusOnline  PresenceStatus = "online"
	StatusAway    PresenceStatus = "away"
	StatusBusy    PresenceStatus = "busy"
	StatusOffline PresenceStatus = "offline"
)

// Valid reports whether s is one of the four defined presence values.
func (s PresenceStatus) Valid() bool {
	switch s {
	case StatusOnline, StatusAway, StatusBusy, StatusOffline:
		return true
	}
	return false
}

// User represents a chat participant as stored in the users table.
type User struct {
	ID           int64          `json:"id"`
	Username     string         `json:"username"`
	AvatarURL    string         `json:"avatarUrl,omitempty"`
	Status       PresenceStatus `json:"status"`
	CustomStatus string         `json:"customStatus,omitempty"`
	IsGuest      bool           `json:"isGuest"`
	LastSeen     time.Time      `json:"lastSeen"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// UserRef is the subset of user fields embedded in enriched broadcasts.
type UserRef struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// Ref returns the broadcast-embeddable view of u.
func (u *User) Ref() UserRef {
	return UserRef{ID: u.ID, Username: u.Username, AvatarURL: u.AvatarURL}
}
