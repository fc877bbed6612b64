// Package domain contains core domain types for the legal chat relay.
package domain

import (
	"time"
)

// DefaultUserName is assigned to users created without a display name.
const DefaultUserName = "Guest"

// User is a durable identity that owns chats.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"nombre"`
	Email     *string   `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// HasEmail returns true if the user was registered with an email address.
func (u *User) HasEmail() bool {
	return u.Email != nil && *u.Email != ""
}
