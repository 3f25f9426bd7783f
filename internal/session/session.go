// Package session tracks logged-in users. A session is the explicit
// per-request context of the assistant: it names the user whose alarms,
// tasks and history a request touches, and where the user's device is.
package session

import (
	"errors"
	"strings"
	"time"
)

// ErrNotFound is returned for an unknown or expired session token.
var ErrNotFound = errors.New("session not found")

// Coordinates is a device position in decimal degrees.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Session is one logged-in device.
type Session struct {
	Token     string       `json:"token"`
	UserID    string       `json:"user_id"`
	Email     string       `json:"email"`
	Location  *Coordinates `json:"location,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

// UserID derives the opaque partition key for an e-mail address.
// Dots become underscores so the key is usable as a store path segment.
func UserID(email string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(email)), ".", "_")
}
