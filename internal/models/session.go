package models

import "time"

// Session is an anonymous browser session. Every uploaded document and generated
// result is scoped to exactly one session and discarded when it ends.
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}
