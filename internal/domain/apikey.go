package domain

import "time"

// APIKey represents an API key used to authenticate API requests. Only the
// hash is stored; Key is populated solely in the create response. The Role
// attached to a key becomes the actor role of runs it starts.
type APIKey struct {
	ID         string     `json:"id" db:"id"`
	Name       string     `json:"name" db:"name"`
	Role       Role       `json:"role" db:"role"`
	KeyHash    string     `json:"-" db:"key_hash"`
	KeyPrefix  string     `json:"key_prefix" db:"key_prefix"`
	Key        string     `json:"key,omitempty" db:"-"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty" db:"last_used_at"`
}

// CreateAPIKeyRequest is the body for creating an API key. Role defaults to
// user when empty.
type CreateAPIKeyRequest struct {
	Name string `json:"name"`
	Role Role   `json:"role,omitempty"`
}
