package database

import "github.com/google/uuid"

// NewID returns a random UUID v4 for a new scan record.
func NewID() string {
	return uuid.NewString()
}
