package auth

import (
	"fmt"
	"strings"
)

type Role string

const (
	RoleTechnician Role = "Technician"
	RoleDentist    Role = "Dentist"
)

// ParseRole accepts the role names case-insensitively.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "technician":
		return RoleTechnician, nil
	case "dentist":
		return RoleDentist, nil
	default:
		return "", fmt.Errorf("unknown role: %q", s)
	}
}

// Identity is the authenticated principal of a session. It is never mutated after login.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}
