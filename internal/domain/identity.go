package domain

import "strings"

type Role string

const (
	RoleUser   Role = "user"
	RoleMentor Role = "mentor"
)

// ParseRole accepts "user" and "mentor" case-insensitively; anything else is user.
func ParseRole(s string) Role {
	if strings.EqualFold(strings.TrimSpace(s), string(RoleMentor)) {
		return RoleMentor
	}
	return RoleUser
}

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleMentor
}

// Identity is handed over by the auth layer; the coordinator never interprets ID.
type Identity struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
	Role Role   `json:"role,omitempty"`
}

// ConnID identifies one live connection.
type ConnID string
