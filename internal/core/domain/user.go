package domain

import (
	"strings"
	"time"
)

// Role is the capability string the backend assigns to an identity.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleEmployee Role = "employee"
	RoleSupplier Role = "supplier"
	RoleCustomer Role = "customer"
)

// ParseRole case-folds a role received over the wire and rejects unknown values.
func ParseRole(raw string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(raw)))
	switch r {
	case RoleAdmin, RoleEmployee, RoleSupplier, RoleCustomer:
		return r, nil
	}
	return "", ErrInvalidRole
}

// User is the identity record returned by /auth/login and /auth/me.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// Session is the single active identity and its bearer credential.
type Session struct {
	User  User
	Token string
	// ExpiresAt is read from the token's exp claim when the token is a JWT.
	// Zero when unknown; expiry is still discovered through a 401.
	ExpiresAt time.Time
}

// Authenticated reports whether the session carries a credential.
func (s *Session) Authenticated() bool {
	return s != nil && s.Token != ""
}

// HasRole reports whether the session's role is one of roles.
func (s *Session) HasRole(roles ...Role) bool {
	if !s.Authenticated() {
		return false
	}
	for _, r := range roles {
		if s.User.Role == r {
			return true
		}
	}
	return false
}
