// Package auth verifies the bearer credentials presented by chat clients and
// turns them into an Identity. Issuing credentials belongs to the account
// service; Issuer exists for local development and tests only.
package auth

import (
	"errors"
	"strings"
)

var (
	ErrInvalidCredential = errors.New("invalid credential")
	ErrExpiredCredential = errors.New("expired credential")
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Identity is the verified owner of a connection. It is captured once at
// admission and never re-verified per message.
type Identity struct {
	UserID      string
	DisplayName string
	Role        Role
}

func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// FallbackName derives a display name from a user id that is usually an
// e-mail address: "alice@example.com" becomes "alice".
func FallbackName(userID string) string {
	if at := strings.Index(userID, "@"); at > 0 {
		return userID[:at]
	}
	return userID
}
