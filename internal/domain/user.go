// Package domain contains room entities and the rules that keep them consistent.
// It has no locking and no transport; callers serialise access per room.
package domain

import (
	"strings"

	"github.com/google/uuid"
)

const (
	MaxUsernameLen  = 36
	DefaultUsername = "Anonymous"
)

// ConnID identifies one live transport connection (the "socketId" on the wire).
type ConnID string

func NewConnID() ConnID {
	return ConnID(uuid.NewString())
}

// User is the display identity a connection presents when joining.
type User struct {
	ConnID   ConnID `json:"socketId"`
	Username string `json:"username"`
}

// NormalizeUsername trims the name and falls back to DefaultUsername when empty.
func NormalizeUsername(username string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return DefaultUsername, nil
	}
	if len(username) > MaxUsernameLen {
		return "", ErrUsernameTooLong
	}
	return username, nil
}
