// Package domain contains entity without logic, just meta-data
// plus the invariants the entities themselves own.
package domain

import (
	"errors"
	"strings"
	"unicode/utf8"
)

const MaxDisplayNameLen = 64

var (
	ErrNameEmpty   = errors.New("display name empty")
	ErrNameTooLong = errors.New("display name too long")
)

type UserID string

// User backs the identity-lookup collaborator. Only display metadata
// lives here; authentication is out of scope.
type User struct {
	ID   UserID `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

func NewUser(id UserID, name string) (*User, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrNameEmpty
	}
	if utf8.RuneCountInString(name) > MaxDisplayNameLen {
		return nil, ErrNameTooLong
	}
	return &User{ID: id, Name: name}, nil
}
