package model

import (
	"strconv"
	"strings"
)

// Sender is a resolved message author.
type Sender struct {
	ID        int64
	FirstName string
	LastName  string
	Username  string
	Bot       bool
}

// DisplayName joins first and last name; empty when both are absent.
func (s Sender) DisplayName() string {
	return strings.TrimSpace(s.FirstName + " " + s.LastName)
}

// ProfileLink prefers the public handle and falls back to a deep link by ID.
func (s Sender) ProfileLink() string {
	if s.Username != "" {
		return "https://t.me/" + s.Username
	}
	return "tg://user?id=" + strconv.FormatInt(s.ID, 10)
}

// Identity is what the report needs to know about a sender.
type Identity struct {
	DisplayName string
	ProfileLink string
}

// IdentityOf converts a resolved sender into a report identity.
func IdentityOf(s Sender) Identity {
	return Identity{DisplayName: s.DisplayName(), ProfileLink: s.ProfileLink()}
}
