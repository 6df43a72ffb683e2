// Package domain contains core concepts of the chat system.
// This file defines the User identity and its presence status.
package domain

import (
	"strings"
	"unicode/utf8"
)

type Status string

const (
	StatusOnline  Status = "online"
	StatusIdle    Status = "idle"
	StatusDND     Status = "dnd"
	StatusOffline Status = "offline"
)

// User is the session-scoped identity of a chat member.
type User struct {
	ID       string `json:"id" validate:"required"`
	Username string `json:"username" validate:"required"`
	Email    string `json:"email,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
	Status   Status `json:"status,omitempty" validate:"omitempty,oneof=online idle dnd offline"`
	Activity string `json:"activity,omitempty"`
	Bio      string `json:"bio,omitempty"`
}

func NewUser(id, username string) User {
	return User{
		ID:       id,
		Username: username,
		Avatar:   Initials(username),
		Status:   StatusOnline,
	}
}

// Initials returns the first two characters of the username, upper-cased.
func Initials(username string) string {
	username = strings.TrimSpace(username)
	if utf8.RuneCountInString(username) <= 2 {
		return strings.ToUpper(username)
	}
	return strings.ToUpper(string([]rune(username)[:2]))
}

func (u User) Author() Author {
	avatar := u.Avatar
	if avatar == "" {
		avatar = Initials(u.Username)
	}
	return Author{Username: u.Username, Avatar: avatar}
}

func (u User) Presence() PresenceEntry {
	status := u.Status
	if status == "" {
		status = StatusOnline
	}
	return PresenceEntry{
		UserID:   u.ID,
		Username: u.Username,
		Status:   status,
		Activity: u.Activity,
	}
}
