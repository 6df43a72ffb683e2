// Package domain contains core concepts of the chat system.
// This file defines Message events and related rules.
// Messages are immutable once accepted in a timeline.
package domain

import "time"

type MessageType string

const (
	MessageText   MessageType = "text"
	MessageSystem MessageType = "system"
)

type Author struct {
	Username string `json:"username" validate:"required"`
	Avatar   string `json:"avatar,omitempty"`
}

// Message represents an immutable chat message.
// ID is generated by the sending client and stays the same
// between the optimistic copy and the relayed one.
type Message struct {
	ID        string      `json:"id" validate:"required"`
	Author    Author      `json:"author"`
	Content   string      `json:"content"`
	Timestamp time.Time   `json:"timestamp"`
	ChannelID string      `json:"channelId" validate:"required"`
	Type      MessageType `json:"type,omitempty"`
}
