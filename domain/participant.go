// Package domain contains core concepts of the chat system.
// This file defines voice participants and typing signals.
// No runtime, network, or UI logic should be added here.
package domain

import "time"

// VoiceParticipant is a membership record inside the active voice session.
type VoiceParticipant struct {
	UserID     string `json:"userId" validate:"required"`
	Username   string `json:"username,omitempty"`
	IsMuted    bool   `json:"isMuted"`
	IsDeafened bool   `json:"isDeafened"`
	IsSpeaking bool   `json:"isSpeaking"`
}

// TypingSignal is ephemeral and always scoped to one channel.
type TypingSignal struct {
	UserID    string
	Username  string
	ChannelID string
	Deadline  time.Time
}
