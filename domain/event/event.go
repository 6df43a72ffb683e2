package event

import (
	"chat-sync/domain"
	"encoding/json"
)

// Name identifies one kind of event on the wire.
type Name string

// Lifecycle pseudo-events raised by the bus itself.
const (
	Connect    Name = "connect"
	Disconnect Name = "disconnect"
)

// Outbound intents.
const (
	UserOnline        Name = "user-online"
	UserOffline       Name = "user-offline"
	SendMessage       Name = "send-message"
	TypingStart       Name = "typing-start"
	TypingStop        Name = "typing-stop"
	JoinChannel       Name = "join-channel"
	LeaveChannel      Name = "leave-channel"
	JoinVoiceChannel  Name = "join-voice-channel"
	LeaveVoiceChannel Name = "leave-voice-channel"
	VoiceMuteStatus   Name = "voice-mute-status"
)

// Inbound notifications.
const (
	UserJoined        Name = "user-joined"
	UserLeft          Name = "user-left"
	UsersOnline       Name = "users-online"
	NewMessage        Name = "new-message"
	UserTyping        Name = "user-typing"
	UserStoppedTyping Name = "user-stopped-typing"
	VoiceUserJoined   Name = "voice-user-joined"
	VoiceUserLeft     Name = "voice-user-left"
	VoiceUserMuted    Name = "voice-user-muted"
	VoiceUserSpeaking Name = "voice-user-speaking"
)

// InboundNames lists every event the router binds a manager to.
var InboundNames = []Name{
	UserJoined, UserLeft, UsersOnline,
	NewMessage,
	UserTyping, UserStoppedTyping,
	VoiceUserJoined, VoiceUserLeft, VoiceUserMuted, VoiceUserSpeaking,
}

// Frame is the envelope exchanged with the transport.
type Frame struct {
	Event   Name            `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Inbound is one decoded notification with a fixed payload shape.
type Inbound interface {
	EventName() Name
}

type PeerJoined struct{ User domain.User }

func (PeerJoined) EventName() Name { return UserJoined }

type PeerLeft struct{ User domain.User }

func (PeerLeft) EventName() Name { return UserLeft }

type RosterSnapshot struct{ Entries []domain.PresenceEntry }

func (RosterSnapshot) EventName() Name { return UsersOnline }

type MessageReceived struct{ Message domain.Message }

func (MessageReceived) EventName() Name { return NewMessage }

type TypingStarted struct {
	UserID    string `json:"userId" validate:"required"`
	Username  string `json:"username"`
	ChannelID string `json:"channelId" validate:"required"`
}

func (TypingStarted) EventName() Name { return UserTyping }

type TypingStopped struct {
	UserID    string `json:"userId" validate:"required"`
	ChannelID string `json:"channelId" validate:"required"`
}

func (TypingStopped) EventName() Name { return UserStoppedTyping }

// VoiceJoined carries the participant; ChannelID is optional and,
// when present, scopes the event to one voice channel.
type VoiceJoined struct {
	domain.VoiceParticipant
	ChannelID string `json:"channelId,omitempty"`
}

func (VoiceJoined) EventName() Name { return VoiceUserJoined }

type VoiceLeft struct {
	UserID string `json:"userId" validate:"required"`
}

func (VoiceLeft) EventName() Name { return VoiceUserLeft }

// UnmarshalJSON accepts {"userId":"u1"} as well as a bare "u1".
func (v *VoiceLeft) UnmarshalJSON(data []byte) error {
	var userID string
	if err := json.Unmarshal(data, &userID); err == nil {
		v.UserID = userID
		return nil
	}
	type plain VoiceLeft
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*v = VoiceLeft(p)
	return nil
}

type VoiceMuted struct {
	UserID     string `json:"userId" validate:"required"`
	IsMuted    bool   `json:"isMuted"`
	IsDeafened bool   `json:"isDeafened"`
}

func (VoiceMuted) EventName() Name { return VoiceUserMuted }

type VoiceSpeaking struct {
	UserID     string `json:"userId" validate:"required"`
	IsSpeaking bool   `json:"isSpeaking"`
}

func (VoiceSpeaking) EventName() Name { return VoiceUserSpeaking }

// Outbound payloads.

type TypingPayload struct {
	UserID    string `json:"userId"`
	Username  string `json:"username,omitempty"`
	ChannelID string `json:"channelId"`
}

type ChannelPayload struct {
	ChannelID string `json:"channelId"`
}

type JoinVoicePayload struct {
	UserID    string `json:"userId"`
	ChannelID string `json:"channelId"`
}

type LeaveVoicePayload struct {
	UserID string `json:"userId"`
}

type MuteStatusPayload struct {
	UserID     string `json:"userId"`
	IsMuted    bool   `json:"isMuted"`
	IsDeafened bool   `json:"isDeafened"`
}
