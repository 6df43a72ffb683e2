package event

import "chat-sync/domain"

type Topic string

const (
	TopicConnection Topic = "connection"
	TopicRoster     Topic = "roster"
	TopicTimeline   Topic = "timeline"
	TopicTyping     Topic = "typing"
	TopicVoice      Topic = "voice"
)

// DomainEvent is a render-ready snapshot republished by a manager
// after it changed its own state.
type DomainEvent interface {
	Topic() Topic
}

type ConnectionChanged struct {
	Connected bool
}

func (ConnectionChanged) Topic() Topic { return TopicConnection }

type RosterChanged struct {
	Entries []domain.PresenceEntry
}

func (RosterChanged) Topic() Topic { return TopicRoster }

type TimelineChanged struct {
	ChannelID string
	Messages  []domain.Message
}

func (TimelineChanged) Topic() Topic { return TopicTimeline }

type TypingChanged struct {
	ChannelID string
	Signals   []domain.TypingSignal
	Text      string
}

func (TypingChanged) Topic() Topic { return TopicTyping }

type VoiceChanged struct {
	State        string
	ChannelID    string
	Participants []domain.VoiceParticipant
	IsMuted      bool
	IsDeafened   bool
}

func (VoiceChanged) Topic() Topic { return TopicVoice }
