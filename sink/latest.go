package sink

import (
	"chat-sync/domain/event"
	"context"
	"sync"
)

// Latest keeps the most recent snapshot per topic (and per channel for
// channel-scoped topics) so a view can be read at any time.
type Latest struct {
	mu        sync.RWMutex
	roster    event.RosterChanged
	voice     event.VoiceChanged
	connected bool
	timelines map[string]event.TimelineChanged
	typing    map[string]event.TypingChanged
	count     int
}

func NewLatest() *Latest {
	return &Latest{
		timelines: make(map[string]event.TimelineChanged),
		typing:    make(map[string]event.TypingChanged),
	}
}

func (l *Latest) Consume(_ context.Context, e event.DomainEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.count++
	switch evt := e.(type) {
	case event.ConnectionChanged:
		l.connected = evt.Connected
	case event.RosterChanged:
		l.roster = evt
	case event.TimelineChanged:
		l.timelines[evt.ChannelID] = evt
	case event.TypingChanged:
		l.typing[evt.ChannelID] = evt
	case event.VoiceChanged:
		l.voice = evt
	}
	return nil
}

func (l *Latest) Connected() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.connected
}

func (l *Latest) Roster() event.RosterChanged {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.roster
}

func (l *Latest) Timeline(channelID string) event.TimelineChanged {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.timelines[channelID]
}

func (l *Latest) Typing(channelID string) event.TypingChanged {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.typing[channelID]
}

func (l *Latest) Voice() event.VoiceChanged {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.voice
}

// Count is the number of snapshots received so far.
func (l *Latest) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.count
}
