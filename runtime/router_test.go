package runtime

import (
	"chat-sync/bus"
	"chat-sync/domain"
	"chat-sync/domain/event"
	"chat-sync/presence"
	"chat-sync/projection"
	"chat-sync/runtime/scheduler"
	"chat-sync/sink"
	"chat-sync/typing"
	"chat-sync/voice"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

// fakeBus keeps handlers so a test can deliver raw payloads by name.
type fakeBus struct {
	handlers map[event.Name][]bus.Handler
	unsubs   int
}

func (f *fakeBus) Subscribe(name event.Name, handler bus.Handler) bus.Subscription {
	if f.handlers == nil {
		f.handlers = make(map[event.Name][]bus.Handler)
	}
	f.handlers[name] = append(f.handlers[name], handler)
	return bus.Subscription{}
}

func (f *fakeBus) Unsubscribe(bus.Subscription) { f.unsubs++ }

func (f *fakeBus) deliver(name event.Name, payload string) {
	for _, h := range f.handlers[name] {
		h(json.RawMessage(payload))
	}
}

type routerFixture struct {
	bus       *fakeBus
	latest    *sink.Latest
	roster    *presence.Registry
	timeline  *projection.Timeline
	tracker   *typing.Tracker
	connector *voice.ManualConnector
	voice     *voice.Coordinator
	router    *Router
}

func newRouterFixture() routerFixture {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	sched := scheduler.New(scheduler.NewManualClock(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)).Now)
	latest := sink.NewLatest()
	fanout := sink.NewFanout(log, latest)
	f := routerFixture{
		bus:       &fakeBus{},
		latest:    latest,
		roster:    presence.NewRegistry(log, fanout),
		timeline:  projection.NewTimeline(log, fanout),
		tracker:   typing.NewTracker(log, sched, fanout, typing.DefaultDebounce),
		connector: &voice.ManualConnector{},
	}
	f.voice = voice.NewCoordinator(log, fanout, f.connector)
	f.voice.SetLocalUser(domain.NewUser("me", "Mehdi"))
	f.router = NewRouter(log, nil, fanout, f.roster, f.timeline, f.tracker, f.voice)
	f.router.Bind(f.bus)
	return f
}

func TestRouter_PresenceEvents(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture()

	f.bus.deliver(event.UserJoined, `{"id":"u1","username":"Alice","status":"offline"}`)
	f.bus.deliver(event.UserJoined, `{"id":"u2","username":"Bob"}`)
	entry, ok := f.roster.Get("u1")
	req.True(ok)
	req.Equal(domain.StatusOnline, entry.Status)

	f.bus.deliver(event.UserLeft, `{"id":"u1","username":"Alice"}`)
	req.Equal(1, f.roster.Len())

	f.bus.deliver(event.UsersOnline, `[{"id":"u3","username":"Carol","status":"idle"}]`)
	req.Equal([]domain.PresenceEntry{{UserID: "u3", Username: "Carol", Status: domain.StatusIdle}}, f.roster.Entries())
}

func TestRouter_PeerJoinedKeepsAnnouncedStatus(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture()

	// Given Bob is listed online
	f.bus.deliver(event.UserJoined, `{"id":"u2","username":"Bob"}`)

	// When he announces a profile change to dnd
	f.bus.deliver(event.UserJoined, `{"id":"u2","username":"Bob","status":"dnd","activity":"In a meeting"}`)

	// Then the roster carries the announced status
	entry, ok := f.roster.Get("u2")
	req.True(ok)
	req.Equal(domain.StatusDND, entry.Status)
	req.Equal("In a meeting", entry.Activity)
	req.Equal(domain.StatusDND, f.latest.Roster().Entries[0].Status)
}

func TestRouter_MessageAndTypingEvents(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture()

	f.bus.deliver(event.UserTyping, `{"userId":"u1","username":"Alice","channelId":"general"}`)
	req.Equal("Alice is typing…", f.latest.Typing("general").Text)
	f.bus.deliver(event.UserStoppedTyping, `{"userId":"u1","channelId":"general"}`)
	req.Empty(f.tracker.Active("general"))

	f.bus.deliver(event.NewMessage, `{"id":"m1","author":{"username":"Alice","avatar":"AL"},"content":"hi","timestamp":"2024-05-01T10:00:00Z","channelId":"general"}`)
	req.Equal(1, f.timeline.Len("general"))
}

func TestRouter_MalformedPayloadNeverReachesManager(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture()

	f.bus.deliver(event.NewMessage, `{"content":"no id"}`)
	f.bus.deliver(event.UserTyping, `{"userId":42}`)
	f.bus.deliver(event.UsersOnline, `null`)
	f.bus.deliver(event.VoiceUserLeft, `not json`)

	req.Zero(f.timeline.Len(""))
	req.Empty(f.tracker.Active(""))
	req.Zero(f.roster.Len())
	req.Zero(f.latest.Count())
}

func TestRouter_VoiceEvents(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture()
	f.voice.Join("gaming")
	f.connector.Confirm(nil)

	f.bus.deliver(event.VoiceUserJoined, `{"userId":"u1","username":"Alice","channelId":"gaming"}`)
	f.bus.deliver(event.VoiceUserJoined, `{"userId":"u2","username":"Bob","channelId":"music"}`)
	f.bus.deliver(event.VoiceUserJoined, `{"userId":"u3","username":"Carol"}`)
	req.Len(f.voice.Participants(), 3)

	f.bus.deliver(event.VoiceUserMuted, `{"userId":"u1","isMuted":true}`)
	f.bus.deliver(event.VoiceUserSpeaking, `{"userId":"u3","isSpeaking":true}`)
	f.bus.deliver(event.VoiceUserLeft, `{"userId":"u3"}`)

	req.Equal([]domain.VoiceParticipant{
		{UserID: "me", Username: "Mehdi"},
		{UserID: "u1", Username: "Alice", IsMuted: true},
	}, f.voice.Participants())
}

func TestRouter_ConnectionLifecycle(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture()

	f.bus.deliver(event.Connect, ``)
	req.True(f.latest.Connected())
	f.bus.deliver(event.Disconnect, ``)
	req.False(f.latest.Connected())

	f.router.Unbind(f.bus)
	req.Equal(len(event.InboundNames)+2, f.bus.unsubs)
}
