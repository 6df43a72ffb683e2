package relay

import (
	"chat-sync/domain"
	"chat-sync/domain/event"
	"context"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

type peer struct {
	t    *testing.T
	conn *websocket.Conn
}

func startRelay(t *testing.T) (*Hub, string) {
	hub := NewHub(logs.GetLoggerFromLevel(slog.LevelDebug))
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = hub.Run(ctx) }()
	server := httptest.NewServer(hub)
	t.Cleanup(func() {
		cancel()
		server.Close()
	})
	return hub, "ws" + strings.TrimPrefix(server.URL, "http")
}

// settle waits until the hub has applied the membership changes.
func settle(t *testing.T, check func() bool) {
	require.Eventually(t, check, 2*time.Second, 5*time.Millisecond)
}

func connected(hub *Hub, n int) func() bool {
	return func() bool { return hub.registry.Len() == n }
}

func members(hub *Hub, room string, n int) func() bool {
	return func() bool { return len(hub.registry.Room(room)) == n }
}

func dial(t *testing.T, url string) *peer {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &peer{t: t, conn: conn}
}

func (p *peer) send(name event.Name, payload any) {
	raw, err := json.Marshal(payload)
	require.NoError(p.t, err)
	require.NoError(p.t, p.conn.WriteJSON(event.Frame{Event: name, Payload: raw}))
}

func (p *peer) next() event.Frame {
	require.NoError(p.t, p.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame event.Frame
	require.NoError(p.t, p.conn.ReadJSON(&frame))
	return frame
}

func (p *peer) expect(name event.Name) json.RawMessage {
	frame := p.next()
	require.Equal(p.t, name, frame.Event)
	return frame.Payload
}

// online announces the user and consumes the two replies it triggers.
func (p *peer) online(user domain.User) {
	p.send(event.UserOnline, user)
	p.expect(event.UserJoined)
	p.expect(event.UsersOnline)
}

var (
	alice = domain.NewUser("u1", "Alice")
	bob   = domain.NewUser("u2", "Bob")
	carol = domain.NewUser("u3", "Carol")
)

func TestHub_UserOnlineBroadcastsAndSendsRoster(t *testing.T) {
	req := require.New(t)
	hub, url := startRelay(t)
	a := dial(t, url)
	b := dial(t, url)
	settle(t, connected(hub, 2))

	a.online(alice)
	b.expect(event.UserJoined)

	// When Bob announces himself
	b.send(event.UserOnline, bob)

	// Then Alice learns about Bob and Bob receives the full roster
	var joined domain.User
	req.NoError(json.Unmarshal(a.expect(event.UserJoined), &joined))
	req.Equal(bob, joined)
	b.expect(event.UserJoined)
	var roster []domain.PresenceEntry
	req.NoError(json.Unmarshal(b.expect(event.UsersOnline), &roster))
	req.ElementsMatch([]domain.PresenceEntry{alice.Presence(), bob.Presence()}, roster)
}

func TestHub_RosterKeepsAnnouncedStatus(t *testing.T) {
	req := require.New(t)
	hub, url := startRelay(t)
	a := dial(t, url)
	b := dial(t, url)
	settle(t, connected(hub, 2))

	// Given Alice announced herself as do not disturb
	busy := alice
	busy.Status = domain.StatusDND
	busy.Activity = "Focusing"
	a.online(busy)
	b.expect(event.UserJoined)

	// When Bob comes online
	b.send(event.UserOnline, bob)
	a.expect(event.UserJoined)
	b.expect(event.UserJoined)

	// Then the roster Bob receives still lists Alice as dnd
	var roster []domain.PresenceEntry
	req.NoError(json.Unmarshal(b.expect(event.UsersOnline), &roster))
	req.ElementsMatch([]domain.PresenceEntry{
		{UserID: "u1", Username: "Alice", Status: domain.StatusDND, Activity: "Focusing"},
		bob.Presence(),
	}, roster)
}

func TestHub_MessagesStayInTheirChannelRoom(t *testing.T) {
	req := require.New(t)
	hub, url := startRelay(t)
	a, b, c := dial(t, url), dial(t, url), dial(t, url)
	settle(t, connected(hub, 3))
	a.online(alice)
	b.expect(event.UserJoined)
	c.expect(event.UserJoined)

	a.send(event.JoinChannel, event.ChannelPayload{ChannelID: "general"})
	b.send(event.JoinChannel, event.ChannelPayload{ChannelID: "general"})
	c.send(event.JoinChannel, event.ChannelPayload{ChannelID: "random"})
	settle(t, members(hub, "channel-general", 2))
	settle(t, members(hub, "channel-random", 1))

	// Given Alice types and sends in general
	a.send(event.TypingStart, event.TypingPayload{UserID: "u1", Username: "Alice", ChannelID: "general"})
	message := domain.Message{ID: "m1", Author: alice.Author(), Content: "hi", ChannelID: "general"}
	a.send(event.SendMessage, message)
	a.send(event.TypingStop, event.TypingPayload{UserID: "u1", ChannelID: "general"})

	// Then only Bob receives them, in order
	b.expect(event.UserTyping)
	var received domain.Message
	req.NoError(json.Unmarshal(b.expect(event.NewMessage), &received))
	req.Equal("m1", received.ID)
	b.expect(event.UserStoppedTyping)

	// A broadcast reaching everyone but Alice proves nothing else was queued
	a.send(event.VoiceMuteStatus, event.MuteStatusPayload{UserID: "u1", IsMuted: true})
	b.expect(event.VoiceUserMuted)
	c.expect(event.VoiceUserMuted)

	// And a leave stops delivery to Bob
	b.send(event.LeaveChannel, event.ChannelPayload{ChannelID: "general"})
	b.send(event.JoinChannel, event.ChannelPayload{ChannelID: "random"})
	settle(t, members(hub, "channel-random", 2))
	c.send(event.SendMessage, domain.Message{ID: "m2", Author: carol.Author(), ChannelID: "random"})
	req.Equal(event.NewMessage, b.next().Event)
}

func TestHub_VoiceMembership(t *testing.T) {
	req := require.New(t)
	hub, url := startRelay(t)
	a, b := dial(t, url), dial(t, url)
	settle(t, connected(hub, 2))
	a.online(alice)
	b.expect(event.UserJoined)
	b.online(bob)
	a.expect(event.UserJoined)

	a.send(event.JoinVoiceChannel, event.JoinVoicePayload{UserID: "u1", ChannelID: "gaming"})
	settle(t, members(hub, "voice-gaming", 1))
	b.send(event.JoinVoiceChannel, event.JoinVoicePayload{UserID: "u2", ChannelID: "gaming"})

	var joined event.VoiceJoined
	req.NoError(json.Unmarshal(a.expect(event.VoiceUserJoined), &joined))
	req.Equal("u2", joined.UserID)
	req.Equal("Bob", joined.Username)
	req.Equal("gaming", joined.ChannelID)

	b.send(event.LeaveVoiceChannel, event.LeaveVoicePayload{UserID: "u2"})
	req.JSONEq(`{"userId":"u2"}`, string(a.expect(event.VoiceUserLeft)))
	b.expect(event.VoiceUserLeft)
}

func TestHub_DisconnectAnnouncesDeparture(t *testing.T) {
	req := require.New(t)
	hub, url := startRelay(t)
	a, b := dial(t, url), dial(t, url)
	settle(t, connected(hub, 2))
	a.online(alice)
	b.expect(event.UserJoined)
	b.online(bob)
	a.expect(event.UserJoined)
	b.send(event.JoinVoiceChannel, event.JoinVoicePayload{UserID: "u2", ChannelID: "gaming"})

	// When Bob's connection goes away
	req.NoError(b.conn.Close())

	// Then Alice sees him leave the roster and the voice channel
	var left domain.User
	req.NoError(json.Unmarshal(a.expect(event.UserLeft), &left))
	req.Equal("u2", left.ID)
	req.JSONEq(`{"userId":"u2"}`, string(a.expect(event.VoiceUserLeft)))
}

func TestHub_InvalidFramesAreIgnored(t *testing.T) {
	req := require.New(t)
	_, url := startRelay(t)
	a := dial(t, url)

	req.NoError(a.conn.WriteMessage(websocket.TextMessage, []byte(`garbage`)))
	a.send(event.UserOnline, map[string]string{"username": "no id"})
	a.send(event.Name("unknown"), struct{}{})
	a.send(event.SendMessage, map[string]string{"id": "m1"})

	a.online(alice)
}

func TestRegistry_Rooms(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	c1, c2 := &Client{ID: "c1"}, &Client{ID: "c2"}
	registry.Register(c1)
	registry.Register(c2)

	registry.Join("c1", "voice-gaming")
	registry.Join("c2", "voice-gaming")
	registry.Join("c2", "channel-general")
	registry.Join("ghost", "channel-general")

	req.Equal([]*Client{c1, c2}, registry.Room("voice-gaming"))
	req.Equal([]*Client{c2}, registry.Room("channel-general"))

	registry.LeavePrefix("c2", "voice-")
	req.Equal([]*Client{c1}, registry.Room("voice-gaming"))

	registry.Unregister("c1")
	req.Nil(registry.Room("voice-gaming"))
	req.Equal(1, registry.Len())
}
