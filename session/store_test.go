package session

import (
	"chat-sync/domain"
	"chat-sync/domain/event"
	"chat-sync/errors"
	"chat-sync/mocks"
	"chat-sync/presence"
	"chat-sync/projection"
	"chat-sync/runtime/scheduler"
	"chat-sync/typing"
	"chat-sync/voice"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type sent struct {
	name    event.Name
	payload any
}

type recordingSender struct {
	sent []sent
}

func (r *recordingSender) Send(name event.Name, payload any) {
	r.sent = append(r.sent, sent{name: name, payload: payload})
}

func (r *recordingSender) names() []event.Name {
	names := make([]event.Name, 0, len(r.sent))
	for _, s := range r.sent {
		names = append(names, s.name)
	}
	return names
}

func (r *recordingSender) last() sent {
	return r.sent[len(r.sent)-1]
}

func (r *recordingSender) reset() {
	r.sent = nil
}

var (
	general = domain.Channel{ID: "general", Name: "general", Kind: domain.ChannelText}
	random  = domain.Channel{ID: "random", Name: "random", Kind: domain.ChannelText}
	gaming  = domain.Channel{ID: "gaming", Name: "Gaming", Kind: domain.ChannelVoice}
	start   = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
)

type fixture struct {
	repo      *mocks.MockSessionRepository
	sender    *recordingSender
	roster    *presence.Registry
	timeline  *projection.Timeline
	tracker   *typing.Tracker
	connector *voice.ManualConnector
	voice     *voice.Coordinator
	store     *Store
}

func newFixture(t *testing.T) fixture {
	ctrl := gomock.NewController(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	clock := scheduler.NewManualClock(start)
	sched := scheduler.New(clock.Now)
	f := fixture{
		repo:      mocks.NewMockSessionRepository(ctrl),
		sender:    &recordingSender{},
		roster:    presence.NewRegistry(log, nil),
		timeline:  projection.NewTimeline(log, nil),
		tracker:   typing.NewTracker(log, sched, nil, typing.DefaultDebounce),
		connector: &voice.ManualConnector{},
	}
	f.voice = voice.NewCoordinator(log, nil, f.connector)
	f.store = NewStore(log, f.sender, f.repo, f.roster, f.timeline, f.tracker, f.voice, WithClock(clock.Now))
	return f
}

func (f fixture) login(t *testing.T) domain.User {
	f.repo.EXPECT().SaveUser(gomock.Any()).Return(nil)
	user, err := f.store.Login("Mehdi")
	require.NoError(t, err)
	f.sender.reset()
	return user
}

func TestStore_LoginPersistsAndAnnounces(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	// Given the repository accepts the new identity
	var saved domain.User
	f.repo.EXPECT().SaveUser(gomock.Any()).DoAndReturn(func(u domain.User) error {
		saved = u
		return nil
	})

	// When the user logs in
	user, err := f.store.Login("  Mehdi ")

	// Then the identity is stored, announced and present in the roster
	req.NoError(err)
	req.Equal("Mehdi", user.Username)
	req.Equal("ME", user.Avatar)
	req.Equal(domain.StatusOnline, user.Status)
	req.NotEmpty(user.ID)
	req.Equal(user, saved)
	req.Equal([]event.Name{event.UserOnline}, f.sender.names())
	req.Equal(user, f.sender.last().payload)
	_, ok := f.roster.Get(user.ID)
	req.True(ok)
}

func TestStore_LoginRejectsBlankUsername(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	_, err := f.store.Login("   ")

	req.ErrorIs(err, errors.ErrEmptyUsername)
	req.Empty(f.sender.sent)
}

func TestStore_LoginFailsWhenRepositoryFails(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.repo.EXPECT().SaveUser(gomock.Any()).Return(fmt.Errorf("disk full"))

	_, err := f.store.Login("Mehdi")

	req.Error(err)
	_, ok := f.store.User()
	req.False(ok)
	req.Empty(f.sender.sent)
}

func TestStore_RestoreAnnouncesStoredIdentity(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.repo.EXPECT().LoadUser().Return(domain.User{ID: "u1", Username: "Alice"}, nil)

	restored, err := f.store.Restore()

	req.NoError(err)
	req.True(restored)
	user, ok := f.store.User()
	req.True(ok)
	req.Equal("AL", user.Avatar)
	req.Equal([]event.Name{event.UserOnline}, f.sender.names())
}

func TestStore_RestoreWithoutSessionIsSilent(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.repo.EXPECT().LoadUser().Return(domain.User{}, errors.ErrNoSession)

	restored, err := f.store.Restore()

	req.NoError(err)
	req.False(restored)
	req.Empty(f.sender.sent)
}

func TestStore_SendMessageAppendsOptimisticallyAndEmits(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	user := f.login(t)
	f.store.SelectChannel("s1", general)
	f.sender.reset()

	// Given the user is typing
	f.store.Input("hel")
	f.store.Input("hello")

	// When the message is sent
	f.store.SendMessage("  hello  ")

	// Then the timeline holds it and the bus carries typing then message
	messages := f.timeline.Messages("general")
	req.Len(messages, 1)
	req.Equal("hello", messages[0].Content)
	req.Equal(start, messages[0].Timestamp)
	req.Equal(domain.Author{Username: user.Username, Avatar: user.Avatar}, messages[0].Author)
	req.Equal([]event.Name{event.TypingStart, event.SendMessage, event.TypingStop}, f.sender.names())
	req.Equal(messages[0], f.sender.sent[1].payload)
}

func TestStore_SendMessageNoOps(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	// Not logged in
	f.store.SendMessage("hello")
	f.login(t)
	// No channel selected
	f.store.SendMessage("hello")
	f.store.SelectChannel("s1", general)
	f.sender.reset()
	// Blank content
	f.store.SendMessage("   ")

	req.Zero(f.timeline.Len("general"))
	req.Empty(f.sender.sent)
}

func TestStore_SelectChannelScopesRooms(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.login(t)

	f.store.SelectChannel("s1", general)
	f.store.SelectChannel("s1", general)
	f.store.SelectChannel("s1", random)

	req.Equal([]event.Name{event.JoinChannel, event.LeaveChannel, event.JoinChannel}, f.sender.names())
	req.Equal(event.ChannelPayload{ChannelID: "general"}, f.sender.sent[1].payload)
	req.Equal(domain.Selection{ServerID: "s1", ChannelID: "random", Kind: domain.ChannelText}, f.store.Selection())
}

func TestStore_SelectVoiceChannelJoinsVoice(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	user := f.login(t)

	f.store.SelectChannel("s1", gaming)

	req.Equal(voice.Connecting, f.voice.State())
	req.Equal([]event.Name{event.JoinVoiceChannel}, f.sender.names())
	req.Equal(event.JoinVoicePayload{UserID: user.ID, ChannelID: "gaming"}, f.sender.last().payload)

	// Typing has no text channel to target
	f.store.StartTyping()
	req.Len(f.sender.sent, 1)
}

func TestStore_LeaveVoiceEmitsRegardlessOfState(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	user := f.login(t)

	f.store.LeaveVoice()
	f.store.JoinVoice("gaming")
	f.connector.Confirm(nil)
	f.store.LeaveVoice()

	req.Equal([]event.Name{event.LeaveVoiceChannel, event.JoinVoiceChannel, event.LeaveVoiceChannel}, f.sender.names())
	req.Equal(event.LeaveVoicePayload{UserID: user.ID}, f.sender.last().payload)
	req.Equal(voice.Idle, f.voice.State())
}

func TestStore_MuteIntentsCarryVoiceFlags(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	user := f.login(t)

	f.store.ToggleDeafen()
	req.Equal(event.MuteStatusPayload{UserID: user.ID, IsMuted: true, IsDeafened: true}, f.sender.last().payload)

	f.store.ToggleDeafen()
	req.Equal(event.MuteStatusPayload{UserID: user.ID, IsMuted: true}, f.sender.last().payload)

	f.store.ToggleMute()
	req.Equal(event.MuteStatusPayload{UserID: user.ID}, f.sender.last().payload)

	f.store.SetMuteStatus(true, false)
	req.Equal(event.MuteStatusPayload{UserID: user.ID, IsMuted: true}, f.sender.last().payload)
	req.Len(f.sender.sent, 4)
}

func TestStore_UpdateProfile(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	user := f.login(t)
	f.repo.EXPECT().SaveUser(gomock.Any()).Return(nil)

	err := f.store.UpdateProfile(domain.StatusDND, "Coding", "Gopher")

	req.NoError(err)
	updated, _ := f.store.User()
	req.Equal(domain.StatusDND, updated.Status)
	entry, ok := f.roster.Get(user.ID)
	req.True(ok)
	req.Equal(domain.StatusDND, entry.Status)
	req.Equal("Coding", entry.Activity)
	req.Equal([]event.Name{event.UserOnline}, f.sender.names())
}

func TestStore_LogoutClearsEverything(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	user := f.login(t)
	f.store.SelectChannel("s1", general)
	f.store.StartTyping()
	f.store.JoinVoice("gaming")
	f.sender.reset()
	f.repo.EXPECT().DeleteUser().Return(nil)

	err := f.store.Logout()

	req.NoError(err)
	req.Equal([]event.Name{
		event.TypingStop,
		event.LeaveVoiceChannel,
		event.LeaveChannel,
		event.UserOffline,
	}, f.sender.names())
	req.Equal(user, f.sender.last().payload)
	_, ok := f.store.User()
	req.False(ok)
	req.Equal(domain.Selection{}, f.store.Selection())
	req.Zero(f.roster.Len())
	req.ErrorIs(f.store.Logout(), errors.ErrNotLoggedIn)
}

func TestStore_ResyncAfterReconnect(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	// Nothing to resync before login
	f.store.Resync()
	req.Empty(f.sender.sent)

	f.login(t)
	f.store.SelectChannel("s1", general)
	f.sender.reset()

	f.store.Resync()

	req.Equal([]event.Name{event.UserOnline, event.JoinChannel}, f.sender.names())
}
