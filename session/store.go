// Package session owns the local user identity and turns user actions
// into optimistic local mutations plus outward intents on the bus.
package session

import (
	"chat-sync/contract"
	"chat-sync/domain"
	"chat-sync/domain/event"
	"chat-sync/errors"
	"chat-sync/voice"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Sender is the outward half of the event bus.
type Sender interface {
	Send(name event.Name, payload any)
}

type Roster interface {
	Upsert(entry domain.PresenceEntry)
	Remove(userID string) bool
}

type Timeline interface {
	AppendLocal(message domain.Message)
}

type Typing interface {
	SetLocalUser(userID string)
	Reset()
}

type Voice interface {
	SetLocalUser(user domain.User)
	Join(channelID string)
	Leave()
	InSession() bool
	ToggleMute() voice.Flags
	ToggleDeafen() voice.Flags
	SetMuteStatus(muted, deafened bool) voice.Flags
}

type Store struct {
	log       *slog.Logger
	sender    Sender
	repo      contract.SessionRepository
	roster    Roster
	timeline  Timeline
	typing    Typing
	voice     Voice
	now       func() time.Time
	user      *domain.User
	selection domain.Selection
	isTyping  bool
}

type Option func(*Store)

// WithClock sets the source of message timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func NewStore(
	log *slog.Logger,
	sender Sender,
	repo contract.SessionRepository,
	roster Roster,
	timeline Timeline,
	typing Typing,
	coordinator Voice,
	opts ...Option,
) *Store {
	s := &Store{
		log:      log,
		sender:   sender,
		repo:     repo,
		roster:   roster,
		timeline: timeline,
		typing:   typing,
		voice:    coordinator,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// User returns the local user, if logged in.
func (s *Store) User() (domain.User, bool) {
	if s.user == nil {
		return domain.User{}, false
	}
	return *s.user, true
}

func (s *Store) Selection() domain.Selection {
	return s.selection
}

// Login creates the local identity, persists it and announces it.
func (s *Store) Login(username string) (domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return domain.User{}, errors.ErrEmptyUsername
	}
	user := domain.NewUser(uuid.NewString(), username)
	if err := s.repo.SaveUser(user); err != nil {
		return domain.User{}, fmt.Errorf("saving session: %w", err)
	}
	s.setUser(user)
	s.log.Info("Logged in", "user_id", user.ID, "username", user.Username)
	s.AnnounceOnline()
	return user, nil
}

// Restore loads a persisted identity and announces it. It reports false
// when no identity was stored.
func (s *Store) Restore() (bool, error) {
	user, err := s.repo.LoadUser()
	if stderrors.Is(err, errors.ErrNoSession) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("restoring session: %w", err)
	}
	if user.Avatar == "" {
		user.Avatar = domain.Initials(user.Username)
	}
	s.setUser(user)
	s.log.Info("Session restored", "user_id", user.ID, "username", user.Username)
	s.AnnounceOnline()
	return true, nil
}

// Logout announces the user offline, leaves voice and forgets the
// persisted identity.
func (s *Store) Logout() error {
	if s.user == nil {
		return errors.ErrNotLoggedIn
	}
	s.StopTyping()
	if s.voice.InSession() {
		s.LeaveVoice()
	}
	if s.selection.HasTextChannel() {
		s.sender.Send(event.LeaveChannel, event.ChannelPayload{ChannelID: s.selection.ChannelID})
	}
	s.AnnounceOffline()
	s.roster.Remove(s.user.ID)
	s.typing.Reset()
	s.log.Info("Logged out", "user_id", s.user.ID)
	s.user = nil
	s.selection = domain.Selection{}
	if err := s.repo.DeleteUser(); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// UpdateProfile edits the local user and republishes it.
func (s *Store) UpdateProfile(status domain.Status, activity, bio string) error {
	if s.user == nil {
		return errors.ErrNotLoggedIn
	}
	user := *s.user
	if status != "" {
		user.Status = status
	}
	user.Activity = activity
	user.Bio = bio
	if err := s.repo.SaveUser(user); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	s.setUser(user)
	s.AnnounceOnline()
	return nil
}

// SelectChannel changes the current channel. Selecting a voice channel
// joins it.
func (s *Store) SelectChannel(serverID string, channel domain.Channel) {
	previous := s.selection
	if previous.ChannelID == channel.ID && previous.ServerID == serverID {
		return
	}
	s.StopTyping()
	s.selection = domain.Selection{ServerID: serverID, ChannelID: channel.ID, Kind: channel.Kind}
	if previous.HasTextChannel() {
		s.sender.Send(event.LeaveChannel, event.ChannelPayload{ChannelID: previous.ChannelID})
	}
	if s.selection.HasTextChannel() {
		s.sender.Send(event.JoinChannel, event.ChannelPayload{ChannelID: channel.ID})
		return
	}
	if channel.Kind == domain.ChannelVoice {
		s.JoinVoice(channel.ID)
	}
}

// SelectServer selects the server's first channel.
func (s *Store) SelectServer(server domain.Server) {
	if len(server.Channels) == 0 {
		s.selection = domain.Selection{ServerID: server.ID}
		return
	}
	s.SelectChannel(server.ID, server.Channels[0])
}

func (s *Store) AnnounceOnline() {
	if s.user == nil {
		return
	}
	s.roster.Upsert(s.user.Presence())
	s.sender.Send(event.UserOnline, *s.user)
}

// Resync re-announces the user and rejoins the current text channel
// room after the connection was (re)established.
func (s *Store) Resync() {
	if s.user == nil {
		return
	}
	s.AnnounceOnline()
	if s.selection.HasTextChannel() {
		s.sender.Send(event.JoinChannel, event.ChannelPayload{ChannelID: s.selection.ChannelID})
	}
}

func (s *Store) AnnounceOffline() {
	if s.user == nil {
		return
	}
	s.sender.Send(event.UserOffline, *s.user)
}

// SendMessage appends the message locally and emits it. Blank content
// and a missing text channel are no-ops.
func (s *Store) SendMessage(content string) {
	content = strings.TrimSpace(content)
	if content == "" || s.user == nil || !s.selection.HasTextChannel() {
		return
	}
	message := domain.Message{
		ID:        uuid.NewString(),
		Author:    s.user.Author(),
		Content:   content,
		Timestamp: s.now(),
		ChannelID: s.selection.ChannelID,
		Type:      domain.MessageText,
	}
	s.timeline.AppendLocal(message)
	s.sender.Send(event.SendMessage, message)
	s.StopTyping()
}

// Input reacts to the composer text changing.
func (s *Store) Input(text string) {
	if strings.TrimSpace(text) == "" {
		s.StopTyping()
		return
	}
	s.StartTyping()
}

// StartTyping emits typing-start on the first keystroke only.
func (s *Store) StartTyping() {
	if s.isTyping || s.user == nil || !s.selection.HasTextChannel() {
		return
	}
	s.isTyping = true
	s.sender.Send(event.TypingStart, event.TypingPayload{
		UserID:    s.user.ID,
		Username:  s.user.Username,
		ChannelID: s.selection.ChannelID,
	})
}

func (s *Store) StopTyping() {
	if !s.isTyping || s.user == nil {
		return
	}
	s.isTyping = false
	s.sender.Send(event.TypingStop, event.TypingPayload{
		UserID:    s.user.ID,
		ChannelID: s.selection.ChannelID,
	})
}

func (s *Store) JoinVoice(channelID string) {
	if s.user == nil || channelID == "" {
		return
	}
	s.voice.Join(channelID)
	s.sender.Send(event.JoinVoiceChannel, event.JoinVoicePayload{UserID: s.user.ID, ChannelID: channelID})
}

// LeaveVoice always emits the leave intent, whatever the voice state.
func (s *Store) LeaveVoice() {
	if s.user == nil {
		return
	}
	s.voice.Leave()
	s.sender.Send(event.LeaveVoiceChannel, event.LeaveVoicePayload{UserID: s.user.ID})
}

func (s *Store) ToggleMute() {
	s.sendMuteStatus(s.voice.ToggleMute())
}

func (s *Store) ToggleDeafen() {
	s.sendMuteStatus(s.voice.ToggleDeafen())
}

func (s *Store) SetMuteStatus(muted, deafened bool) {
	s.sendMuteStatus(s.voice.SetMuteStatus(muted, deafened))
}

func (s *Store) sendMuteStatus(flags voice.Flags) {
	if s.user == nil {
		return
	}
	s.sender.Send(event.VoiceMuteStatus, event.MuteStatusPayload{
		UserID:     s.user.ID,
		IsMuted:    flags.IsMuted,
		IsDeafened: flags.IsDeafened,
	})
}

func (s *Store) setUser(user domain.User) {
	s.user = &user
	s.typing.SetLocalUser(user.ID)
	s.voice.SetLocalUser(user)
}
