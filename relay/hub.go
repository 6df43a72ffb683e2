// Package relay is a websocket relay fanning chat events out between
// clients. It keeps only connection-scoped state: rooms, announced
// identities and voice memberships.
package relay

import (
	"chat-sync/domain"
	"chat-sync/domain/event"
	"chat-sync/errors"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	channelRoom = "channel-"
	voiceRoom   = "voice-"
)

type channelRef struct {
	ChannelID string `json:"channelId" validate:"required"`
}

type userRef struct {
	UserID string `json:"userId" validate:"required"`
}

type voiceJoin struct {
	UserID    string `json:"userId" validate:"required"`
	ChannelID string `json:"channelId" validate:"required"`
}

type Hub struct {
	log        *slog.Logger
	registry   *Registry
	validate   *validator.Validate
	upgrader   websocket.Upgrader
	register   chan *Client
	unregister chan *Client
	inbound    chan inbound
	done       chan struct{}
	users      map[string]domain.User
	voice      map[string]string
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		log:      log,
		registry: NewRegistry(),
		validate: validator.New(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan inbound, 256),
		done:       make(chan struct{}),
		users:      make(map[string]domain.User),
		voice:      make(map[string]string),
	}
}

// ServeHTTP upgrades the request and attaches the peer to the hub.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("Upgrade failed", "error", err)
		return
	}
	c := &Client{
		ID:   uuid.NewString(),
		log:  h.log,
		conn: conn,
		send: make(chan []byte, sendBuffer),
		hub:  h,
	}
	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.Close()
		return
	}
	go c.writePump()
	go c.readPump()
}

// Run serializes every hub mutation until ctx is done.
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return nil
		case c := <-h.register:
			h.registry.Register(c)
			h.log.Info("Client connected", "client", c.ID, "total", h.registry.Len())
		case c := <-h.unregister:
			h.drop(c)
		case in := <-h.inbound:
			h.handle(in.client, in.frame)
		}
	}
}

func (h *Hub) shutdown() {
	select {
	case <-h.done:
		return
	default:
	}
	close(h.done)
	for _, c := range h.registry.All() {
		c.gone = true
		h.registry.Unregister(c.ID)
		close(c.send)
	}
}

func (h *Hub) submit(in inbound) {
	select {
	case h.inbound <- in:
	case <-h.done:
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// drop forgets a client and tells the others it went away.
func (h *Hub) drop(c *Client) {
	if c.gone {
		return
	}
	c.gone = true
	h.registry.Unregister(c.ID)
	close(c.send)
	user, announced := h.users[c.ID]
	delete(h.users, c.ID)
	_, inVoice := h.voice[c.ID]
	delete(h.voice, c.ID)
	if announced {
		h.broadcast(event.UserLeft, user)
		if inVoice {
			h.broadcast(event.VoiceUserLeft, event.VoiceLeft{UserID: user.ID})
		}
	}
	h.log.Info("Client disconnected", "client", c.ID, "total", h.registry.Len())
}

func (h *Hub) handle(c *Client, frame event.Frame) {
	if err := h.route(c, frame); err != nil {
		h.log.Warn("Frame rejected", "client", c.ID, "event", frame.Event, "error", err)
	}
}

func (h *Hub) route(c *Client, frame event.Frame) error {
	switch frame.Event {
	case event.UserOnline:
		var user domain.User
		if err := h.decode(frame, &user); err != nil {
			return err
		}
		h.users[c.ID] = user
		h.deliver(event.UserJoined, frame.Payload, nil, h.registry.All()...)
		h.sendTo(c, event.UsersOnline, h.roster())
	case event.UserOffline:
		var user domain.User
		if err := h.decode(frame, &user); err != nil {
			return err
		}
		delete(h.users, c.ID)
		h.deliver(event.UserLeft, frame.Payload, nil, h.registry.All()...)
	case event.JoinChannel:
		var ref channelRef
		if err := h.decode(frame, &ref); err != nil {
			return err
		}
		h.registry.Join(c.ID, channelRoom+ref.ChannelID)
	case event.LeaveChannel:
		var ref channelRef
		if err := h.decode(frame, &ref); err != nil {
			return err
		}
		h.registry.Leave(c.ID, channelRoom+ref.ChannelID)
	case event.SendMessage:
		return h.toChannel(c, frame, event.NewMessage)
	case event.TypingStart:
		return h.toChannel(c, frame, event.UserTyping)
	case event.TypingStop:
		return h.toChannel(c, frame, event.UserStoppedTyping)
	case event.JoinVoiceChannel:
		var join voiceJoin
		if err := h.decode(frame, &join); err != nil {
			return err
		}
		h.registry.LeavePrefix(c.ID, voiceRoom)
		h.registry.Join(c.ID, voiceRoom+join.ChannelID)
		h.voice[c.ID] = join.ChannelID
		joined := event.VoiceJoined{
			VoiceParticipant: domain.VoiceParticipant{UserID: join.UserID, Username: h.users[c.ID].Username},
			ChannelID:        join.ChannelID,
		}
		raw, err := json.Marshal(joined)
		if err != nil {
			return err
		}
		h.deliver(event.VoiceUserJoined, raw, c, h.registry.Room(voiceRoom+join.ChannelID)...)
	case event.LeaveVoiceChannel:
		var ref userRef
		if err := h.decode(frame, &ref); err != nil {
			return err
		}
		h.registry.LeavePrefix(c.ID, voiceRoom)
		delete(h.voice, c.ID)
		h.broadcast(event.VoiceUserLeft, event.VoiceLeft{UserID: ref.UserID})
	case event.VoiceMuteStatus:
		var ref userRef
		if err := h.decode(frame, &ref); err != nil {
			return err
		}
		h.deliver(event.VoiceUserMuted, frame.Payload, c, h.registry.All()...)
	default:
		return fmt.Errorf("%w: %s", errors.ErrUnknownEvent, frame.Event)
	}
	return nil
}

func (h *Hub) toChannel(c *Client, frame event.Frame, out event.Name) error {
	var ref channelRef
	if err := h.decode(frame, &ref); err != nil {
		return err
	}
	h.deliver(out, frame.Payload, c, h.registry.Room(channelRoom+ref.ChannelID)...)
	return nil
}

func (h *Hub) decode(frame event.Frame, target any) error {
	if len(frame.Payload) == 0 {
		return fmt.Errorf("%w: %s: empty payload", errors.ErrInvalidPayload, frame.Event)
	}
	if err := json.Unmarshal(frame.Payload, target); err != nil {
		return fmt.Errorf("%w: %s: %v", errors.ErrInvalidPayload, frame.Event, err)
	}
	if err := h.validate.Struct(target); err != nil {
		return fmt.Errorf("%w: %s: %v", errors.ErrInvalidPayload, frame.Event, err)
	}
	return nil
}

// roster lists announced users in client order with their announced status.
func (h *Hub) roster() []domain.PresenceEntry {
	entries := make([]domain.PresenceEntry, 0, len(h.users))
	for _, c := range h.registry.All() {
		if user, ok := h.users[c.ID]; ok {
			entries = append(entries, user.Presence())
		}
	}
	return entries
}

func (h *Hub) sendTo(c *Client, name event.Name, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		h.log.Warn("Payload not serializable", "event", name, "error", err)
		return
	}
	h.deliver(name, raw, nil, c)
}

// broadcast sends payload to every connected client.
func (h *Hub) broadcast(name event.Name, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		h.log.Warn("Payload not serializable", "event", name, "error", err)
		return
	}
	h.deliver(name, raw, nil, h.registry.All()...)
}

func (h *Hub) deliver(name event.Name, raw json.RawMessage, except *Client, targets ...*Client) {
	msg, err := json.Marshal(event.Frame{Event: name, Payload: raw})
	if err != nil {
		h.log.Warn("Frame not serializable", "event", name, "error", err)
		return
	}
	for _, c := range targets {
		if c == except || c.gone {
			continue
		}
		select {
		case c.send <- msg:
		default:
			h.log.Warn("Client too slow, dropping it", "client", c.ID)
			h.drop(c)
		}
	}
}
