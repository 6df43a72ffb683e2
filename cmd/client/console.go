package main

import (
	"chat-sync/domain"
	"chat-sync/domain/event"
	"chat-sync/projection"
	"chat-sync/runtime"
	"chat-sync/session"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
)

var (
	headerStyle = color.New(color.FgGreen, color.OpBold)
	systemStyle = color.New(color.FgYellow)
	typingStyle = color.New(color.FgGray, color.OpItalic)
	errorStyle  = color.New(color.FgRed)
	voiceStyle  = color.New(color.FgCyan)
)

// Console renders snapshots and turns typed lines into intents.
// Everything it touches runs on its own goroutine; managers are only
// reached through the orchestrator.
type Console struct {
	log     *slog.Logger
	out     io.Writer
	orch    *runtime.Orchestrator
	events  <-chan event.DomainEvent
	channel domain.Channel
	printed map[string]int
	typing  string
	voice   string
}

func NewConsole(log *slog.Logger, out io.Writer, orch *runtime.Orchestrator, events <-chan event.DomainEvent) *Console {
	return &Console{
		log:     log,
		out:     out,
		orch:    orch,
		events:  events,
		printed: make(map[string]int),
	}
}

// Run multiplexes snapshots and input lines until ctx is done,
// lines is closed or /quit is typed.
func (c *Console) Run(ctx context.Context, lines <-chan string) error {
	c.help()
	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-c.events:
			c.render(e)
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			quit, err := c.handle(ctx, line)
			if err != nil {
				c.printf("%s\n", errorStyle.Render(err.Error()))
			}
			if quit {
				return nil
			}
		}
	}
}

func (c *Console) render(e event.DomainEvent) {
	switch e := e.(type) {
	case event.ConnectionChanged:
		if e.Connected {
			c.printf("%s\n", systemStyle.Render("* connected to relay"))
		} else {
			c.printf("%s\n", errorStyle.Render("* connection lost"))
		}
	case event.RosterChanged:
		c.log.Debug("Roster changed", "online", len(e.Entries))
	case event.TimelineChanged:
		if e.ChannelID == c.channel.ID {
			c.printTimeline(e.ChannelID, e.Messages)
		}
	case event.TypingChanged:
		if e.ChannelID == c.channel.ID && e.Text != c.typing {
			c.typing = e.Text
			if e.Text != "" {
				c.printf("%s\n", typingStyle.Render(e.Text))
			}
		}
	case event.VoiceChanged:
		if e.State != c.voice {
			c.voice = e.State
			c.printf("%s\n", voiceStyle.Render(fmt.Sprintf("* voice %s %s", e.State, e.ChannelID)))
		}
	}
}

// printTimeline prints the messages not yet shown, with a header at the
// start of every display group.
func (c *Console) printTimeline(channelID string, messages []domain.Message) {
	from := c.printed[channelID]
	if from >= len(messages) {
		return
	}
	index := 0
	for group := range projection.GroupForDisplay(messages) {
		if index+len(group.Messages) <= from {
			index += len(group.Messages)
			continue
		}
		if index >= from {
			c.printf("%s %s\n",
				headerStyle.Render(fmt.Sprintf("[%s] %s", group.Author.Avatar, group.Author.Username)),
				group.Timestamp.Local().Format(time.Kitchen))
		}
		for _, m := range group.Messages {
			if index >= from {
				c.printMessage(m)
			}
			index++
		}
	}
	c.printed[channelID] = len(messages)
}

func (c *Console) printMessage(m domain.Message) {
	if m.Type == domain.MessageSystem {
		c.printf("    %s\n", systemStyle.Render(m.Content))
		return
	}
	c.printf("    %s\n", m.Content)
}

func (c *Console) handle(ctx context.Context, line string) (bool, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, nil
	}
	if !strings.HasPrefix(line, "/") {
		c.orch.Do(func(s *session.Store) {
			s.Input(line)
			s.SendMessage(line)
		})
		return false, nil
	}

	fields := strings.Fields(line)
	args := fields[1:]
	switch fields[0] {
	case "/quit":
		return true, nil
	case "/help":
		c.help()
	case "/login":
		if len(args) == 0 {
			return false, fmt.Errorf("usage: /login <username>")
		}
		return false, c.login(ctx, strings.Join(args, " "))
	case "/logout":
		var err error
		if callErr := c.orch.Call(ctx, func(s *session.Store) { err = s.Logout() }); callErr != nil {
			return false, callErr
		}
		c.channel = domain.Channel{}
		return false, err
	case "/status":
		if len(args) == 0 {
			return false, fmt.Errorf("usage: /status <online|idle|dnd> [activity]")
		}
		status := domain.Status(args[0])
		if !lo.Contains([]domain.Status{domain.StatusOnline, domain.StatusIdle, domain.StatusDND}, status) {
			return false, fmt.Errorf("unknown status %q", args[0])
		}
		var err error
		activity := strings.Join(args[1:], " ")
		if callErr := c.orch.Call(ctx, func(s *session.Store) { err = s.UpdateProfile(status, activity, "") }); callErr != nil {
			return false, callErr
		}
		return false, err
	case "/servers":
		c.servers()
	case "/server":
		if len(args) == 0 {
			return false, fmt.Errorf("usage: /server <id>")
		}
		return false, c.selectServer(ctx, args[0])
	case "/channel", "/join":
		if len(args) == 0 {
			return false, fmt.Errorf("usage: %s <channel id>", fields[0])
		}
		return false, c.selectChannel(ctx, args[0])
	case "/leave":
		c.orch.Do(func(s *session.Store) { s.LeaveVoice() })
	case "/mute":
		c.orch.Do(func(s *session.Store) { s.ToggleMute() })
	case "/deafen":
		c.orch.Do(func(s *session.Store) { s.ToggleDeafen() })
	case "/who":
		return false, c.who(ctx)
	case "/voice":
		return false, c.voiceTable(ctx)
	default:
		return false, fmt.Errorf("unknown command %s", fields[0])
	}
	return false, nil
}

func (c *Console) login(ctx context.Context, username string) error {
	var (
		user domain.User
		err  error
	)
	if callErr := c.orch.Call(ctx, func(s *session.Store) { user, err = s.Login(username) }); callErr != nil {
		return callErr
	}
	if err != nil {
		return err
	}
	c.printf("%s\n", systemStyle.Render(fmt.Sprintf("* logged in as %s (%s)", user.Username, user.ID)))
	return nil
}

func (c *Console) selectServer(ctx context.Context, serverID string) error {
	server, ok := findServer(serverID)
	if !ok {
		return fmt.Errorf("unknown server %q", serverID)
	}
	for _, channel := range server.Channels {
		c.printf("  %s %s\n", lo.Ternary(channel.Kind == domain.ChannelVoice, "🔊", "#"), channel.ID)
	}
	first, _ := lo.First(server.Channels)
	c.open(first)
	return c.orch.Read(ctx, func(v runtime.View) {
		c.load(v, first)
		v.Store.SelectServer(server)
	})
}

func (c *Console) selectChannel(ctx context.Context, channelID string) error {
	server, channel, ok := findChannel(channelID)
	if !ok {
		return fmt.Errorf("unknown channel %q", channelID)
	}
	c.open(channel)
	return c.orch.Read(ctx, func(v runtime.View) {
		c.load(v, channel)
		v.Store.SelectChannel(server.ID, channel)
	})
}

// open makes a text channel the one being rendered.
func (c *Console) open(channel domain.Channel) {
	if channel.Kind != domain.ChannelText {
		return
	}
	c.channel = channel
	c.typing = ""
	c.printed[channel.ID] = 0
	c.printf("%s\n", headerStyle.Render(fmt.Sprintf("# %s  %s", channel.Name, channel.Topic)))
}

// load seeds an empty text channel with its welcome message the first
// time it is opened, or prints the history it already holds.
// It runs on the engine loop.
func (c *Console) load(v runtime.View, channel domain.Channel) {
	if channel.Kind != domain.ChannelText {
		return
	}
	if v.Timeline.Len(channel.ID) == 0 {
		v.Timeline.Seed(channel.ID, welcome(channel, time.Now()))
		return
	}
	c.printTimeline(channel.ID, v.Timeline.Messages(channel.ID))
}

func (c *Console) who(ctx context.Context) error {
	var entries []domain.PresenceEntry
	if err := c.orch.Read(ctx, func(v runtime.View) { entries = v.Roster.Entries() }); err != nil {
		return err
	}
	table := tablewriter.NewWriter(c.out)
	table.SetHeader([]string{"User", "Status", "Activity"})
	table.SetBorder(false)
	for _, e := range entries {
		table.Append([]string{e.Username, string(e.Status), e.Activity})
	}
	table.Render()
	return nil
}

func (c *Console) voiceTable(ctx context.Context) error {
	var (
		state        string
		channelID    string
		participants []domain.VoiceParticipant
	)
	if err := c.orch.Read(ctx, func(v runtime.View) {
		state = string(v.Voice.State())
		channelID = v.Voice.ChannelID()
		participants = v.Voice.Participants()
	}); err != nil {
		return err
	}
	c.printf("%s\n", voiceStyle.Render(fmt.Sprintf("voice: %s %s", state, channelID)))
	table := tablewriter.NewWriter(c.out)
	table.SetHeader([]string{"Participant", "Muted", "Deafened", "Speaking"})
	table.SetBorder(false)
	for _, p := range participants {
		table.Append([]string{
			lo.Ternary(p.Username != "", p.Username, p.UserID),
			yesNo(p.IsMuted), yesNo(p.IsDeafened), yesNo(p.IsSpeaking),
		})
	}
	table.Render()
	return nil
}

func (c *Console) servers() {
	table := tablewriter.NewWriter(c.out)
	table.SetHeader([]string{"Server", "Name", "Channels"})
	table.SetBorder(false)
	for _, s := range catalog {
		ids := lo.Map(s.Channels, func(ch domain.Channel, _ int) string { return ch.ID })
		table.Append([]string{s.ID, s.Name, strings.Join(ids, ", ")})
	}
	table.Render()
}

func (c *Console) help() {
	c.printf("%s\n", headerStyle.Render("Commands"))
	c.printf("  /login <name>  /logout  /status <online|idle|dnd> [activity]\n")
	c.printf("  /servers  /server <id>  /channel <id>  /join <voice id>  /leave\n")
	c.printf("  /mute  /deafen  /who  /voice  /quit\n")
	c.printf("  anything else is sent to the selected channel\n")
}

func (c *Console) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(c.out, format, args...)
}

func yesNo(b bool) string {
	return lo.Ternary(b, "yes", "no")
}
