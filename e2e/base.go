package e2e

import (
	"chat-sync/relay"
	"chat-sync/repositories"
	"chat-sync/runtime"
	"chat-sync/runtime/workers"
	"chat-sync/session"
	"chat-sync/sink"
	"chat-sync/transport"
	"context"
	"fmt"
	"log/slog"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/gookit/color"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/suite"
)

type BaseRelaySuite struct {
	suite.Suite
	Config   Config
	url      string
	stopHub  context.CancelFunc
	server   *httptest.Server
	voiceGap time.Duration
}

// Member is one running client seen through its latest snapshots.
type Member struct {
	Name         string
	Orchestrator *runtime.Orchestrator
	View         *sink.Latest
}

// SetupSuite loads the environment configuration and starts a relay when
// none is configured.
func (s *BaseRelaySuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	s.voiceGap, err = time.ParseDuration(s.Config.VoiceDelay)
	s.Require().NoError(err)

	s.url = s.Config.RelayURL
	if s.url != "" {
		return
	}
	hub := relay.NewHub(logs.GetLoggerFromLevel(slog.LevelWarn))
	ctx, cancel := context.WithCancel(context.Background())
	s.stopHub = cancel
	go func() { _ = hub.Run(ctx) }()
	s.server = httptest.NewServer(hub)
	s.url = "ws" + strings.TrimPrefix(s.server.URL, "http")
}

func (s *BaseRelaySuite) TearDownSuite() {
	if s.stopHub != nil {
		s.stopHub()
		s.server.Close()
	}
}

func (s *BaseRelaySuite) Step(name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
}

// Join starts a client, logs it in and waits for the relay connection.
func (s *BaseRelaySuite) Join(username string) *Member {
	log := logs.GetLoggerFromLevel(slog.LevelWarn)
	db, err := repositories.OpenSessionDB("")
	s.Require().NoError(err)

	view := sink.NewLatest()
	orchestrator := runtime.NewOrchestrator(
		log,
		workers.NewSupervisor(log, nil),
		transport.NewDialer(s.url),
		repositories.NewSessionRepository(db),
		nil,
		runtime.Options{
			TypingDebounce:    3 * time.Second,
			VoiceConnectDelay: s.voiceGap,
			ReconnectInterval: 100 * time.Millisecond,
		},
		view,
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- orchestrator.Start(ctx) }()
	s.T().Cleanup(func() {
		orchestrator.Stop()
		cancel()
		<-done
		_ = db.Close()
	})

	s.Require().Eventually(view.Connected, 2*time.Second, 10*time.Millisecond, "%s never connected", username)
	s.Require().NoError(orchestrator.Call(ctx, func(st *session.Store) {
		_, err = st.Login(username)
	}))
	s.Require().NoError(err)
	return &Member{Name: username, Orchestrator: orchestrator, View: view}
}

// Do runs an action on the member's engine and waits for it.
func (m *Member) Do(s *BaseRelaySuite, fn func(*session.Store)) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.Require().NoError(m.Orchestrator.Call(ctx, fn))
}
