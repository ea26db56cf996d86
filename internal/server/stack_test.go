package server_test

import (
	"context"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Netflix/go-env"
	"github.com/anzalkabeer/codechicks/internal/auth"
	"github.com/anzalkabeer/codechicks/internal/chat"
	"github.com/anzalkabeer/codechicks/internal/registry"
	"github.com/anzalkabeer/codechicks/internal/server"
	"github.com/anzalkabeer/codechicks/internal/store"
	"github.com/anzalkabeer/codechicks/internal/testhelpers"
	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

const (
	testSecret = "test-secret-0123456789abcdef"
	testIssuer = "codechicks-test"
)

var (
	alice = auth.Identity{UserID: "alice@example.com", DisplayName: "Alice", Role: auth.RoleUser}
	bob   = auth.Identity{UserID: "bob@example.com", DisplayName: "Bob", Role: auth.RoleUser}
	carol = auth.Identity{UserID: "carol@example.com", DisplayName: "Carol", Role: auth.RoleUser}
)

// stack is a full chat server on top of an in-memory store.
type stack struct {
	t         *testing.T
	srv       *server.Server
	http      *httptest.Server
	registry  *registry.Registry
	messages  *store.MessageStore
	directory *store.UserDirectory
	issuer    *auth.Issuer
}

func newStack(t *testing.T, mutate ...func(*server.Config)) *stack {
	t.Helper()
	cfg, err := server.ParseConfig(env.EnvSet{
		"JWT_SECRET":      testSecret,
		"JWT_ISSUER":      testIssuer,
		"ALLOWED_ORIGINS": testhelpers.TestOrigin,
	})
	require.NoError(t, err)
	for _, m := range mutate {
		m(&cfg)
	}

	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	db, err := store.Open("")
	require.NoError(t, err)

	messages := store.NewMessageStore(db, log)
	directory := store.NewUserDirectory(db)
	reg := registry.New(log, cfg.MaxConnections, cfg.SendBufferSize)
	replies := chat.NewReplyResolver(log, messages, directory, cfg.ReplySnippetLength)
	dispatcher := chat.NewDispatcher(log, messages, replies, reg, chat.SystemClock{}, chat.DispatcherConfig{
		MaxContentLength: cfg.MaxContentLength,
		QueueSize:        cfg.DispatchQueueSize,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		dispatcher.Run(ctx)
		close(done)
	}()

	srv := server.New(cfg, log, server.Deps{
		Verifier:   auth.NewVerifier(testSecret, testIssuer),
		Dispatcher: dispatcher,
		Registry:   reg,
		Directory:  directory,
		Messages:   messages,
	})
	ts := httptest.NewServer(srv.Routes())

	t.Cleanup(func() {
		_ = srv.Shutdown(2 * time.Second)
		ts.Close()
		cancel()
		<-done
		_ = db.Close()
	})

	return &stack{
		t:         t,
		srv:       srv,
		http:      ts,
		registry:  reg,
		messages:  messages,
		directory: directory,
		issuer:    auth.NewIssuer(testSecret, testIssuer),
	}
}

func (s *stack) token(identity auth.Identity) string {
	s.t.Helper()
	token, err := s.issuer.Issue(identity, time.Hour)
	require.NoError(s.t, err)
	return token
}

func (s *stack) url(identity auth.Identity) string {
	return testhelpers.WebSocketURL(s.http.URL, s.token(identity))
}

func (s *stack) connect(identity auth.Identity) *websocket.Conn {
	s.t.Helper()
	return testhelpers.MustConnect(s.t, s.url(identity))
}

func (s *stack) waitForConnections(n int) {
	s.t.Helper()
	require.Eventually(s.t, func() bool { return s.registry.Count() == n }, 2*time.Second, 10*time.Millisecond)
}
