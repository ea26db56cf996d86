package server

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/anzalkabeer/codechicks/internal/auth"
	"github.com/anzalkabeer/codechicks/internal/chat"
	"github.com/anzalkabeer/codechicks/internal/registry"
	"github.com/gorilla/websocket"
)

// Deps are the collaborators a Server hands connections to.
type Deps struct {
	Verifier   Verifier
	Dispatcher Dispatcher
	Registry   *registry.Registry
	Directory  chat.UserDirectory // optional
	Messages   MessageCounter
}

// Server owns the websocket side of the chat: handshakes, the read and write
// pump of every admitted connection and their shutdown.
type Server struct {
	cfg        Config
	log        *slog.Logger
	verifier   Verifier
	dispatcher Dispatcher
	registry   *registry.Registry
	directory  chat.UserDirectory
	messages   MessageCounter
	upgrader   websocket.Upgrader

	// ctx is handed to the dispatcher for inbound frames and is cancelled on
	// shutdown.
	ctx    context.Context
	cancel context.CancelFunc

	// mu orders admissions against Shutdown: closing only flips and wg only
	// grows while it is held.
	mu      sync.Mutex
	closing atomic.Bool
	wg      sync.WaitGroup
}

func New(cfg Config, log *slog.Logger, deps Deps) *Server {
	cfg = sanitizeConfig(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	origins := newOriginPolicy(log, cfg.Origins())
	return &Server{
		cfg:        cfg,
		log:        log,
		verifier:   deps.Verifier,
		dispatcher: deps.Dispatcher,
		registry:   deps.Registry,
		directory:  deps.Directory,
		messages:   deps.Messages,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.checkOrigin,
		},
		ctx:    ctx,
		cancel: cancel,
	}
}

// admit registers identity and reserves the pump goroutines of its
// connection in one step, so Shutdown either sees the connection or the
// admission is refused with chat.ErrUnavailable.
func (s *Server) admit(identity auth.Identity) (*registry.Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing.Load() {
		return nil, chat.ErrUnavailable
	}
	handle, err := s.registry.Admit(identity)
	if err != nil {
		return nil, err
	}
	s.wg.Add(2)
	return handle, nil
}

// release undoes admit for a connection whose pumps never started.
func (s *Server) release(handle *registry.Connection) {
	s.registry.Remove(handle)
	s.wg.Add(-2)
}

// Shutdown stops admitting connections, closes every admitted one with a
// close frame and waits for their pumps to finish, or for timeout.
func (s *Server) Shutdown(timeout time.Duration) error {
	s.mu.Lock()
	if s.closing.Load() {
		s.mu.Unlock()
		return nil
	}
	s.closing.Store(true)
	s.mu.Unlock()
	s.log.Info("Shutting down all client connections...")

	conns := s.registry.Snapshot()
	for _, conn := range conns {
		s.registry.Remove(conn)
	}
	s.cancel()
	s.log.Info("Closed client connections", "count", len(conns))

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info("Connection shutdown completed successfully")
		return nil
	case <-time.After(timeout):
		s.log.Warn("Connection shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
