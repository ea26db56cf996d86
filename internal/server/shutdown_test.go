package server_test

import (
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/anzalkabeer/codechicks/internal/auth"
	"github.com/anzalkabeer/codechicks/internal/chat"
	"github.com/anzalkabeer/codechicks/internal/testhelpers"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func TestShutdown_ClosesClientsWithGoingAway(t *testing.T) {
	req := require.New(t)
	s := newStack(t)

	conns := []*websocket.Conn{s.connect(alice), s.connect(bob), s.connect(carol)}
	s.waitForConnections(3)

	req.NoError(s.srv.Shutdown(2 * time.Second))
	req.Equal(0, s.registry.Count())

	for _, conn := range conns {
		_, err := testhelpers.ReceiveRaw(conn, 2*time.Second)
		var closeErr *websocket.CloseError
		req.ErrorAs(err, &closeErr)
		req.Equal(websocket.CloseGoingAway, closeErr.Code)
		req.Equal("server shutting down", closeErr.Text)
	}
}

func TestShutdown_RefusesNewHandshakes(t *testing.T) {
	req := require.New(t)
	s := newStack(t)

	req.NoError(s.srv.Shutdown(time.Second))

	conn, resp, err := testhelpers.ConnectWebSocket(s.url(alice))
	if conn != nil {
		_ = conn.Close()
	}
	req.Error(err)
	req.NotNil(resp)
	testhelpers.AssertStatusCode(t, resp, http.StatusServiceUnavailable)
	req.Equal(chat.ReasonUnavailable, testhelpers.DecodeErrorBody(t, resp).ReasonCode)
	req.Equal(0, s.registry.Count())
}

func TestShutdown_IsIdempotent(t *testing.T) {
	s := newStack(t)

	require.NoError(t, s.srv.Shutdown(time.Second))
	require.NoError(t, s.srv.Shutdown(time.Second))
}

func TestShutdown_HandshakesInFlight(t *testing.T) {
	req := require.New(t)
	s := newStack(t)

	const dialers = 32
	urls := make([]string, dialers)
	for i := range urls {
		urls[i] = s.url(auth.Identity{UserID: fmt.Sprintf("user-%d@example.com", i)})
	}

	start := make(chan struct{})
	accepted := make(chan *websocket.Conn, dialers)
	var wg sync.WaitGroup
	for _, wsURL := range urls {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			conn, resp, err := testhelpers.ConnectWebSocket(wsURL)
			if resp != nil && resp.Body != nil {
				_ = resp.Body.Close()
			}
			if err == nil {
				accepted <- conn
			}
		}()
	}

	close(start)
	req.NoError(s.srv.Shutdown(5 * time.Second))
	req.Equal(0, s.registry.Count())

	wg.Wait()
	close(accepted)
	req.Equal(0, s.registry.Count())

	for conn := range accepted {
		_, err := testhelpers.ReceiveRaw(conn, 2*time.Second)
		var closeErr *websocket.CloseError
		req.ErrorAs(err, &closeErr)
		req.Equal(websocket.CloseGoingAway, closeErr.Code)
		_ = conn.Close()
	}
}
