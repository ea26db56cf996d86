package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/anzalkabeer/codechicks/internal/auth"
	"github.com/anzalkabeer/codechicks/internal/chat"
)

// Verifier checks a bearer credential and returns who presented it.
type Verifier interface {
	Verify(credential string) (auth.Identity, error)
}

// Dispatcher accepts raw inbound frames from an admitted identity.
type Dispatcher interface {
	HandleInbound(ctx context.Context, identity auth.Identity, raw []byte) (chat.Message, error)
}

// MessageCounter reports how many live messages are stored.
type MessageCounter interface {
	Count(ctx context.Context) (int, error)
}

// StatusResponse is served by the chat status endpoint.
type StatusResponse struct {
	OnlineUsers    int  `json:"online_users"`
	TotalMessages  int  `json:"total_messages"`
	WebsocketReady bool `json:"websocket_ready"`
}

// credentialFromRequest reads the token query parameter, falling back to an
// Authorization bearer header. Browsers cannot set headers on a websocket
// handshake, so the query parameter comes first.
func credentialFromRequest(r *http.Request) string {
	if token := strings.TrimSpace(r.URL.Query().Get("token")); token != "" {
		return token
	}
	header := r.Header.Get("Authorization")
	if scheme, token, ok := strings.Cut(header, " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, reason chat.ReasonCode) error {
	return writeJSON(w, status, chat.ErrorFrame{Error: reason.Description(), ReasonCode: reason})
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
