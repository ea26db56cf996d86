package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/anzalkabeer/codechicks/internal/auth"
	"github.com/anzalkabeer/codechicks/internal/chat"
	"github.com/anzalkabeer/codechicks/internal/registry"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
)

// closeReasonAtCapacity is sent with close code 1013 when the registry is
// full.
const closeReasonAtCapacity = "at_capacity"

// WebSocketHandler verifies the credential before anything else: a request
// without a valid one is answered with 401 and never upgraded. Verified
// requests are admitted to the registry, upgraded and get their pumps.
func (s *Server) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}
	if s.closing.Load() {
		_ = writeError(w, http.StatusServiceUnavailable, chat.ReasonUnavailable)
		return
	}

	identity, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	// Admission comes first so a client that sees the handshake complete is
	// already part of every later broadcast snapshot.
	handle, admitErr := s.admit(identity)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		if admitErr == nil {
			s.release(handle)
		}
		s.log.Warn("WebSocket upgrade failed", "addr", r.RemoteAddr, "user_id", identity.UserID, "error", err)
		return
	}
	if admitErr != nil {
		s.refuse(conn, r.RemoteAddr, admitErr)
		return
	}

	// Both pumps were reserved by admit. If Shutdown already removed the
	// handle, the write pump sends the going-away close frame and exits.
	client := newClient(s, conn, handle, r.RemoteAddr)
	go func() {
		defer s.wg.Done()
		client.writePump()
	}()
	go func() {
		defer s.wg.Done()
		client.readPump()
	}()
}

// authenticate writes the 401 response itself when the credential is
// rejected.
func (s *Server) authenticate(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	identity, err := s.verifier.Verify(credentialFromRequest(r))
	if err != nil {
		reason := chat.ReasonFor(err)
		s.log.Info("Rejected handshake", "addr", r.RemoteAddr, "reason_code", reason)
		_ = writeError(w, http.StatusUnauthorized, reason)
		return auth.Identity{}, false
	}
	return s.withDirectoryName(r.Context(), identity), true
}

// withDirectoryName prefers the display name registered in the user
// directory over the one carried by the credential.
func (s *Server) withDirectoryName(ctx context.Context, identity auth.Identity) auth.Identity {
	if s.directory == nil {
		return identity
	}
	name, err := s.directory.DisplayName(ctx, identity.UserID)
	if err != nil {
		s.log.Debug("No directory entry for user", "user_id", identity.UserID, "error", err)
		return identity
	}
	identity.DisplayName = name
	return identity
}

// refuse closes an upgraded socket that could not be admitted.
func (s *Server) refuse(conn *websocket.Conn, addr string, err error) {
	code, text := websocket.CloseGoingAway, "server shutting down"
	if errors.Is(err, registry.ErrCapacity) {
		code, text = websocket.CloseTryAgainLater, closeReasonAtCapacity
	}
	s.log.Warn("Refused connection", "addr", addr, "reason", text)
	deadline := time.Now().Add(s.cfg.WriteWait)
	if err := conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), deadline); err != nil {
		s.log.Debug("Error writing refusal close frame", "addr", addr, "error", err)
	}
	if err := conn.Close(); err != nil && !isExpectedCloseError(err) {
		s.log.Warn("Error closing refused connection", "addr", addr, "error", err)
	}
}

// StatusHandler reports live connection and message counts. It requires the
// same credential as the websocket endpoint.
func (s *Server) StatusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if _, ok := s.authenticate(w, r); !ok {
		return
	}

	total, err := s.messages.Count(r.Context())
	if err != nil {
		s.log.Error("Failed to count messages", "error", err)
		_ = writeError(w, http.StatusInternalServerError, chat.ReasonUnavailable)
		return
	}

	online := lo.Uniq(lo.Map(s.registry.Snapshot(), func(c *registry.Connection, _ int) string {
		return c.Identity().UserID
	}))
	if err := writeJSON(w, http.StatusOK, StatusResponse{
		OnlineUsers:    len(online),
		TotalMessages:  total,
		WebsocketReady: !s.closing.Load(),
	}); err != nil {
		s.log.Warn("Error writing status response", "error", err)
	}
}

// HealthHandler provides a simple health check endpoint that returns server status.
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "codechicks chat server is running!")
}

// TestPageHandler serves a small browser client for manual testing.
func (s *Server) TestPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	if _, err := fmt.Fprint(w, testPage); err != nil {
		s.log.Warn("Error writing HTML response", "error", err)
	}
}

const testPage = `<!DOCTYPE html>
<html>
<head>
    <title>codechicks chat test</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #messages {
            border: 1px solid #ccc;
            height: 300px;
            padding: 10px;
            overflow-y: scroll;
            margin: 10px 0;
            background-color: #f9f9f9;
        }
        input[type="text"] { width: 300px; padding: 5px; margin-right: 10px; }
        button { padding: 5px 15px; background-color: #007cba; color: white; border: none; cursor: pointer; }
        button:hover { background-color: #005a87; }
        .status { margin: 10px 0; padding: 5px; border-radius: 3px; }
        .connected { background-color: #d4edda; color: #155724; }
        .disconnected { background-color: #f8d7da; color: #721c24; }
        .reply { color: #666; font-size: 0.9em; border-left: 3px solid #ccc; padding-left: 5px; }
        .msg-id { color: #aaa; font-size: 0.8em; cursor: pointer; }
    </style>
</head>
<body>
    <h1>codechicks chat test</h1>

    <div id="status" class="status disconnected">Disconnected</div>

    <div>
        <input type="text" id="tokenInput" placeholder="Paste a token (server token --user ...)">
        <button id="connectButton" onclick="toggleConnection()">Connect</button>
    </div>
    <div>
        <input type="text" id="messageInput" placeholder="Type a message..." disabled>
        <input type="text" id="replyInput" placeholder="Reply to id (click an id)" disabled>
        <button id="sendButton" onclick="sendMessage()" disabled>Send</button>
    </div>

    <div id="messages"></div>

    <script>
        let ws = null;
        const messagesDiv = document.getElementById('messages');
        const tokenInput = document.getElementById('tokenInput');
        const messageInput = document.getElementById('messageInput');
        const replyInput = document.getElementById('replyInput');
        const sendButton = document.getElementById('sendButton');
        const connectButton = document.getElementById('connectButton');
        const statusDiv = document.getElementById('status');

        function addLine(text, color) {
            const el = document.createElement('div');
            el.style.margin = '5px 0';
            el.style.color = color || 'gray';
            el.textContent = text;
            messagesDiv.appendChild(el);
            messagesDiv.scrollTop = messagesDiv.scrollHeight;
            return el;
        }

        function addFrame(frame) {
            if (frame.error) {
                addLine('Error: ' + frame.error + ' (' + frame.reason_code + ')', 'red');
                return;
            }
            if (frame.deleted_id) {
                addLine('Message ' + frame.deleted_id + ' was deleted');
                return;
            }
            const el = addLine(frame.sender_display_name + ': ' + frame.content, 'green');
            if (frame.reply_to_id) {
                const reply = document.createElement('div');
                reply.className = 'reply';
                reply.textContent = frame.reply_to_sender_name + ': ' + frame.reply_to_content_snippet;
                el.prepend(reply);
            }
            const id = document.createElement('span');
            id.className = 'msg-id';
            id.textContent = ' [' + frame.id + ']';
            id.onclick = function() { replyInput.value = frame.id; };
            el.appendChild(id);
        }

        function updateStatus(connected) {
            statusDiv.textContent = connected ? 'Connected' : 'Disconnected';
            statusDiv.className = 'status ' + (connected ? 'connected' : 'disconnected');
            messageInput.disabled = !connected;
            replyInput.disabled = !connected;
            sendButton.disabled = !connected;
            connectButton.textContent = connected ? 'Disconnect' : 'Connect';
        }

        function connect() {
            const scheme = location.protocol === 'https:' ? 'wss://' : 'ws://';
            ws = new WebSocket(scheme + location.host + '/ws?token=' + encodeURIComponent(tokenInput.value.trim()));
            ws.onopen = function() {
                addLine('Connected');
                updateStatus(true);
            };
            ws.onmessage = function(event) {
                try {
                    addFrame(JSON.parse(event.data));
                } catch (e) {
                    addLine(event.data);
                }
            };
            ws.onclose = function(event) {
                addLine('Connection closed' + (event.reason ? ': ' + event.reason : ''));
                updateStatus(false);
                ws = null;
            };
            ws.onerror = function() {
                addLine('Connection error', 'red');
                updateStatus(false);
            };
        }

        function toggleConnection() {
            if (ws && ws.readyState === WebSocket.OPEN) {
                ws.close();
            } else {
                connect();
            }
        }

        function sendMessage() {
            const content = messageInput.value;
            if (content.trim() && ws && ws.readyState === WebSocket.OPEN) {
                const frame = { content: content };
                if (replyInput.value.trim()) {
                    frame.reply_to_id = replyInput.value.trim();
                }
                ws.send(JSON.stringify(frame));
                messageInput.value = '';
                replyInput.value = '';
            }
        }

        messageInput.addEventListener('keypress', function(e) {
            if (e.key === 'Enter') {
                sendMessage();
            }
        });
    </script>
</body>
</html>`
