// Package testhelpers provides HTTP and WebSocket helpers shared by the
// server tests.
package testhelpers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/anzalkabeer/codechicks/internal/chat"
	"github.com/gorilla/websocket"
)

// TestOrigin is the browser origin every helper dials with.
const TestOrigin = "http://localhost:8080"

// CreateTestServer creates a test HTTP server with the given handler.
// It returns a running httptest.Server that should be closed after use.
func CreateTestServer(handler http.Handler) *httptest.Server {
	return httptest.NewServer(handler)
}

// AssertStatusCode checks if the HTTP response has the expected status code.
func AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("Expected status code %d, got %d", expected, resp.StatusCode)
	}
}

// AssertContentType checks if the HTTP response has the expected Content-Type header.
func AssertContentType(t *testing.T, resp *http.Response, expected string) {
	t.Helper()
	contentType := resp.Header.Get("Content-Type")
	if contentType != expected {
		t.Errorf("Expected content type %s, got %s", expected, contentType)
	}
}

// MakeRequest executes an HTTP request with a 5-second timeout. A non-empty
// token is sent as a bearer credential.
func MakeRequest(t *testing.T, method, target, token string) *http.Response {
	t.Helper()

	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	req, err := http.NewRequest(method, target, http.NoBody)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}

	return resp
}

// WebSocketURL turns an httptest server URL into the chat endpoint URL,
// carrying token as the credential query parameter when non-empty.
func WebSocketURL(serverURL, token string) string {
	wsURL := "ws" + strings.TrimPrefix(serverURL, "http") + "/ws"
	if token != "" {
		wsURL += "?token=" + url.QueryEscape(token)
	}
	return wsURL
}

// ConnectWebSocket dials url from TestOrigin. The handshake response is
// returned so rejected handshakes can be inspected.
func ConnectWebSocket(wsURL string) (*websocket.Conn, *http.Response, error) {
	return ConnectWebSocketWithHeader(wsURL, http.Header{})
}

func ConnectWebSocketWithHeader(wsURL string, headers http.Header) (*websocket.Conn, *http.Response, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}
	if headers.Get("Origin") == "" {
		headers.Set("Origin", TestOrigin)
	}
	return dialer.Dial(wsURL, headers)
}

// MustConnect dials url and fails the test if the handshake does not succeed.
func MustConnect(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, resp, err := ConnectWebSocket(wsURL)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// DecodeErrorBody reads the JSON error body of a rejected request.
func DecodeErrorBody(t *testing.T, resp *http.Response) chat.ErrorFrame {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	var frame chat.ErrorFrame
	if err := json.NewDecoder(resp.Body).Decode(&frame); err != nil {
		t.Fatalf("Failed to decode error body: %v", err)
	}
	return frame
}

// SendMessage sends a chat message frame.
func SendMessage(conn *websocket.Conn, content string) error {
	return conn.WriteJSON(chat.InboundFrame{Content: content})
}

// SendReply sends a chat message frame replying to replyToID.
func SendReply(conn *websocket.Conn, content, replyToID string) error {
	return conn.WriteJSON(chat.InboundFrame{Content: content, ReplyToID: replyToID})
}

// SendRawMessage sends a raw byte message over the WebSocket connection.
func SendRawMessage(conn *websocket.Conn, messageType int, data []byte) error {
	return conn.WriteMessage(messageType, data)
}

// ReceiveRaw reads the next frame, giving up after timeout.
func ReceiveRaw(conn *websocket.Conn, timeout time.Duration) ([]byte, error) {
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, err
	}
	_, data, err := conn.ReadMessage()
	return data, err
}

// ReceiveMessage reads the next frame and decodes it as a message frame.
func ReceiveMessage(t *testing.T, conn *websocket.Conn) chat.MessageFrame {
	t.Helper()
	data, err := ReceiveRaw(conn, 2*time.Second)
	if err != nil {
		t.Fatalf("Failed to receive message: %v", err)
	}
	var frame chat.MessageFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		t.Fatalf("Failed to decode message frame %s: %v", data, err)
	}
	if frame.ID == "" {
		t.Fatalf("Expected a message frame, got %s", data)
	}
	return frame
}

// ReceiveError reads the next frame and decodes it as an error frame.
func ReceiveError(t *testing.T, conn *websocket.Conn) chat.ErrorFrame {
	t.Helper()
	data, err := ReceiveRaw(conn, 2*time.Second)
	if err != nil {
		t.Fatalf("Failed to receive error frame: %v", err)
	}
	var frame chat.ErrorFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		t.Fatalf("Failed to decode error frame %s: %v", data, err)
	}
	if frame.ReasonCode == "" {
		t.Fatalf("Expected an error frame, got %s", data)
	}
	return frame
}

// ExpectNoFrame fails the test if a frame arrives within wait. A timed out
// read breaks the connection, so this must be the last read on conn.
func ExpectNoFrame(t *testing.T, conn *websocket.Conn, wait time.Duration) {
	t.Helper()
	data, err := ReceiveRaw(conn, wait)
	if err == nil {
		t.Fatalf("Expected no frame, got %s", data)
	}
}

// CloseWebSocket gracefully closes a WebSocket connection.
func CloseWebSocket(conn *websocket.Conn) error {
	err := conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		return err
	}
	return conn.Close()
}
