package server

import (
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/anzalkabeer/codechicks/internal/chat"
	"github.com/anzalkabeer/codechicks/internal/registry"
	"github.com/gorilla/websocket"
)

// Client is the websocket side of one admitted connection. The registry
// handle carries its identity and outbound queue.
type Client struct {
	server *Server
	conn   *websocket.Conn
	handle *registry.Connection
	addr   string
	log    *slog.Logger
}

func newClient(s *Server, conn *websocket.Conn, handle *registry.Connection, addr string) *Client {
	conn.SetReadLimit(s.cfg.MaxReadSize)
	return &Client{
		server: s,
		conn:   conn,
		handle: handle,
		addr:   addr,
		log: s.log.With(
			"addr", addr,
			"user_id", handle.Identity().UserID,
			"conn_id", handle.ID()),
	}
}

// setupReadConnection configures read deadlines and pong handler for the WebSocket connection
func (c *Client) setupReadConnection() {
	pongWait := c.server.cfg.PongWait
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.log.Warn("Error setting initial read deadline", "error", err)
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			c.log.Warn("Error setting read deadline in pong handler", "error", err)
		}
		return nil
	})
}

// logReadError logs why the read loop stopped.
func (c *Client) logReadError(err error) {
	if errors.Is(err, websocket.ErrReadLimit) {
		c.log.Warn("Frame exceeded hard read limit", "max_read_size", c.server.cfg.MaxReadSize)
		return
	}

	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure) {
		c.log.Info("Client disconnected", "reason", err)
		return
	}

	if errors.Is(err, io.EOF) || isExpectedCloseError(err) {
		c.log.Info("Client connection closed", "reason", err)
		return
	}

	if websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseMessageTooBig) {
		c.log.Warn("Unexpected WebSocket error", "error", err)
		return
	}

	c.log.Warn("WebSocket read error", "error", err)
}

// processMessage hands one inbound frame to the dispatcher. Failures are
// reported to this connection only.
func (c *Client) processMessage(messageType int, raw []byte) {
	if messageType != websocket.TextMessage {
		c.reply(chat.EncodeError(chat.ErrInvalidFrame))
		return
	}

	msg, err := c.server.dispatcher.HandleInbound(c.server.ctx, c.handle.Identity(), raw)
	if err != nil {
		reason := chat.ReasonFor(err)
		if reason == chat.ReasonPersistenceFailed || reason == chat.ReasonUnavailable {
			c.log.Warn("Message rejected", "reason_code", reason, "error", err)
		} else {
			c.log.Debug("Message rejected", "reason_code", reason, "error", err)
		}
		c.reply(chat.EncodeError(err))
		return
	}
	c.log.Debug("Message accepted", "message_id", msg.ID)
}

func (c *Client) reply(payload []byte) {
	if !c.server.registry.Deliver(c.handle, payload) {
		c.log.Warn("Dropping connection, error frame could not be queued")
		c.server.registry.Remove(c.handle)
	}
}

// readPump owns the socket's read side. Every way out of it removes the
// connection from the registry, which in turn stops the write pump.
func (c *Client) readPump() {
	defer func() {
		c.server.registry.Remove(c.handle)
		c.closeConnection()
	}()

	c.setupReadConnection()

	for {
		messageType, raw, err := c.readFrame()
		if errors.Is(err, errFrameTooLarge) {
			c.log.Debug("Rejected oversized frame", "max_frame_size", c.server.cfg.MaxFrameSize)
			c.reply(chat.EncodeError(chat.ErrContentTooLong))
			continue
		}
		if err != nil {
			c.logReadError(err)
			return
		}
		c.processMessage(messageType, raw)
	}
}

var errFrameTooLarge = errors.New("frame exceeds maximum frame size")

// readFrame reads the next frame up to MaxFrameSize. A larger frame is
// drained and reported as errFrameTooLarge; the connection stays usable
// unless it also crosses the hard read limit.
func (c *Client) readFrame() (int, []byte, error) {
	messageType, r, err := c.conn.NextReader()
	if err != nil {
		return 0, nil, err
	}
	limit := c.server.cfg.MaxFrameSize
	raw, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return 0, nil, err
	}
	if int64(len(raw)) <= limit {
		return messageType, raw, nil
	}
	if _, err := io.Copy(io.Discard, r); err != nil {
		return 0, nil, err
	}
	return messageType, nil, errFrameTooLarge
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.server.cfg.PingPeriod())
	defer func() {
		ticker.Stop()
		c.server.registry.Remove(c.handle)
		c.closeConnection()
	}()

	for c.processWriteEvent(ticker) {
	}
}

// processWriteEvent waits for the next write event and returns false when the
// pump should stop processing.
func (c *Client) processWriteEvent(ticker *time.Ticker) bool {
	select {
	case message, ok := <-c.handle.Outbound():
		return c.handleMessage(message, ok)
	case <-ticker.C:
		return c.handlePing()
	}
}

// closeConnection safely closes the WebSocket connection with proper error handling
func (c *Client) closeConnection() {
	if err := c.conn.Close(); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Warn("Error closing connection", "error", err)
		}
	}
}

// handleMessage processes outgoing messages and returns false if the connection should be closed
func (c *Client) handleMessage(message []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.server.cfg.WriteWait)); err != nil {
		c.log.Warn("Error setting write deadline", "error", err)
		return false
	}

	if !ok {
		return c.writeCloseMessage()
	}

	return c.writeTextMessage(message)
}

// writeCloseMessage sends a close frame once the registry has dropped the
// connection.
func (c *Client) writeCloseMessage() bool {
	code, text := websocket.CloseNormalClosure, ""
	if c.server.closing.Load() {
		code, text = websocket.CloseGoingAway, "server shutting down"
	}
	if err := c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, text)); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Warn("Error writing close message", "error", err)
		}
	}
	return false
}

// writeTextMessage writes one frame per queued payload so clients can decode
// each frame as a single JSON object.
func (c *Client) writeTextMessage(message []byte) bool {
	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Warn("Error writing message", "error", err)
		}
		return false
	}
	return true
}

// handlePing sends a ping message to keep the connection alive
func (c *Client) handlePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.server.cfg.WriteWait)); err != nil {
		c.log.Warn("Error setting write deadline for ping", "error", err)
		return false
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.log.Warn("Error writing ping message", "error", err)
		return false
	}
	return true
}
