// Package server implements the HTTP and WebSocket side of the chat.
//
// A handshake is authenticated before the connection is upgraded. Each
// admitted connection then runs a read pump, which hands inbound frames to
// the dispatcher, and a write pump, which drains the connection's outbound
// queue. The package also serves the health, status and test page routes.
package server
