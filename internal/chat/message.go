// Package chat holds the messaging core: the message model, the wire frames
// exchanged with clients, reply resolution and the dispatch lane that
// persists and broadcasts every message in a single total order.
package chat

import "time"

// Message is immutable once persisted, apart from the Deleted flag.
type Message struct {
	ID                string
	SenderID          string
	SenderDisplayName string
	Content           string
	CreatedAt         time.Time
	Reply             *ReplySummary // nil unless the reply target resolved
	Deleted           bool
}

// ReplySummary is the denormalised context of the message being replied to.
// Its fields are always set together.
type ReplySummary struct {
	MessageID      string
	SenderName     string
	ContentSnippet string
}

func (m Message) IsReply() bool {
	return m.Reply != nil
}
