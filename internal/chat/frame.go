package chat

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// InboundFrame is what a client sends. A frame with DeleteID asks for a soft
// delete; any other frame posts Content.
type InboundFrame struct {
	Content   string `json:"content"`
	ReplyToID string `json:"reply_to_id,omitempty"`
	DeleteID  string `json:"delete_id,omitempty"`
}

// MessageFrame is the broadcast form of a persisted message.
type MessageFrame struct {
	ID                    string    `json:"id"`
	SenderID              string    `json:"sender_id"`
	SenderDisplayName     string    `json:"sender_display_name"`
	Content               string    `json:"content"`
	CreatedAt             time.Time `json:"created_at"`
	ReplyToID             string    `json:"reply_to_id,omitempty"`
	ReplyToSenderName     string    `json:"reply_to_sender_name,omitempty"`
	ReplyToContentSnippet string    `json:"reply_to_content_snippet,omitempty"`
}

// ErrorFrame is sent to the originating client only.
type ErrorFrame struct {
	Error      string     `json:"error"`
	ReasonCode ReasonCode `json:"reason_code"`
}

// DeletedFrame announces a soft delete to every client.
type DeletedFrame struct {
	DeletedID string `json:"deleted_id"`
}

func ParseInbound(raw []byte) (InboundFrame, error) {
	var frame InboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return InboundFrame{}, fmt.Errorf("%w: %v", ErrInvalidFrame, err)
	}
	frame.ReplyToID = strings.TrimSpace(frame.ReplyToID)
	frame.DeleteID = strings.TrimSpace(frame.DeleteID)
	return frame, nil
}

func ToMessageFrame(m Message) MessageFrame {
	frame := MessageFrame{
		ID:                m.ID,
		SenderID:          m.SenderID,
		SenderDisplayName: m.SenderDisplayName,
		Content:           m.Content,
		CreatedAt:         m.CreatedAt.UTC(),
	}
	if m.Reply != nil {
		frame.ReplyToID = m.Reply.MessageID
		frame.ReplyToSenderName = m.Reply.SenderName
		frame.ReplyToContentSnippet = m.Reply.ContentSnippet
	}
	return frame
}

func EncodeMessage(m Message) ([]byte, error) {
	return json.Marshal(ToMessageFrame(m))
}

// EncodeError builds the error frame for err. The description is fixed per
// reason so storage internals never reach the client.
func EncodeError(err error) []byte {
	reason := ReasonFor(err)
	payload, _ := json.Marshal(ErrorFrame{Error: reason.Description(), ReasonCode: reason})
	return payload
}

func EncodeDeleted(id string) []byte {
	payload, _ := json.Marshal(DeletedFrame{DeletedID: id})
	return payload
}
