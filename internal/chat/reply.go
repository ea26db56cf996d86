package chat

import (
	"context"
	"errors"
	"log/slog"

	"github.com/anzalkabeer/codechicks/internal/auth"
)

// ReplyResolver turns a reply_to_id into the summary embedded in a new
// message. A reply target that cannot be resolved never rejects the message.
type ReplyResolver struct {
	log           *slog.Logger
	store         MessageStore
	directory     UserDirectory
	snippetLength int
}

// NewReplyResolver accepts a nil directory; names then come from the stored
// message or the sender id.
func NewReplyResolver(log *slog.Logger, store MessageStore, directory UserDirectory, snippetLength int) *ReplyResolver {
	if snippetLength <= 0 {
		snippetLength = DefaultSnippetLength
	}
	return &ReplyResolver{
		log:           log,
		store:         store,
		directory:     directory,
		snippetLength: snippetLength,
	}
}

func (r *ReplyResolver) Resolve(ctx context.Context, replyToID string) *ReplySummary {
	if replyToID == "" {
		return nil
	}
	original, err := r.store.Get(ctx, replyToID)
	if err != nil {
		if errors.Is(err, ErrMessageNotFound) {
			r.log.Debug("Reply target not found", "reply_to_id", replyToID)
		} else {
			r.log.Warn("Reply target lookup failed", "reply_to_id", replyToID, "error", err)
		}
		return nil
	}
	if original.Deleted {
		r.log.Debug("Reply target was deleted", "reply_to_id", replyToID)
		return nil
	}
	return &ReplySummary{
		MessageID:      original.ID,
		SenderName:     r.senderName(ctx, original),
		ContentSnippet: Snippet(original.Content, r.snippetLength),
	}
}

func (r *ReplyResolver) senderName(ctx context.Context, original Message) string {
	if original.SenderDisplayName != "" {
		return original.SenderDisplayName
	}
	if r.directory != nil {
		name, err := r.directory.DisplayName(ctx, original.SenderID)
		if err == nil && name != "" {
			return name
		}
	}
	return auth.FallbackName(original.SenderID)
}
