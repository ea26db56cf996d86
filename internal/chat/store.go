//go:generate go run go.uber.org/mock/mockgen -source=store.go -destination=../mocks/mock_store.go -package=mocks
package chat

import (
	"context"
	"time"
)

// MessageStore is the durable, append-only message log. Get and SoftDelete
// return an error wrapping ErrMessageNotFound for unknown ids.
type MessageStore interface {
	Create(ctx context.Context, message Message) error
	Get(ctx context.Context, id string) (Message, error)
	SoftDelete(ctx context.Context, id string) error
	// Recent lists live messages newest first, starting after the cursor
	// returned by a previous call (empty for the newest page).
	Recent(ctx context.Context, before string, limit int) ([]Message, string, error)
	Count(ctx context.Context) (int, error)
}

// UserDirectory resolves user ids to display names.
type UserDirectory interface {
	DisplayName(ctx context.Context, userID string) (string, error)
}

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
