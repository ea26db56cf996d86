package store

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/anzalkabeer/codechicks/internal/chat"
	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newTestStore(t *testing.T) *MessageStore {
	return NewMessageStore(openTestDB(t), logs.GetLoggerFromLevel(slog.LevelDebug))
}

func seedMessages(t *testing.T, s *MessageStore, n int) []chat.Message {
	t.Helper()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var out []chat.Message
	for i := 0; i < n; i++ {
		m := chat.Message{
			ID:                fmt.Sprintf("m-%02d", i),
			SenderID:          "alice@example.com",
			SenderDisplayName: "Alice",
			Content:           fmt.Sprintf("message %d", i),
			CreatedAt:         base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, s.Create(context.Background(), m))
		out = append(out, m)
	}
	return out
}

func TestMessageStore_CreateAndGet(t *testing.T) {
	req := require.New(t)
	s := newTestStore(t)
	ctx := context.Background()

	m := chat.Message{
		ID:                "0194d3a0-0000-7000-8000-000000000001",
		SenderID:          "bob@example.com",
		SenderDisplayName: "Bob",
		Content:           "On it, will have it by 5.",
		CreatedAt:         time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC),
		Reply: &chat.ReplySummary{
			MessageID:      "0194d3a0-0000-7000-8000-000000000000",
			SenderName:     "Alice",
			ContentSnippet: "Can someone review PR #42?",
		},
	}
	req.NoError(s.Create(ctx, m))

	got, err := s.Get(ctx, m.ID)
	req.NoError(err)
	req.Equal(m.ID, got.ID)
	req.Equal(m.SenderID, got.SenderID)
	req.Equal(m.SenderDisplayName, got.SenderDisplayName)
	req.Equal(m.Content, got.Content)
	req.True(m.CreatedAt.Equal(got.CreatedAt))
	req.Equal(m.Reply, got.Reply)
	req.False(got.Deleted)
}

func TestMessageStore_GetUnknown(t *testing.T) {
	req := require.New(t)
	s := newTestStore(t)

	_, err := s.Get(context.Background(), "missing")
	req.ErrorIs(err, chat.ErrMessageNotFound)
}

func TestMessageStore_CreateDuplicateID(t *testing.T) {
	req := require.New(t)
	s := newTestStore(t)
	ctx := context.Background()
	m := chat.Message{ID: "dup", SenderID: "a", Content: "x", CreatedAt: time.Now()}

	req.NoError(s.Create(ctx, m))
	req.ErrorIs(s.Create(ctx, m), ErrDuplicateID)

	count, err := s.Count(ctx)
	req.NoError(err)
	req.Equal(1, count)
}

func TestMessageStore_CreateWithoutID(t *testing.T) {
	req := require.New(t)
	s := newTestStore(t)

	req.Error(s.Create(context.Background(), chat.Message{Content: "x"}))
}

func TestMessageStore_CancelledContext(t *testing.T) {
	req := require.New(t)
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req.ErrorIs(s.Create(ctx, chat.Message{ID: "x"}), context.Canceled)
	_, err := s.Get(ctx, "x")
	req.ErrorIs(err, context.Canceled)
}

func TestMessageStore_SoftDelete(t *testing.T) {
	req := require.New(t)
	s := newTestStore(t)
	ctx := context.Background()
	msgs := seedMessages(t, s, 3)

	req.NoError(s.SoftDelete(ctx, msgs[1].ID))
	req.NoError(s.SoftDelete(ctx, msgs[1].ID))

	got, err := s.Get(ctx, msgs[1].ID)
	req.NoError(err)
	req.True(got.Deleted)
	req.Equal(msgs[1].Content, got.Content)

	count, err := s.Count(ctx)
	req.NoError(err)
	req.Equal(2, count)

	req.ErrorIs(s.SoftDelete(ctx, "missing"), chat.ErrMessageNotFound)
}

func TestMessageStore_RecentIsNewestFirst(t *testing.T) {
	req := require.New(t)
	s := newTestStore(t)
	msgs := seedMessages(t, s, 5)

	got, next, err := s.Recent(context.Background(), "", 10)
	req.NoError(err)
	req.Empty(next)
	req.Len(got, 5)
	for i, m := range got {
		req.Equal(msgs[len(msgs)-1-i].ID, m.ID)
	}
}

func TestMessageStore_RecentPaginates(t *testing.T) {
	req := require.New(t)
	s := newTestStore(t)
	ctx := context.Background()
	msgs := seedMessages(t, s, 5)

	page1, cursor, err := s.Recent(ctx, "", 2)
	req.NoError(err)
	req.Equal([]string{msgs[4].ID, msgs[3].ID}, ids(page1))
	req.NotEmpty(cursor)

	page2, cursor, err := s.Recent(ctx, cursor, 2)
	req.NoError(err)
	req.Equal([]string{msgs[2].ID, msgs[1].ID}, ids(page2))
	req.NotEmpty(cursor)

	page3, cursor, err := s.Recent(ctx, cursor, 2)
	req.NoError(err)
	req.Equal([]string{msgs[0].ID}, ids(page3))
	req.Empty(cursor)
}

func TestMessageStore_RecentSkipsDeleted(t *testing.T) {
	req := require.New(t)
	s := newTestStore(t)
	ctx := context.Background()
	msgs := seedMessages(t, s, 4)
	req.NoError(s.SoftDelete(ctx, msgs[3].ID))
	req.NoError(s.SoftDelete(ctx, msgs[1].ID))

	got, _, err := s.Recent(ctx, "", 10)
	req.NoError(err)
	req.Equal([]string{msgs[2].ID, msgs[0].ID}, ids(got))
}

func TestMessageStore_RecentEmpty(t *testing.T) {
	req := require.New(t)
	s := newTestStore(t)

	got, next, err := s.Recent(context.Background(), "", 10)
	req.NoError(err)
	req.Empty(got)
	req.Empty(next)

	got, _, err = s.Recent(context.Background(), "", 0)
	req.NoError(err)
	req.Empty(got)
}

func TestCodec_DecodeRejectsTruncatedRecord(t *testing.T) {
	req := require.New(t)
	b := encodeMessage(chat.Message{ID: "abc", Content: "hello"})

	_, err := decodeMessage(b[:len(b)-2])
	req.Error(err)
}

func ids(messages []chat.Message) []string {
	out := make([]string, 0, len(messages))
	for _, m := range messages {
		out = append(out, m.ID)
	}
	return out
}
