package store

import (
	"context"
	"testing"
	"time"

	"github.com/anzalkabeer/codechicks/internal/auth"
	"github.com/stretchr/testify/require"
)

func TestUserDirectory_PutAndDisplayName(t *testing.T) {
	req := require.New(t)
	dir := NewUserDirectory(openTestDB(t))
	ctx := context.Background()

	req.NoError(dir.Put(ctx, UserRecord{ID: "alice@example.com", DisplayName: "Alice", Role: auth.RoleAdmin}))

	name, err := dir.DisplayName(ctx, "alice@example.com")
	req.NoError(err)
	req.Equal("Alice", name)

	// ids are e-mail addresses and match case-insensitively
	name, err = dir.DisplayName(ctx, "Alice@Example.com")
	req.NoError(err)
	req.Equal("Alice", name)

	u, err := dir.Get(ctx, "alice@example.com")
	req.NoError(err)
	req.Equal(auth.RoleAdmin, u.Role)
	req.False(u.CreatedAt.IsZero())
}

func TestUserDirectory_PutKeepsCreatedAt(t *testing.T) {
	req := require.New(t)
	dir := NewUserDirectory(openTestDB(t))
	first := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	dir.now = func() time.Time { return first }
	ctx := context.Background()

	req.NoError(dir.Put(ctx, UserRecord{ID: "bob", DisplayName: "Bob"}))
	dir.now = func() time.Time { return first.Add(time.Hour) }
	req.NoError(dir.Put(ctx, UserRecord{ID: "bob", DisplayName: "Robert"}))

	u, err := dir.Get(ctx, "bob")
	req.NoError(err)
	req.Equal("Robert", u.DisplayName)
	req.True(first.Equal(u.CreatedAt))
}

func TestUserDirectory_Misses(t *testing.T) {
	req := require.New(t)
	dir := NewUserDirectory(openTestDB(t))
	ctx := context.Background()

	_, err := dir.DisplayName(ctx, "nobody")
	req.ErrorIs(err, ErrUserNotFound)

	req.NoError(dir.Put(ctx, UserRecord{ID: "anon"}))
	_, err = dir.DisplayName(ctx, "anon")
	req.ErrorIs(err, ErrUserNotFound)

	req.Error(dir.Put(ctx, UserRecord{}))
}
