package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anzalkabeer/codechicks/internal/auth"
	"github.com/anzalkabeer/codechicks/internal/chat"
	"github.com/dgraph-io/badger/v4"
)

const userPrefix = "user:"

var ErrUserNotFound = errors.New("user not found")

type UserRecord struct {
	ID          string
	DisplayName string
	Role        auth.Role
	CreatedAt   time.Time
}

// UserDirectory maps user ids to the profile the account service registered.
type UserDirectory struct {
	db  *badger.DB
	now func() time.Time
}

func NewUserDirectory(db *badger.DB) *UserDirectory {
	return &UserDirectory{db: db, now: time.Now}
}

var _ chat.UserDirectory = (*UserDirectory)(nil)

func userKey(id string) []byte {
	return []byte(userPrefix + strings.ToLower(id))
}

// Put creates or replaces a user. CreatedAt is kept from the first write.
func (d *UserDirectory) Put(ctx context.Context, u UserRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if u.ID == "" {
		return errors.New("user id is required")
	}
	return d.db.Update(func(txn *badger.Txn) error {
		existing, err := getUser(txn, u.ID)
		switch {
		case err == nil:
			u.CreatedAt = existing.CreatedAt
		case errors.Is(err, ErrUserNotFound):
			if u.CreatedAt.IsZero() {
				u.CreatedAt = d.now().UTC()
			}
		default:
			return err
		}
		return txn.Set(userKey(u.ID), encodeUser(u))
	})
}

func (d *UserDirectory) Get(ctx context.Context, userID string) (UserRecord, error) {
	if err := ctx.Err(); err != nil {
		return UserRecord{}, err
	}
	var u UserRecord
	err := d.db.View(func(txn *badger.Txn) error {
		var err error
		u, err = getUser(txn, userID)
		return err
	})
	return u, err
}

func (d *UserDirectory) DisplayName(ctx context.Context, userID string) (string, error) {
	u, err := d.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	if u.DisplayName == "" {
		return "", fmt.Errorf("%w: %s has no display name", ErrUserNotFound, userID)
	}
	return u.DisplayName, nil
}

func getUser(txn *badger.Txn, userID string) (UserRecord, error) {
	item, err := txn.Get(userKey(userID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return UserRecord{}, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}
	if err != nil {
		return UserRecord{}, err
	}
	var u UserRecord
	err = item.Value(func(v []byte) error {
		u, err = decodeUser(v)
		return err
	})
	return u, err
}
