// Package store persists messages and the user directory in BadgerDB.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anzalkabeer/codechicks/internal/chat"
	"github.com/dgraph-io/badger/v4"
)

const (
	messagePrefix = "msg:"
	indexPrefix   = "msgid:"
	// Sorts after every 19-digit timestamp, so a reverse seek lands on the
	// newest message.
	newestCursor = "9999999999999999999"
)

var ErrDuplicateID = errors.New("message id already exists")

// Open opens the badger database at path; an empty path keeps it in memory.
func Open(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).WithLoggingLevel(badger.WARNING)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", path, err)
	}
	return db, nil
}

// MessageStore keeps every message under a time-ordered primary key
// "msg:{unix_nanos_padded}:{id}" and a secondary "msgid:{id}" index that
// points back to it.
type MessageStore struct {
	db  *badger.DB
	log *slog.Logger
}

func NewMessageStore(db *badger.DB, log *slog.Logger) *MessageStore {
	return &MessageStore{db: db, log: log}
}

var _ chat.MessageStore = (*MessageStore)(nil)

func messageKey(m chat.Message) []byte {
	return []byte(fmt.Sprintf("%s%019d:%s", messagePrefix, m.CreatedAt.UnixNano(), m.ID))
}

func indexKey(id string) []byte {
	return []byte(indexPrefix + id)
}

// Create writes the record and its index in one transaction.
func (s *MessageStore) Create(ctx context.Context, m chat.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.ID == "" {
		return errors.New("message id is required")
	}
	key := messageKey(m)
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(indexKey(m.ID)); err == nil {
			return fmt.Errorf("%w: %s", ErrDuplicateID, m.ID)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := txn.Set(key, encodeMessage(m)); err != nil {
			return err
		}
		return txn.Set(indexKey(m.ID), key)
	})
}

func (s *MessageStore) Get(ctx context.Context, id string) (chat.Message, error) {
	if err := ctx.Err(); err != nil {
		return chat.Message{}, err
	}
	var m chat.Message
	err := s.db.View(func(txn *badger.Txn) error {
		_, found, err := s.lookup(txn, id)
		m = found
		return err
	})
	return m, err
}

// SoftDelete flags the message as deleted. Deleting a deleted message is a
// no-op.
func (s *MessageStore) SoftDelete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		key, m, err := s.lookup(txn, id)
		if err != nil {
			return err
		}
		if m.Deleted {
			return nil
		}
		m.Deleted = true
		return txn.Set(key, encodeMessage(m))
	})
}

func (s *MessageStore) lookup(txn *badger.Txn, id string) ([]byte, chat.Message, error) {
	idx, err := txn.Get(indexKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, chat.Message{}, fmt.Errorf("%w: %s", chat.ErrMessageNotFound, id)
	}
	if err != nil {
		return nil, chat.Message{}, err
	}
	key, err := idx.ValueCopy(nil)
	if err != nil {
		return nil, chat.Message{}, err
	}
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, chat.Message{}, fmt.Errorf("%w: %s (dangling index)", chat.ErrMessageNotFound, id)
	}
	if err != nil {
		return nil, chat.Message{}, err
	}
	var m chat.Message
	err = item.Value(func(v []byte) error {
		m, err = decodeMessage(v)
		return err
	})
	return key, m, err
}

// Recent returns up to limit live messages, newest first, older than the
// cursor before. The returned cursor is empty once history is exhausted.
func (s *MessageStore) Recent(ctx context.Context, before string, limit int) ([]chat.Message, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	if limit <= 0 {
		return nil, "", nil
	}
	var (
		messages []chat.Message
		next     string
	)
	prefix := []byte(messagePrefix)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		cursor := before
		if cursor == "" {
			cursor = newestCursor
		}
		seekKey := append([]byte(messagePrefix), cursor...)
		it.Seek(seekKey)
		if before != "" && it.ValidForPrefix(prefix) && string(it.Item().Key()) == string(seekKey) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if len(messages) == limit {
				return nil
			}
			item := it.Item()
			var m chat.Message
			err := item.Value(func(v []byte) error {
				var err error
				m, err = decodeMessage(v)
				return err
			})
			if err != nil {
				return fmt.Errorf("decode %s: %w", item.Key(), err)
			}
			if m.Deleted {
				continue
			}
			messages = append(messages, m)
			next = strings.TrimPrefix(string(item.Key()), messagePrefix)
		}
		next = ""
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	s.log.Debug("Loaded recent messages", "count", len(messages), "before", before)
	return messages, next, nil
}

// Count returns the number of live messages.
func (s *MessageStore) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	total := 0
	prefix := []byte(messagePrefix)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(v []byte) error {
				m, err := decodeMessage(v)
				if err != nil {
					return err
				}
				if !m.Deleted {
					total++
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return total, err
}
