package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/anzalkabeer/codechicks/internal/auth"
	"github.com/anzalkabeer/codechicks/internal/registry"
	"github.com/google/uuid"
)

const defaultQueueSize = 256

// Fanout is the part of the connection registry the dispatcher broadcasts
// through.
type Fanout interface {
	Snapshot() []*registry.Connection
	Deliver(conn *registry.Connection, payload []byte) bool
	Remove(conn *registry.Connection) bool
}

type jobKind int

const (
	jobPost jobKind = iota
	jobDelete
)

type job struct {
	kind      jobKind
	identity  auth.Identity
	content   string
	replyToID string
	deleteID  string
	result    chan jobResult
}

type jobResult struct {
	message Message
	err     error
}

// Dispatcher is the single lane every accepted message goes through. For
// each message the lane persists, snapshots the registry and delivers to
// every connection in the snapshot before it takes the next one, so the
// order messages are persisted in is the order every client sees.
type Dispatcher struct {
	log              *slog.Logger
	store            MessageStore
	replies          *ReplyResolver
	fanout           Fanout
	clock            Clock
	maxContentLength int

	jobs chan job
	done chan struct{}

	// owned by the lane goroutine
	lastCreatedAt time.Time
}

type DispatcherConfig struct {
	MaxContentLength int
	QueueSize        int
}

func NewDispatcher(log *slog.Logger, store MessageStore, replies *ReplyResolver, fanout Fanout, clock Clock, cfg DispatcherConfig) *Dispatcher {
	if cfg.MaxContentLength <= 0 {
		cfg.MaxContentLength = DefaultMaxContentLength
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &Dispatcher{
		log:              log,
		store:            store,
		replies:          replies,
		fanout:           fanout,
		clock:            clock,
		maxContentLength: cfg.MaxContentLength,
		jobs:             make(chan job, cfg.QueueSize),
		done:             make(chan struct{}),
	}
}

// Run drives the lane until ctx is cancelled. It must be called exactly once.
// Inbound calls made after Run returns fail with ErrUnavailable.
func (d *Dispatcher) Run(ctx context.Context) {
	defer close(d.done)
	d.log.Info("Dispatcher started")
	for {
		select {
		case <-ctx.Done():
			d.log.Info("Dispatcher stopped")
			return
		case j := <-d.jobs:
			j.result <- d.process(ctx, j)
		}
	}
}

// HandleInbound validates one raw client frame and, if it is acceptable,
// hands it to the lane and waits for the outcome. The returned message is
// the persisted one, already broadcast. Validation failures never reach the
// store or any other client.
func (d *Dispatcher) HandleInbound(ctx context.Context, identity auth.Identity, raw []byte) (Message, error) {
	frame, err := ParseInbound(raw)
	if err != nil {
		return Message{}, err
	}

	j := job{identity: identity, result: make(chan jobResult, 1)}
	if frame.DeleteID != "" {
		j.kind = jobDelete
		j.deleteID = frame.DeleteID
	} else {
		content, err := NormalizeContent(frame.Content, d.maxContentLength)
		if err != nil {
			return Message{}, err
		}
		j.kind = jobPost
		j.content = content
		j.replyToID = frame.ReplyToID
	}
	return d.submit(ctx, j)
}

// Post submits already-parsed content on behalf of identity.
func (d *Dispatcher) Post(ctx context.Context, identity auth.Identity, content, replyToID string) (Message, error) {
	normalized, err := NormalizeContent(content, d.maxContentLength)
	if err != nil {
		return Message{}, err
	}
	return d.submit(ctx, job{
		kind:      jobPost,
		identity:  identity,
		content:   normalized,
		replyToID: replyToID,
		result:    make(chan jobResult, 1),
	})
}

// Delete soft-deletes a message owned by identity, or any message when
// identity is an admin.
func (d *Dispatcher) Delete(ctx context.Context, identity auth.Identity, id string) (Message, error) {
	return d.submit(ctx, job{
		kind:     jobDelete,
		identity: identity,
		deleteID: id,
		result:   make(chan jobResult, 1),
	})
}

// submit blocks until the lane has finished the job. If ctx ends first the
// job still runs to completion; only the caller stops waiting.
func (d *Dispatcher) submit(ctx context.Context, j job) (Message, error) {
	select {
	case <-d.done:
		return Message{}, ErrUnavailable
	default:
	}

	select {
	case d.jobs <- j:
	case <-d.done:
		return Message{}, ErrUnavailable
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}

	select {
	case r := <-j.result:
		return r.message, r.err
	case <-d.done:
		select {
		case r := <-j.result:
			return r.message, r.err
		default:
			return Message{}, ErrUnavailable
		}
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

func (d *Dispatcher) process(ctx context.Context, j job) (res jobResult) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("Dispatch job panicked", "panic", r, "sender_id", j.identity.UserID)
			res = jobResult{err: fmt.Errorf("%w: %v", ErrPersistence, r)}
		}
	}()

	switch j.kind {
	case jobDelete:
		msg, err := d.softDelete(ctx, j)
		return jobResult{message: msg, err: err}
	default:
		msg, err := d.post(ctx, j)
		return jobResult{message: msg, err: err}
	}
}

func (d *Dispatcher) post(ctx context.Context, j job) (Message, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Message{}, fmt.Errorf("%w: generate id: %v", ErrPersistence, err)
	}

	msg := Message{
		ID:                id.String(),
		SenderID:          j.identity.UserID,
		SenderDisplayName: j.identity.DisplayName,
		Content:           j.content,
		Reply:             d.replies.Resolve(ctx, j.replyToID),
	}
	if msg.SenderDisplayName == "" {
		msg.SenderDisplayName = auth.FallbackName(msg.SenderID)
	}
	msg.CreatedAt = d.nextCreatedAt()

	if err := d.store.Create(ctx, msg); err != nil {
		d.log.Error("Failed to persist message", "sender_id", msg.SenderID, "error", err)
		return Message{}, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	payload, err := EncodeMessage(msg)
	if err != nil {
		d.log.Error("Failed to encode message frame", "message_id", msg.ID, "error", err)
		return msg, nil
	}
	delivered := d.broadcast(payload)
	d.log.Debug("Message dispatched",
		"message_id", msg.ID,
		"sender_id", msg.SenderID,
		"reply", msg.IsReply(),
		"delivered", delivered)
	return msg, nil
}

func (d *Dispatcher) softDelete(ctx context.Context, j job) (Message, error) {
	original, err := d.store.Get(ctx, j.deleteID)
	if err != nil {
		if errors.Is(err, ErrMessageNotFound) {
			return Message{}, err
		}
		return Message{}, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if original.Deleted {
		return Message{}, fmt.Errorf("%w: %s", ErrMessageNotFound, j.deleteID)
	}
	if original.SenderID != j.identity.UserID && !j.identity.IsAdmin() {
		d.log.Warn("Rejected delete of foreign message",
			"message_id", original.ID,
			"owner_id", original.SenderID,
			"requester_id", j.identity.UserID)
		return Message{}, ErrForbidden
	}

	if err := d.store.SoftDelete(ctx, original.ID); err != nil {
		if errors.Is(err, ErrMessageNotFound) {
			return Message{}, err
		}
		d.log.Error("Failed to delete message", "message_id", original.ID, "error", err)
		return Message{}, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	original.Deleted = true

	delivered := d.broadcast(EncodeDeleted(original.ID))
	d.log.Info("Message deleted",
		"message_id", original.ID,
		"requester_id", j.identity.UserID,
		"delivered", delivered)
	return original, nil
}

// nextCreatedAt keeps timestamps strictly increasing even when the clock
// stalls or steps backwards.
func (d *Dispatcher) nextCreatedAt() time.Time {
	now := d.clock.Now().UTC()
	if !now.After(d.lastCreatedAt) {
		now = d.lastCreatedAt.Add(time.Nanosecond)
	}
	d.lastCreatedAt = now
	return now
}

// broadcast delivers payload to every connection in one snapshot, the sender
// included. Connections that could not take the payload are removed
// afterwards; ones already gone by then are skipped silently.
func (d *Dispatcher) broadcast(payload []byte) int {
	targets := d.fanout.Snapshot()
	var failed []*registry.Connection
	for _, conn := range targets {
		if !d.fanout.Deliver(conn, payload) {
			failed = append(failed, conn)
		}
	}
	for _, conn := range failed {
		if d.fanout.Remove(conn) {
			d.log.Warn("Dropping connection with full outbound queue",
				"connection_id", conn.ID(),
				"user_id", conn.Identity().UserID)
		}
	}
	return len(targets) - len(failed)
}
