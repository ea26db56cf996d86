package chat

import (
	"errors"

	"github.com/anzalkabeer/codechicks/internal/auth"
)

var (
	ErrInvalidFrame    = errors.New("invalid frame")
	ErrEmptyContent    = errors.New("message content is empty")
	ErrContentTooLong  = errors.New("message content is too long")
	ErrPersistence     = errors.New("message could not be persisted")
	ErrMessageNotFound = errors.New("message not found")
	ErrForbidden       = errors.New("operation not allowed")
	ErrUnavailable     = errors.New("dispatcher unavailable")
)

// ReasonCode is the machine-readable cause carried by error frames and
// handshake rejections.
type ReasonCode string

const (
	ReasonInvalidFrame      ReasonCode = "invalid_frame"
	ReasonEmptyContent      ReasonCode = "empty_content"
	ReasonContentTooLong    ReasonCode = "content_too_long"
	ReasonPersistenceFailed ReasonCode = "persistence_failed"
	ReasonMessageNotFound   ReasonCode = "message_not_found"
	ReasonForbidden         ReasonCode = "forbidden"
	ReasonUnavailable       ReasonCode = "unavailable"
	ReasonInvalidCredential ReasonCode = "invalid_credential"
	ReasonExpiredCredential ReasonCode = "expired_credential"
)

var reasonDescriptions = map[ReasonCode]string{
	ReasonInvalidFrame:      "frame is not a valid chat message",
	ReasonEmptyContent:      "message content must not be empty",
	ReasonContentTooLong:    "message content exceeds the maximum length",
	ReasonPersistenceFailed: "message could not be saved, it was not delivered",
	ReasonMessageNotFound:   "message not found",
	ReasonForbidden:         "you can only delete your own messages",
	ReasonUnavailable:       "chat is temporarily unavailable",
	ReasonInvalidCredential: "invalid credential",
	ReasonExpiredCredential: "credential has expired",
}

// ReasonFor maps an error returned by the dispatcher or the identity
// verifier to its reason code.
func ReasonFor(err error) ReasonCode {
	switch {
	case errors.Is(err, ErrInvalidFrame):
		return ReasonInvalidFrame
	case errors.Is(err, ErrEmptyContent):
		return ReasonEmptyContent
	case errors.Is(err, ErrContentTooLong):
		return ReasonContentTooLong
	case errors.Is(err, ErrPersistence):
		return ReasonPersistenceFailed
	case errors.Is(err, ErrMessageNotFound):
		return ReasonMessageNotFound
	case errors.Is(err, ErrForbidden):
		return ReasonForbidden
	case errors.Is(err, auth.ErrExpiredCredential):
		return ReasonExpiredCredential
	case errors.Is(err, auth.ErrInvalidCredential):
		return ReasonInvalidCredential
	default:
		return ReasonUnavailable
	}
}

func (r ReasonCode) Description() string {
	if d, ok := reasonDescriptions[r]; ok {
		return d
	}
	return string(r)
}
