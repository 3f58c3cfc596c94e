package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

var (
	ErrInvalidIdentity        = fmt.Errorf("invalid identity")
	ErrValidation             = fmt.Errorf("validation error")
	ErrPersistence            = fmt.Errorf("persistence error")
	ErrConversationNotStarted = fmt.Errorf("conversation not started")
	ErrConnectionGone         = fmt.Errorf("connection gone")
	ErrForbidden              = fmt.Errorf("forbidden")
	ErrUnknownSender          = fmt.Errorf("unknown sender")
	ErrWorkerPanic            = fmt.Errorf("worker panic")
)

// Is lets callers importing this package as "errors" keep using errors.Is.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// Code maps an error to the code carried by transport error frames.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case Is(err, ErrInvalidIdentity):
		return "invalid_identity"
	case Is(err, ErrValidation), Is(err, ErrUnknownSender):
		return "validation_error"
	case Is(err, ErrPersistence):
		return "persistence_error"
	case Is(err, ErrForbidden):
		return "forbidden"
	case Is(err, ErrConversationNotStarted):
		return "conversation_not_started"
	default:
		return "internal_error"
	}
}

func HTTPStatus(err error) int {
	switch {
	case Is(err, ErrInvalidIdentity), Is(err, ErrValidation), Is(err, ErrUnknownSender):
		return http.StatusBadRequest
	case Is(err, ErrForbidden):
		return http.StatusForbidden
	case Is(err, ErrConversationNotStarted):
		return http.StatusNotFound
	case Is(err, ErrPersistence):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
