package services

import (
	"errors"
	"net/http"
	"strings"

	"github.com/featureboard/backend/internal/policy"
	"github.com/featureboard/backend/pkg/logger"
	"gorm.io/gorm"
)

type ErrorKind int

const (
	KindValidation ErrorKind = iota + 1
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindDuplicateVote
	KindPersistence
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not found"
	case KindDuplicateVote:
		return "duplicate vote"
	case KindPersistence:
		return "persistence"
	}
	return "unknown"
}

// Error is the error type returned by every service operation.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// Sentinels for errors.Is. Any *Error of the same kind matches.
var (
	ErrValidation    = &Error{Kind: KindValidation}
	ErrUnauthorized  = &Error{Kind: KindUnauthorized}
	ErrForbidden     = &Error{Kind: KindForbidden}
	ErrNotFound      = &Error{Kind: KindNotFound}
	ErrDuplicateVote = &Error{Kind: KindDuplicateVote}
	ErrPersistence   = &Error{Kind: KindPersistence}
)

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// HTTPStatus maps the error kind onto a response status code.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation, KindDuplicateVote:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func validationError(msg string) error {
	return &Error{Kind: KindValidation, Message: msg}
}

func notFoundError(msg string) error {
	return &Error{Kind: KindNotFound, Message: msg}
}

// persistenceError wraps a storage failure and logs it. Storage errors are not retried.
func persistenceError(op string, err error) error {
	logger.Error().Err(err).Str("op", op).Msg("persistence failure")
	return &Error{Kind: KindPersistence, Message: op, Err: err}
}

// authorizationError converts a policy decision into the service taxonomy.
func authorizationError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, policy.ErrUnauthorized):
		return &Error{Kind: KindUnauthorized, Message: "authentication required", Err: err}
	case errors.Is(err, policy.ErrForbidden):
		return &Error{Kind: KindForbidden, Message: "admin privileges required", Err: err}
	}
	return err
}

// isDuplicateKey reports unique constraint violations. TranslateError covers
// the supported dialects; the message match catches drivers that bypass it.
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "duplicate entry")
}
