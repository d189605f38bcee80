package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error so call sites can decide retry/no-retry and
// the HTTP layer can map it to a status without string matching.
type Kind string

const (
	KindValidation   Kind = "VALIDATION"
	KindUnauthorized Kind = "UNAUTHORIZED"
	KindNotFound     Kind = "NOT_FOUND"
	// KindConflictInProgress means the operation is already underway
	// (e.g. a refund claim holding the processing lock); clients should
	// poll. KindConflictCompleted means it already finished; clients
	// should stop.
	KindConflictInProgress Kind = "CONFLICT_IN_PROGRESS"
	KindConflictCompleted  Kind = "CONFLICT_COMPLETED"
	// KindExternal marks verifier/treasury failures: always retryable,
	// never silently folded into success or failure.
	KindExternal Kind = "EXTERNAL_SERVICE"
	// KindTimeout marks confirmation polling giving up; distinct from
	// failure so the caller knows to re-initiate.
	KindTimeout  Kind = "TIMEOUT"
	KindInternal Kind = "INTERNAL"
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(err error, kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the Kind from err, defaulting to internal.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// HTTPStatus maps an error kind onto the wire status.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflictInProgress, KindConflictCompleted:
		return http.StatusConflict
	case KindExternal:
		return http.StatusBadGateway
	case KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
