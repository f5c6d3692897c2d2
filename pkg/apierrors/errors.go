// Package apierrors defines the upload gateway's error taxonomy and its
// mapping onto HTTP status codes.
package apierrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an Error so handlers can map it onto the right HTTP
// status and response shape without inspecting message strings.
type Kind int

const (
	// KindInternal is the catch-all for unmapped failures.
	KindInternal Kind = iota
	// KindBadRequest covers missing/invalid request shape: a missing
	// header, an unknown job_type, a job id no status record matches.
	KindBadRequest
	// KindNotFound covers a project that does not exist.
	KindNotFound
	// KindConflictFile is a pre-upload filename collision.
	KindConflictFile
	// KindConflictFolder is a pre-upload folder-name collision.
	KindConflictFolder
	// KindResourceAlreadyInUsed is lock contention.
	KindResourceAlreadyInUsed
	// KindTokenError is an object-store credential exchange failure.
	KindTokenError
	// KindHeaderMissing is raised by the header-enforcement middleware.
	KindHeaderMissing
)

// Error is the single error type the upload core returns; every exported
// operation either returns one of these or a plain Go error that handlers
// fold into KindInternal.
type Error struct {
	Kind    Kind
	Message string
	// Result carries a structured payload for the response envelope, e.g.
	// the conflict list on KindConflictFile/KindConflictFolder.
	Result any
	cause  error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// HTTPStatus returns the status code this Kind maps onto.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindBadRequest, KindTokenError, KindHeaderMissing:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflictFile, KindConflictFolder, KindResourceAlreadyInUsed:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// New creates an *Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an *Error of the given kind wrapping cause, preserving it for
// errors.Unwrap/errors.Is/errors.As.
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// WithResult attaches a structured result payload and returns e for chaining.
func (e *Error) WithResult(result any) *Error {
	e.Result = result
	return e
}

// BadRequest builds a KindBadRequest error.
func BadRequest(format string, args ...any) *Error { return New(KindBadRequest, format, args...) }

// NotFound builds a KindNotFound error.
func NotFound(format string, args ...any) *Error { return New(KindNotFound, format, args...) }

// ResourceAlreadyInUsed builds a KindResourceAlreadyInUsed error.
func ResourceAlreadyInUsed(format string, args ...any) *Error {
	return New(KindResourceAlreadyInUsed, format, args...)
}

// HeaderMissing builds a KindHeaderMissing error: "{header} is required".
func HeaderMissing(header string) *Error {
	return New(KindHeaderMissing, "%s is required", header)
}

// TokenError builds a KindTokenError error.
func TokenError(format string, args ...any) *Error { return New(KindTokenError, format, args...) }

// Internal wraps any error as KindInternal, prefixing the message with the
// API namespace it surfaced in.
func Internal(namespace string, err error) *Error {
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return Wrap(KindInternal, err, fmt.Sprintf("[Internal] %s %s", namespace, err.Error()))
}

// As is a convenience wrapper over errors.As for *Error.
func As(err error) (*Error, bool) {
	var ae *Error
	ok := errors.As(err, &ae)
	return ae, ok
}

// Canned error messages for name collisions and missing jobs; clients
// match on these strings, so they are fixed.
const (
	MsgInvalidFilename   = "[Invalid File] File Name has already taken by other resources(file/folder)"
	MsgInvalidFoldername = "[Invalid Folder] Folder Name has already taken by other resources(file/folder)"
	MsgJobNotFound       = "[Invalid Job ID] Not Found"
)
