package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode classifies a vault failure.
type ErrorCode string

const (
	ErrUnsupportedType    ErrorCode = "UNSUPPORTED_TYPE"    // media extension not in any allow-list
	ErrInvalidDataURL     ErrorCode = "INVALID_DATA_URL"    // data URL not a supported base64 image
	ErrMalformed          ErrorCode = "MALFORMED"           // persisted JSON could not be decoded
	ErrUnsupportedVersion ErrorCode = "UNSUPPORTED_VERSION" // persisted schema newer than this binary
	ErrNotFound           ErrorCode = "NOT_FOUND"
	ErrCanceled           ErrorCode = "CANCELED" // file chooser dismissed
	ErrIO                 ErrorCode = "IO"
	ErrLimitExceeded      ErrorCode = "LIMIT_EXCEEDED" // bounded probe exhausted
	ErrInternal           ErrorCode = "INTERNAL"
)

// DeckError is a classified failure with an optional underlying cause.
type DeckError struct {
	Code    ErrorCode
	Message string
	Details map[string]any
	Err     error
}

// Error implements the error interface.
func (e *DeckError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DeckError) Unwrap() error { return e.Err }

// NewUnsupportedType reports a file whose extension is not importable.
func NewUnsupportedType(ext string) *DeckError {
	return &DeckError{
		Code:    ErrUnsupportedType,
		Message: "Unsupported file type",
		Details: map[string]any{"extension": ext},
	}
}

// NewInvalidDataURL reports a data URL that cannot be imported.
func NewInvalidDataURL(reason string) *DeckError {
	return &DeckError{
		Code:    ErrInvalidDataURL,
		Message: fmt.Sprintf("invalid data URL: %s", reason),
	}
}

// NewMalformed reports a persisted file that could not be decoded.
func NewMalformed(path string, err error) *DeckError {
	return &DeckError{
		Code:    ErrMalformed,
		Message: fmt.Sprintf("malformed file: %s", path),
		Details: map[string]any{"path": path},
		Err:     err,
	}
}

// NewUnsupportedVersion reports a schema version this binary cannot read.
func NewUnsupportedVersion(kind string, got, max int) *DeckError {
	return &DeckError{
		Code:    ErrUnsupportedVersion,
		Message: fmt.Sprintf("%s version %d is newer than supported version %d", kind, got, max),
		Details: map[string]any{"kind": kind, "version": got, "max_version": max},
	}
}

// NewNotFound reports a missing item.
func NewNotFound(identifier string) *DeckError {
	return &DeckError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewCanceled reports a dismissed file chooser.
func NewCanceled() *DeckError {
	return &DeckError{
		Code:    ErrCanceled,
		Message: "canceled by user",
	}
}

// NewIO wraps a filesystem failure.
func NewIO(op string, err error) *DeckError {
	return &DeckError{
		Code:    ErrIO,
		Message: op,
		Err:     err,
	}
}

// NewLimitExceeded reports an exhausted bounded search.
func NewLimitExceeded(what string, limit int) *DeckError {
	return &DeckError{
		Code:    ErrLimitExceeded,
		Message: fmt.Sprintf("%s: exceeded limit of %d", what, limit),
		Details: map[string]any{"limit": limit},
	}
}

// NewInternal wraps an unexpected failure.
func NewInternal(err error) *DeckError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &DeckError{
		Code:    ErrInternal,
		Message: msg,
		Err:     err,
	}
}

// Is checks if err is (or wraps) a DeckError with the given code.
func Is(err error, code ErrorCode) bool {
	var dErr *DeckError
	if stderrors.As(err, &dErr) {
		return dErr.Code == code
	}
	return false
}

// Message returns the user-facing message of err. For a DeckError this is
// its Message without the code prefix.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var dErr *DeckError
	if stderrors.As(err, &dErr) {
		return dErr.Message
	}
	return err.Error()
}
