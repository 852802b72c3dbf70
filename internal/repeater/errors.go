package repeater

import (
	"errors"
	"fmt"

	"github.com/iamhimansu/template-repeater/internal/templating"
)

// ErrorCode classifies every failure the repeater reports.
type ErrorCode string

const (
	CodeEmptyTemplate        ErrorCode = "empty-template"
	CodeEmptyAttribute       ErrorCode = "empty-attribute"
	CodeMetadataNodeNotFound ErrorCode = "metadata-node-not-found"
	CodeMetadataMissing      ErrorCode = "metadata-missing"
	CodePropertyNotFound     ErrorCode = "property-not-found"
	CodeMissingPageElements  ErrorCode = "missing-page-elements"
	CodeTemplating           ErrorCode = "templating-error"
	CodeInvalidOption        ErrorCode = "invalid-option"
	CodeAlreadyInitialized   ErrorCode = "already-initialized"
	CodeNotInitialized       ErrorCode = "not-initialized"
)

// Error is a classified repeater failure. Two errors match under errors.Is when
// their codes are equal, so the sentinels below can be used as targets.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return other.Code == e.Code
	}
	return false
}

var (
	ErrEmptyTemplate        = &Error{Code: CodeEmptyTemplate}
	ErrEmptyAttribute       = &Error{Code: CodeEmptyAttribute}
	ErrMetadataNodeNotFound = &Error{Code: CodeMetadataNodeNotFound}
	ErrMetadataMissing      = &Error{Code: CodeMetadataMissing}
	ErrPropertyNotFound     = &Error{Code: CodePropertyNotFound}
	ErrMissingPageElements  = &Error{Code: CodeMissingPageElements}
	ErrInvalidOption        = &Error{Code: CodeInvalidOption}
	ErrAlreadyInitialized   = &Error{Code: CodeAlreadyInitialized}
	ErrNotInitialized       = &Error{Code: CodeNotInitialized}

	// ErrTemplating matches the *templating.Error values Push returns unchanged.
	ErrTemplating = templating.ErrTemplating
)

func newError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func wrapError(code ErrorCode, err error, message string) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// CodeOf returns the code carried by err, or "" for unclassified errors.
func CodeOf(err error) ErrorCode {
	var rerr *Error
	if errors.As(err, &rerr) {
		return rerr.Code
	}
	if errors.Is(err, templating.ErrTemplating) {
		return CodeTemplating
	}
	return ""
}
