package docstore

import (
	"errors"
	"fmt"
)

// Kind classifies a failure independently of its human readable message.
type Kind string

const (
	KindNotFound     Kind = "not_found"
	KindConflict     Kind = "conflict"
	KindUnauthorized Kind = "unauthorized"
	KindUpstream     Kind = "upstream"
	KindClient       Kind = "client"
	KindConfig       Kind = "config"
)

// ErrMissingToken is returned by operations that need the bearer credential
// when none was configured or supplied.
var ErrMissingToken = errors.New("missing GitHub token")

// Error is the failure type returned by stores.
type Error struct {
	Kind    Kind
	Op      string
	Path    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ConflictError reports a write refused because the document moved.
type ConflictError struct {
	Path        string
	ExpectedSHA string
	CurrentSHA  string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s was modified remotely (expected %s, current %s)", e.Path, short(e.ExpectedSHA), short(e.CurrentSHA))
}

func short(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}

// NewError builds an *Error. The message of err is kept verbatim when message is empty.
func NewError(kind Kind, op, path, message string, err error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Message: message, Err: err}
}

// ClientError reports an invalid request.
func ClientError(op, message string) *Error {
	return &Error{Kind: KindClient, Op: op, Message: message}
}

// NotFound reports a missing document.
func NotFound(op, path string) *Error {
	return &Error{Kind: KindNotFound, Op: op, Path: path, Message: fmt.Sprintf("%s not found", path)}
}

// Upstream wraps a transport failure, keeping its message.
func Upstream(op, path string, err error) *Error {
	return &Error{Kind: KindUpstream, Op: op, Path: path, Err: err}
}

// Conflict wraps a ConflictError.
func Conflict(op, path, expected, current string) *Error {
	return &Error{
		Kind: KindConflict,
		Op:   op,
		Path: path,
		Err:  &ConflictError{Path: path, ExpectedSHA: expected, CurrentSHA: current},
	}
}

// KindOf returns the kind attached to err. Errors that carry no kind are upstream failures.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var storeErr *Error
	if errors.As(err, &storeErr) {
		return storeErr.Kind
	}
	var conflict *ConflictError
	if errors.As(err, &conflict) {
		return KindConflict
	}
	if errors.Is(err, ErrMissingToken) {
		return KindConfig
	}
	return KindUpstream
}

func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

func IsConflict(err error) bool { return KindOf(err) == KindConflict }

// Retryable reports whether repeating the same call may succeed.
// Conflicts need a reload first, so they are not retryable as-is.
func Retryable(kind Kind) bool {
	return kind == KindUpstream
}
