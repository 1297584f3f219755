package model

import (
	"errors"
	"fmt"
)

var ErrorInvalidUsernameOrPassword = errors.New("invalid username or password")
var ErrorUserNotFound = errors.New("user not found")
var ErrorItemNotFound = errors.New("item not found")
var ErrorHandleTaken = errors.New("handle already registered")

type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindAuth       ErrorKind = "auth"
	KindToken      ErrorKind = "token"
	KindNotFound   ErrorKind = "not_found"
	KindConflict   ErrorKind = "conflict"
	KindStore      ErrorKind = "store"
	KindInternal   ErrorKind = "internal"
)

// Error classifies a failure so the transport can tell a bad request from a
// backend outage.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func ValidationError(message string, err error) *Error {
	return NewError(KindValidation, message, err)
}

func AuthError(err error) *Error {
	return NewError(KindAuth, "", err)
}

func TokenError(err error) *Error {
	return NewError(KindToken, "", err)
}

func NotFoundError(err error) *Error {
	return NewError(KindNotFound, "", err)
}

func ConflictError(err error) *Error {
	return NewError(KindConflict, "", err)
}

// StoreError keeps the backend's own text; store failures are reported to the
// caller verbatim.
func StoreError(err error) *Error {
	return NewError(KindStore, "", err)
}

// KindOf reports the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
