package core

import (
	"errors"
	"fmt"
)

// Kind classifies every error the service layer can hand to the dispatcher.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindAuthentication
	KindInvalidToken
	KindUserNotFound
	KindUsernameAlreadyExists
	KindInsufficientBalance
	KindParse
	KindPersistence
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindInvalidToken:
		return "invalid_token"
	case KindUserNotFound:
		return "user_not_found"
	case KindUsernameAlreadyExists:
		return "username_already_exists"
	case KindInsufficientBalance:
		return "insufficient_balance"
	case KindParse:
		return "parse"
	case KindPersistence:
		return "persistence"
	default:
		return "unknown"
	}
}

// Error carries a kind, a client-safe message and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports a match for any *Error of the same kind, so sentinels below
// work with errors.Is regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrValidation            = &Error{Kind: KindValidation, Message: "validation failed"}
	ErrAuthentication        = &Error{Kind: KindAuthentication, Message: "authentication failed"}
	ErrInvalidToken          = &Error{Kind: KindInvalidToken, Message: "Invalid token"}
	ErrUserNotFound          = &Error{Kind: KindUserNotFound, Message: "user not found"}
	ErrUsernameAlreadyExists = &Error{Kind: KindUsernameAlreadyExists, Message: "username already exists"}
	ErrInsufficientBalance   = &Error{Kind: KindInsufficientBalance, Message: "insufficient balance"}
	ErrParse                 = &Error{Kind: KindParse, Message: "malformed request"}
	ErrPersistence           = &Error{Kind: KindPersistence, Message: "persistence failure"}
)

// E builds an error of the given kind with a client-facing message.
func E(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an error of the given kind around a cause. The cause is kept
// for logs and never rendered to clients.
func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// MessageOf returns the client-facing message of the first *Error in err's chain.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return ""
}
