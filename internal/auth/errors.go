package auth

import (
	"errors"
	"fmt"
)

// Kind tags every failure the auth and ownership layers can report.
// Callers at the HTTP boundary switch on Kind, never on message text.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindTokenMalformed
	KindTokenSignatureInvalid
	KindTokenExpired
	KindUserNotFound
	KindUnauthenticated
	KindAccessDenied
	KindResourceNotFound
	KindInvalidInput
	KindConflict
	KindInvalidCredentials
)

func (k Kind) String() string {
	switch k {
	case KindTokenMalformed:
		return "token_malformed"
	case KindTokenSignatureInvalid:
		return "token_signature_invalid"
	case KindTokenExpired:
		return "token_expired"
	case KindUserNotFound:
		return "user_not_found"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindAccessDenied:
		return "access_denied"
	case KindResourceNotFound:
		return "resource_not_found"
	case KindInvalidInput:
		return "invalid_input"
	case KindConflict:
		return "conflict"
	case KindInvalidCredentials:
		return "invalid_credentials"
	default:
		return "unknown"
	}
}

// Error is a tagged error. Two Errors match under errors.Is when their
// kinds are equal, so detailed errors built with Errorf still match the
// package sentinels.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrTokenMalformed        = &Error{Kind: KindTokenMalformed, Msg: "token malformed"}
	ErrTokenSignatureInvalid = &Error{Kind: KindTokenSignatureInvalid, Msg: "token signature invalid"}
	ErrTokenExpired          = &Error{Kind: KindTokenExpired, Msg: "token expired"}
	ErrUserNotFound          = &Error{Kind: KindUserNotFound, Msg: "user not found"}
	ErrUnauthenticated       = &Error{Kind: KindUnauthenticated, Msg: "authentication required"}
	ErrAccessDenied          = &Error{Kind: KindAccessDenied, Msg: "access denied"}
	ErrResourceNotFound      = &Error{Kind: KindResourceNotFound, Msg: "resource not found"}
	ErrInvalidInput          = &Error{Kind: KindInvalidInput, Msg: "invalid input"}
	ErrConflict              = &Error{Kind: KindConflict, Msg: "conflict"}
	ErrInvalidCredentials    = &Error{Kind: KindInvalidCredentials, Msg: "invalid username or password"}
)

// Errorf builds a tagged error with a caller-facing message.
func Errorf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// KindOf returns the tag of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsTokenError reports whether err is one of the codec failures.
func IsTokenError(err error) bool {
	switch KindOf(err) {
	case KindTokenMalformed, KindTokenSignatureInvalid, KindTokenExpired:
		return true
	}
	return false
}
