package service

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorKind string

const (
	KindMissingField         ErrorKind = "MissingField"
	KindNotFound             ErrorKind = "NotFound"
	KindUserNotFound         ErrorKind = "UserNotFound"
	KindInvalidCredentials   ErrorKind = "InvalidCredentials"
	KindMissingToken         ErrorKind = "MissingToken"
	KindInvalidToken         ErrorKind = "InvalidToken"
	KindTokenMismatch        ErrorKind = "TokenMismatch"
	KindConflict             ErrorKind = "Conflict"
	KindUpstreamMediaFailure ErrorKind = "UpstreamMediaFailure"
	KindPersistenceFailure   ErrorKind = "PersistenceFailure"
)

var kindStatus = map[ErrorKind]int{
	KindMissingField:         http.StatusBadRequest,
	KindNotFound:             http.StatusNotFound,
	KindUserNotFound:         http.StatusUnauthorized,
	KindInvalidCredentials:   http.StatusUnauthorized,
	KindMissingToken:         http.StatusUnauthorized,
	KindInvalidToken:         http.StatusUnauthorized,
	KindTokenMismatch:        http.StatusUnauthorized,
	KindConflict:             http.StatusConflict,
	KindUpstreamMediaFailure: http.StatusInternalServerError,
	KindPersistenceFailure:   http.StatusInternalServerError,
}

// Error is what every AuthService operation fails with.
type Error struct {
	Kind    ErrorKind
	Status  int
	Message string
	Err     error
}

func newError(kind ErrorKind, message string, cause error) *Error {
	status, ok := kindStatus[kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	return &Error{Kind: kind, Status: status, Message: message, Err: cause}
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

// Is matches another *Error by kind, so errors.Is(err, ErrTokenMismatch) works.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return other.Kind == e.Kind
	}
	return false
}

// Kind sentinels for errors.Is.
var (
	ErrMissingField         = &Error{Kind: KindMissingField}
	ErrNotFound             = &Error{Kind: KindNotFound}
	ErrUserNotFound         = &Error{Kind: KindUserNotFound}
	ErrInvalidCredentials   = &Error{Kind: KindInvalidCredentials}
	ErrMissingToken         = &Error{Kind: KindMissingToken}
	ErrInvalidToken         = &Error{Kind: KindInvalidToken}
	ErrTokenMismatch        = &Error{Kind: KindTokenMismatch}
	ErrConflict             = &Error{Kind: KindConflict}
	ErrUpstreamMediaFailure = &Error{Kind: KindUpstreamMediaFailure}
	ErrPersistenceFailure   = &Error{Kind: KindPersistenceFailure}
)

// StatusOf returns the HTTP status for err, 500 for anything outside the taxonomy.
func StatusOf(err error) int {
	var svcErr *Error
	if errors.As(err, &svcErr) && svcErr.Status != 0 {
		return svcErr.Status
	}
	return http.StatusInternalServerError
}
