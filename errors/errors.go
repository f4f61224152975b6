package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

var (
	ErrNotMember       = fmt.Errorf("user is not a member of the chat")
	ErrForbidden       = fmt.Errorf("operation forbidden")
	ErrEmptyContent    = fmt.Errorf("message content is empty")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrNotFound        = fmt.Errorf("not found")
	ErrUnauthenticated = fmt.Errorf("unauthenticated")
	ErrConnectionGone  = fmt.Errorf("connection is closed")
	ErrWorkerPanic     = fmt.Errorf("worker panic")
	ErrEmptyWords      = fmt.Errorf("no words have been found")
)

type kind struct {
	err    error
	name   string
	status int
}

// Order matters: the first sentinel found in the chain wins.
var kinds = []kind{
	{ErrNotMember, "NotMember", http.StatusForbidden},
	{ErrForbidden, "Forbidden", http.StatusForbidden},
	{ErrEmptyContent, "EmptyContent", http.StatusBadRequest},
	{ErrInvalidArgument, "InvalidArgument", http.StatusBadRequest},
	{ErrNotFound, "NotFound", http.StatusNotFound},
	{ErrUnauthenticated, "Unauthenticated", http.StatusUnauthorized},
}

// Kind returns the taxonomy name of err, or "Internal" when err does not wrap a known sentinel.
func Kind(err error) string {
	for _, k := range kinds {
		if stderrors.Is(err, k.err) {
			return k.name
		}
	}
	return "Internal"
}

// HTTPStatus maps a domain error onto the status code returned by the REST layer.
func HTTPStatus(err error) int {
	for _, k := range kinds {
		if stderrors.Is(err, k.err) {
			return k.status
		}
	}
	return http.StatusInternalServerError
}

// FromKind is the inverse of Kind, for clients decoding an error payload.
// It returns nil for "Internal" and unknown kinds.
func FromKind(name string) error {
	for _, k := range kinds {
		if k.name == name {
			return k.err
		}
	}
	return nil
}
