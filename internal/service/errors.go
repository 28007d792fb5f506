package service

import (
	"errors"
	"net/http"
)

// ErrorKind classifies a PublicError.
type ErrorKind int

const (
	KindInvalid ErrorKind = iota + 1
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	}
	return "unknown"
}

// HTTPStatus maps the kind onto a response status code.
func (k ErrorKind) HTTPStatus() int {
	switch k {
	case KindInvalid:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// PublicError carries a message that is safe to show to the caller verbatim.
type PublicError struct {
	Kind    ErrorKind
	Message string
}

func (e *PublicError) Error() string { return e.Message }

func publicf(kind ErrorKind, msg string) *PublicError {
	return &PublicError{Kind: kind, Message: msg}
}

// InternalError wraps a failure whose details must not leave the process.
// Callers log it and answer with InternalMessage.
type InternalError struct {
	Op  string
	Err error
}

func (e *InternalError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *InternalError) Unwrap() error { return e.Err }

// InternalMessage is the only text a caller ever sees for an InternalError.
const InternalMessage = "internal error occurred"

func internalErr(op string, err error) error {
	var pub *PublicError
	if errors.As(err, &pub) {
		return pub
	}
	return &InternalError{Op: op, Err: err}
}

// Messages shared between the service and the HTTP layer.
const (
	msgLoginFailed       = "username or password incorrect"
	msgPrivilegeRequired = "insufficient privilege: super_admin required"
	msgAlreadyFrozen     = "administrator already frozen"
	msgNotActive         = "administrator is not active"
	msgAdminNotFound     = "administrator not found"
	msgSelfFreeze        = "cannot freeze own account"
	msgSelfDelete        = "cannot delete own account"
	msgAlreadyBootstrap  = "an administrator already exists; use the API to create more"
)
