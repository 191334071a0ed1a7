package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error by how callers should react to it.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuth
	KindBadRequest
	KindRateLimited
	KindUpstream
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindBadRequest:
		return "bad_request"
	case KindRateLimited:
		return "rate_limited"
	case KindUpstream:
		return "upstream"
	default:
		return "internal"
	}
}

// Error carries an explicit Kind alongside the failing operation.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// E builds a typed error.
func E(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds a typed error from a format string.
func Errorf(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the outermost typed error in err's chain,
// or KindInternal when there is none.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// KindFromStatus maps an upstream HTTP status code to an error kind.
func KindFromStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuth
	case status == http.StatusBadRequest:
		return KindBadRequest
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	default:
		return KindUpstream
	}
}

// StatusError builds a typed error for a failed upstream HTTP call.
func StatusError(op string, status int, body string) error {
	if body == "" {
		return Errorf(KindFromStatus(status), op, "status %d", status)
	}
	return Errorf(KindFromStatus(status), op, "status %d: %s", status, body)
}
