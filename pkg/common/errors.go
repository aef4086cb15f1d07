package common

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrUnauthenticated  = errors.New("unauthenticated")
	ErrValidation       = errors.New("validation failed")
	ErrConflict         = errors.New("conflict")
	ErrAlreadyFinalized = errors.New("already finalized")
	ErrForbidden        = errors.New("forbidden")
	ErrNotFound         = errors.New("not found")
	ErrGateway          = errors.New("gateway failure")
)

// Kind is the user-facing category of an error.
type Kind int

const (
	KindUnknown Kind = iota
	KindUnauthenticated
	KindValidation
	KindConflict
	KindAlreadyFinalized
	KindForbidden
	KindNotFound
	KindGateway
)

func (k Kind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindAlreadyFinalized:
		return "already_finalized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindGateway:
		return "gateway"
	}
	return "unknown"
}

// ValidationError is returned before any gateway call when input is unacceptable.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

type gatewayError struct {
	op  string
	err error
}

func (e *gatewayError) Error() string {
	return fmt.Sprintf("%s: %v", e.op, e.err)
}

func (e *gatewayError) Unwrap() error { return e.err }

func (e *gatewayError) Is(target error) bool {
	return target == ErrGateway
}

// GatewayError marks err as a persistence failure of op. The cause stays reachable
// through errors.Is/As.
func GatewayError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &gatewayError{op: op, err: err}
}

func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrUnauthenticated):
		return KindUnauthenticated
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrAlreadyFinalized):
		return KindAlreadyFinalized
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrGateway):
		return KindGateway
	}
	return KindUnknown
}

// UserMessage is the text shown in the error banner.
func UserMessage(err error) string {
	switch KindOf(err) {
	case KindUnauthenticated:
		return "please sign in to continue"
	case KindValidation:
		var ve *ValidationError
		if errors.As(err, &ve) {
			return ve.Error()
		}
		return "invalid input"
	case KindConflict:
		return "this action was already applied"
	case KindAlreadyFinalized:
		return "this submission has already been finalized"
	case KindForbidden:
		return "you are not allowed to do that"
	case KindNotFound:
		return "not found"
	}
	return "something went wrong, please try again"
}

func StatusFor(err error) int {
	switch KindOf(err) {
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict, KindAlreadyFinalized:
		return http.StatusConflict
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindGateway:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
