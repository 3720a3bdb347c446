package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies every failure the core can return.
type Kind int

const (
	KindValidation Kind = iota // malformed or out-of-range input
	KindNotFound               // referenced id absent
	KindConflict               // business-rule violation
	KindInternal               // infrastructure failure
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Validation(format string, args ...interface{}) error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...interface{}) error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...interface{}) error {
	return &Error{Kind: KindConflict, Msg: fmt.Sprintf(format, args...)}
}

// Wrap marks an infrastructure failure with context. If err already carries
// a kind, that kind is preserved through Unwrap for the predicates below.
func Wrap(err error, format string, args ...interface{}) error {
	if e := (*Error)(nil); errors.As(err, &e) {
		return &Error{Kind: e.Kind, Msg: fmt.Sprintf(format, args...), Err: err}
	}
	return &Error{Kind: KindInternal, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of err if it carries one.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

func IsValidation(err error) bool { k, ok := KindOf(err); return ok && k == KindValidation }
func IsNotFound(err error) bool   { k, ok := KindOf(err); return ok && k == KindNotFound }
func IsConflict(err error) bool   { k, ok := KindOf(err); return ok && k == KindConflict }

// HTTPStatus maps a classified error to its HTTP equivalent. Unclassified
// errors are treated as internal.
func HTTPStatus(err error) int {
	switch k, ok := KindOf(err); {
	case !ok, k == KindInternal:
		return http.StatusInternalServerError
	case k == KindNotFound:
		return http.StatusNotFound
	case k == KindConflict:
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}
