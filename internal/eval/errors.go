package eval

import (
	"errors"
	"fmt"
	"strings"
)

// #region kind

// Kind classifies an evaluation failure.
type Kind string

const (
	KindNotFound               Kind = "not_found"
	KindTimeout                Kind = "timeout"
	KindRateLimited            Kind = "rate_limited"
	KindMalformedResponse      Kind = "malformed_response"
	KindModelUnavailable       Kind = "model_unavailable"
	KindStorageFault           Kind = "storage_fault"
	KindPartialCriteriaMissing Kind = "partial_criteria_missing"
	KindCanceled               Kind = "canceled"
)

// Transient reports whether a failure of this kind may succeed on retry.
func (k Kind) Transient() bool {
	return k == KindTimeout || k == KindRateLimited
}

// #endregion kind

// #region sentinels

// Sentinels for errors.Is matching against an *Error of the same kind.
var (
	ErrNotFound               = &Error{Kind: KindNotFound}
	ErrTimeout                = &Error{Kind: KindTimeout}
	ErrRateLimited            = &Error{Kind: KindRateLimited}
	ErrMalformedResponse      = &Error{Kind: KindMalformedResponse}
	ErrModelUnavailable       = &Error{Kind: KindModelUnavailable}
	ErrStorageFault           = &Error{Kind: KindStorageFault}
	ErrPartialCriteriaMissing = &Error{Kind: KindPartialCriteriaMissing}
	ErrCanceled               = &Error{Kind: KindCanceled}
)

// #endregion sentinels

// #region error

// Error is a classified evaluation failure. Criteria lists the criterion
// ids involved, e.g. the ones a model response left out.
type Error struct {
	Kind     Kind
	Reason   string
	Criteria []string
	Err      error
}

// Errorf builds an *Error with a formatted reason.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// Wrap classifies err under kind. The reason defaults to err's message.
func Wrap(kind Kind, err error, reason string) *Error {
	if reason == "" && err != nil {
		reason = err.Error()
	}
	return &Error{Kind: kind, Reason: reason, Err: err}
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	if len(e.Criteria) > 0 {
		b.WriteString(" [")
		b.WriteString(strings.Join(e.Criteria, ", "))
		b.WriteString("]")
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error with the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// #endregion error

// #region helpers

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// AsError returns err as an *Error, classifying unknown errors under fallback.
func AsError(err error, fallback Kind) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(fallback, err, "")
}

// #endregion helpers
