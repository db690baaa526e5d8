package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind classifies a task-level failure
type Kind string

const (
	KindPoolExhausted Kind = "pool_exhausted"
	KindScrapeFailed  Kind = "scrape_failed"
	KindStoreFailure  Kind = "store_failure"
	KindNotifyFailure Kind = "notify_failure"
	KindUnknown       Kind = "unknown"
)

// Reason narrows down why a scrape failed
type Reason string

const (
	ReasonNone        Reason = ""
	ReasonLoginFailed Reason = "login_failed"
	ReasonNotFound    Reason = "not_found"
	ReasonPrivate     Reason = "private"
	ReasonParseFailed Reason = "parse_failed"
	ReasonTimeout     Reason = "timeout"
	ReasonRateLimited Reason = "rate_limited"
	ReasonNetwork     Reason = "network"
	ReasonServerError Reason = "server_error"
	ReasonUnsupported Reason = "unsupported"
)

// Error is the typed error carried through the monitoring engine
type Error struct {
	Kind    Kind
	Reason  Reason
	Message string
	Code    int
	Err     error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Reason != ReasonNone {
		msg += "/" + string(e.Reason)
	}
	if e.Code != 0 {
		msg = fmt.Sprintf("%s (code %d)", msg, e.Code)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error of the given kind
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an error of the given kind around a cause
func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// ScrapeFailed creates a scrape failure with a reason
func ScrapeFailed(reason Reason, message string, err error) *Error {
	return &Error{Kind: KindScrapeFailed, Reason: reason, Message: message, Err: err}
}

// ScrapeFailedWithCode is ScrapeFailed carrying an upstream status code
func ScrapeFailedWithCode(reason Reason, code int, message string) *Error {
	return &Error{Kind: KindScrapeFailed, Reason: reason, Code: code, Message: message}
}

// StoreFailure wraps a persistence error for the named operation
func StoreFailure(op string, err error) *Error {
	return &Error{Kind: KindStoreFailure, Message: op, Err: err}
}

// PoolExhausted reports that no account could be leased for a platform
func PoolExhausted(platform string, err error) *Error {
	return &Error{Kind: KindPoolExhausted, Message: "no account available for " + platform, Err: err}
}

// NotifyFailure wraps a delivery error
func NotifyFailure(err error) *Error {
	return &Error{Kind: KindNotifyFailure, Err: err}
}

// As is a thin alias over the standard library to keep call sites on one import
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// Is is a thin alias over the standard library
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// KindOf returns the kind of err, or KindUnknown
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// ReasonOf returns the scrape reason of err, or ReasonNone
func ReasonOf(err error) Reason {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Reason
	}
	return ReasonNone
}

// IsRetryable reports whether err is a transient condition. Pool exhaustion and
// timeouts, rate limits, network and server errors are transient; not-found,
// private, login and parse failures are terminal.
func IsRetryable(err error) bool {
	var e *Error
	if !stderrors.As(err, &e) {
		return false
	}
	switch e.Kind {
	case KindPoolExhausted:
		return true
	case KindScrapeFailed:
		return IsRetryableReason(e.Reason)
	default:
		return false
	}
}

// IsRetryableReason classifies scrape reasons
func IsRetryableReason(reason Reason) bool {
	switch reason {
	case ReasonTimeout, ReasonRateLimited, ReasonNetwork, ReasonServerError:
		return true
	default:
		return false
	}
}

// IsRetryableStatusCode checks if an HTTP status code indicates a retryable error
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0, 429:
		return true
	case 401, 403, 404:
		return false
	default:
		return statusCode >= 500
	}
}
