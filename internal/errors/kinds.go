// Package errors defines the error kinds shared by the resolve, publish and
// backup pipelines so callers can branch on what went wrong instead of
// matching message text.
package errors

import (
	stdErrors "errors"
	"fmt"
)

// Kind classifies an Error.
type Kind int

const (
	// KindUnknown is the zero value and never produced by the constructors.
	KindUnknown Kind = iota
	// KindValidation marks malformed input, such as an ISBN that is not 13 digits.
	KindValidation
	// KindNotFound marks an explicit "no such record" answer from a remote source.
	KindNotFound
	// KindTransport marks network failures and unexpected HTTP statuses.
	KindTransport
	// KindParse marks a response body that could not be decoded.
	KindParse
	// KindState marks local staging state that does not match the request.
	KindState
	// KindConfig marks missing or invalid runtime configuration.
	KindConfig
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not found"
	case KindTransport:
		return "transport"
	case KindParse:
		return "parse"
	case KindState:
		return "state"
	case KindConfig:
		return "config"
	default:
		return "unknown"
	}
}

// Error is a classified error. Op names the failing operation, Key the
// identifier it was working on (usually an ISBN or a config key).
type Error struct {
	Kind       Kind
	Op         string
	Key        string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	msg := e.Op
	if e.Key != "" {
		msg = fmt.Sprintf("%s %s", msg, e.Key)
	}
	if e.StatusCode > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		if msg == "" {
			return e.Err.Error()
		}
		return msg + ": " + e.Err.Error()
	}
	if msg == "" {
		return e.Kind.String() + " error"
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validation creates a KindValidation error.
func Validation(op, key string, err error) *Error {
	return &Error{Kind: KindValidation, Op: op, Key: key, Err: err}
}

// NotFound creates a KindNotFound error.
func NotFound(op, key string, err error) *Error {
	return &Error{Kind: KindNotFound, Op: op, Key: key, Err: err}
}

// Transport creates a KindTransport error.
func Transport(op, key string, err error) *Error {
	return &Error{Kind: KindTransport, Op: op, Key: key, Err: err}
}

// TransportStatus creates a KindTransport error for an unexpected HTTP status.
func TransportStatus(op, key string, statusCode int) *Error {
	return &Error{Kind: KindTransport, Op: op, Key: key, StatusCode: statusCode}
}

// Parse creates a KindParse error.
func Parse(op, key string, err error) *Error {
	return &Error{Kind: KindParse, Op: op, Key: key, Err: err}
}

// State creates a KindState error.
func State(op, key string, err error) *Error {
	return &Error{Kind: KindState, Op: op, Key: key, Err: err}
}

// Config creates a KindConfig error naming the offending key.
func Config(key string, err error) *Error {
	return &Error{Kind: KindConfig, Op: "config", Key: key, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if stdErrors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// StatusCode returns the HTTP status attached to err, or 0.
func StatusCode(err error) int {
	var e *Error
	if stdErrors.As(err, &e) {
		return e.StatusCode
	}
	return 0
}

// IsValidation reports whether err is a validation error (even when wrapped).
func IsValidation(err error) bool { return KindOf(err) == KindValidation }

// IsNotFound reports whether err is a not-found error (even when wrapped).
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// IsTransport reports whether err is a transport or parse error. Parse
// failures count as transport problems for fallback decisions.
func IsTransport(err error) bool {
	k := KindOf(err)
	return k == KindTransport || k == KindParse
}

// IsParse reports whether err is a parse error (even when wrapped).
func IsParse(err error) bool { return KindOf(err) == KindParse }

// IsState reports whether err is a state error (even when wrapped).
func IsState(err error) bool { return KindOf(err) == KindState }

// IsConfig reports whether err is a configuration error (even when wrapped).
func IsConfig(err error) bool { return KindOf(err) == KindConfig }
