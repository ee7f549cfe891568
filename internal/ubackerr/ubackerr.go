// Package ubackerr centralizes the error kinds named in the uback design:
// one exported Error type whose Kind field names the kind, wrapping an
// underlying cause so callers can still errors.Is/errors.As through to it.
package ubackerr

import "fmt"

// Kind discriminates the error kinds the orchestrator and CLI care about.
// The CLI maps Kind to a process exit code; nothing else should switch on it.
type Kind int

const (
	// KindUser covers bad options, missing files, unknown presets.
	KindUser Kind = iota
	KindChainBroken
	KindAuthenticationFailed
	KindUnsupportedVersion
	KindTruncated
	KindHelperFailed
	KindNetwork
	KindStateConflict
	KindNoMatchingRecipient
)

func (k Kind) String() string {
	switch k {
	case KindUser:
		return "UserError"
	case KindChainBroken:
		return "ChainBroken"
	case KindAuthenticationFailed:
		return "AuthenticationFailed"
	case KindUnsupportedVersion:
		return "UnsupportedVersion"
	case KindTruncated:
		return "Truncated"
	case KindHelperFailed:
		return "HelperFailed"
	case KindNetwork:
		return "NetworkError"
	case KindStateConflict:
		return "StateConflict"
	case KindNoMatchingRecipient:
		return "NoMatchingRecipient"
	default:
		return "UnknownError"
	}
}

// Error is the concrete error type uback returns. Kind drives exit-code
// mapping in cmd/uback; Msg is the human-readable detail; Cause, if set,
// is preserved for errors.Unwrap.
type Error struct {
	Kind  Kind
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Cause }

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Cause: cause}
}

func Userf(format string, args ...any) *Error {
	return &Error{Kind: KindUser, Msg: fmt.Sprintf(format, args...)}
}

// ExitCode maps an error's Kind to the process exit code from spec §6:
// 0 success, 1 user error, 2 runtime error. A nil error is exit code 0;
// an error that isn't *Error is treated as a runtime error.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var e *Error
	if As(err, &e) {
		if e.Kind == KindUser {
			return 1
		}
		return 2
	}
	return 2
}

// As is a tiny local alias so callers of this package don't need a second
// import of the standard "errors" package just for this one call site.
func As(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
