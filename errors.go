package accountauth

import "errors"

// Kind classifies a FlowError so transport layers can map it to a status
// code without inspecting message text.
type Kind int

const (
	// KindBadRequest is an exported constant or variable used by the authentication engine.
	KindBadRequest Kind = iota + 1
	// KindUnauthorized is an exported constant or variable used by the authentication engine.
	KindUnauthorized
	// KindForbidden is an exported constant or variable used by the authentication engine.
	KindForbidden
	// KindNotFound is an exported constant or variable used by the authentication engine.
	KindNotFound
	// KindConflict is an exported constant or variable used by the authentication engine.
	KindConflict
	// KindInternal is an exported constant or variable used by the authentication engine.
	KindInternal
)

// String describes the string operation and its observable behavior.
func (k Kind) String() string {
	switch k {
	case KindBadRequest:
		return "bad_request"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
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

// FlowError is the error surface of every engine flow. Message is always
// safe to show to an end user; for KindInternal it is a fixed generic
// sentence and the real cause is reachable only through Unwrap.
type FlowError struct {
	Kind    Kind
	Message string
	cause   error
}

// Error describes the error operation and its observable behavior.
func (e *FlowError) Error() string {
	return e.Message
}

// Unwrap exposes the internal cause for logs and tests. The cause never
// appears in Message.
func (e *FlowError) Unwrap() error {
	return e.cause
}

// KindOf returns the Kind of err if it is a FlowError, or KindInternal for
// any other non-nil error.
func KindOf(err error) Kind {
	var flowErr *FlowError
	if errors.As(err, &flowErr) {
		return flowErr.Kind
	}
	if err != nil {
		return KindInternal
	}
	return 0
}

func badRequest(message string) *FlowError {
	return &FlowError{Kind: KindBadRequest, Message: message}
}

func unauthorized(message string) *FlowError {
	return &FlowError{Kind: KindUnauthorized, Message: message}
}

func forbidden(message string) *FlowError {
	return &FlowError{Kind: KindForbidden, Message: message}
}

func notFound(message string) *FlowError {
	return &FlowError{Kind: KindNotFound, Message: message}
}

func conflict(message string) *FlowError {
	return &FlowError{Kind: KindConflict, Message: message}
}

// internalError masks cause behind a fixed user-safe message.
func internalError(message string, cause error) *FlowError {
	return &FlowError{Kind: KindInternal, Message: message, cause: cause}
}

var (
	// ErrEngineNotReady is an exported constant or variable used by the authentication engine.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrNoRequestEnv is an exported constant or variable used by the authentication engine.
	ErrNoRequestEnv = errors.New("request environment missing from context")
)
