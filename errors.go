package zsocket

import "errors"

// Configuration errors returned by constructors.
var (
	// ErrUnsupportedSocketType is returned when a socket type does not match
	// the connection direction.
	ErrUnsupportedSocketType = errors.New("socket type not supported")
	// ErrInvalidSocketFactory is returned when no socket factory is provided.
	ErrInvalidSocketFactory = errors.New("invalid socket factory")
	// ErrInvalidReactor is returned when no reactor is provided.
	ErrInvalidReactor = errors.New("invalid reactor")
	// ErrInvalidOnMessage is returned when no message handler is provided.
	ErrInvalidOnMessage = errors.New("invalid on message callback")
)

// Lifecycle and delivery errors.
var (
	// ErrConnectionClosed is returned when operating on a closed connection.
	ErrConnectionClosed = errors.New("connection closed")
	// ErrAlreadyActive is returned by a second Bind or Connect.
	ErrAlreadyActive = errors.New("connection already active")
	// ErrReactorRegistration is wrapped around any reactor failure. A
	// connection that hits it can no longer be driven.
	ErrReactorRegistration = errors.New("reactor registration failed")
	// ErrSendFailed is wrapped around a socket error for a dropped outbound
	// message. It is only delivered to the error handler.
	ErrSendFailed = errors.New("send failed")
	// ErrReceiveFailed is wrapped around a socket error while draining input.
	ErrReceiveFailed = errors.New("receive failed")
	// ErrEmptyMessage is returned by SendMulti when no frames are given.
	ErrEmptyMessage = errors.New("empty message")
)

// wrapped carries a sentinel kind on top of the underlying cause so that
// errors.Is matches both.
type wrapped struct {
	kind  error
	cause error
}

func (e *wrapped) Error() string { return e.kind.Error() + ": " + e.cause.Error() }

func (e *wrapped) Unwrap() []error { return []error{e.kind, e.cause} }

func wrapKind(kind, cause error) error {
	if cause == nil {
		return nil
	}
	return &wrapped{kind: kind, cause: cause}
}
