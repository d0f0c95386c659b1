// Package reactor provides the readiness-driven event loop that zsocket
// connections register their descriptors with.
//
// A Reactor dispatches callbacks for registered descriptors from a single
// goroutine. Callbacks must not block; they may register, modify or
// unregister descriptors, including their own.
package reactor

import "errors"

// Event is a bit set of readiness conditions.
type Event uint32

const (
	// EventRead requests or reports read readiness.
	EventRead Event = 1 << iota
	// EventWrite requests or reports write readiness.
	EventWrite
	// EventError reports an error or hang-up condition on the descriptor.
	EventError
)

// String returns a short human readable form, e.g. "read|write".
func (e Event) String() string {
	if e == 0 {
		return "none"
	}
	var s string
	add := func(name string) {
		if s != "" {
			s += "|"
		}
		s += name
	}
	if e&EventRead != 0 {
		add("read")
	}
	if e&EventWrite != 0 {
		add("write")
	}
	if e&EventError != 0 {
		add("error")
	}
	return s
}

// Handler holds the callbacks for one registered descriptor.
// Either callback may be nil. OnRead is also invoked on error conditions so
// the owner can observe the failure through its own socket state.
type Handler struct {
	OnRead  func()
	OnWrite func()
}

// Reactor is the registration surface used by connections.
type Reactor interface {
	// Register adds fd with the given interest set. Registering the same fd
	// twice is an error.
	Register(fd int, events Event, h Handler) error
	// Modify replaces the interest set of an already registered fd.
	Modify(fd int, events Event) error
	// Unregister removes fd. It must be called before the descriptor is closed.
	Unregister(fd int) error
}

// Errors returned by reactor implementations.
var (
	// ErrClosed is returned when the loop has been closed.
	ErrClosed = errors.New("reactor closed")
	// ErrAlreadyRegistered is returned when registering a known descriptor.
	ErrAlreadyRegistered = errors.New("descriptor already registered")
	// ErrNotRegistered is returned when modifying or removing an unknown descriptor.
	ErrNotRegistered = errors.New("descriptor not registered")
	// ErrNotSupported is returned by NewLoop on platforms without a backend.
	ErrNotSupported = errors.New("reactor: this platform is not supported")
	// ErrAlreadyRunning is returned when Run is called concurrently.
	ErrAlreadyRunning = errors.New("reactor already running")
)
