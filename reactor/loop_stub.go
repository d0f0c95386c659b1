//go:build !linux

package reactor

import "context"

// Loop is unavailable on this platform.
type Loop struct{}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// LoopLoggerOption is accepted for API compatibility.
func LoopLoggerOption(Logger) LoopOption { return func(*Loop) {} }

// NewLoop returns ErrNotSupported outside Linux.
func NewLoop(...LoopOption) (*Loop, error) {
	return nil, ErrNotSupported
}

func (l *Loop) Register(int, Event, Handler) error { return ErrNotSupported }
func (l *Loop) Modify(int, Event) error { return ErrNotSupported }
func (l *Loop) Unregister(int) error { return ErrNotSupported }
func (l *Loop) Submit(func()) error { return ErrNotSupported }
func (l *Loop) Run(context.Context) error { return ErrNotSupported }
func (l *Loop) Poll(int) (int, error) { return 0, ErrNotSupported }
func (l *Loop) Close() error { return nil }
