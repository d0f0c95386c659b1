package zsocket

import (
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/Zereker/zsocket/reactor"
)

// ReadConn is an inbound connection (Pull or Sub). It binds its socket and
// delivers every complete message to the MessageHandler from the reactor
// goroutine.
type ReadConn struct {
	Conn

	onMessage MessageHandler
	// discard drops messages before they reach onMessage.
	discard func(Message) bool
	bound   bool
}

// NewReadConn creates an inbound connection. t must be Pull or Sub.
func NewReadConn(t SocketType, onMessage MessageHandler, opt ...Option) (*ReadConn, error) {
	if t != Pull && t != Sub {
		return nil, errors.Wrapf(ErrUnsupportedSocketType, "read connection: %s", t)
	}

	if onMessage == nil {
		return nil, ErrInvalidOnMessage
	}

	opts, err := newOptions(opt)
	if err != nil {
		return nil, err
	}

	c := &ReadConn{onMessage: onMessage}
	c.init(t, opts, unbindAll)
	return c, nil
}

// NewPullConn creates the receiving side of a pipeline.
func NewPullConn(onMessage MessageHandler, opt ...Option) (*ReadConn, error) {
	return NewReadConn(Pull, onMessage, opt...)
}

// Bind binds the socket to address and starts watching it for input.
// It returns ErrAlreadyActive if the connection is already bound. If the
// reactor rejects the descriptor the connection is closed.
func (c *ReadConn) Bind(address string) error {
	err := c.bind(address)
	if errors.Is(err, ErrReactorRegistration) {
		_ = c.Close()
	}
	return err
}

func (c *ReadConn) bind(address string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return ErrConnectionClosed
	}

	if c.bound {
		return ErrAlreadyActive
	}

	s, err := c.getSocket()
	if err != nil {
		return err
	}

	if err = s.Bind(address); err != nil {
		return errors.Wrapf(err, "bind %s", address)
	}
	c.bound = true
	c.address = address

	if err = c.register(reactor.EventRead, reactor.Handler{OnRead: c.handleReadEvent}); err != nil {
		return err
	}

	c.logger.Info("connection bound", "type", c.typ, "addr", address, "fd", c.fd)
	return nil
}

// handleReadEvent drains every message that is currently available. The
// descriptor only signals on state changes, so stopping early would strand
// queued input until the next unrelated signal.
func (c *ReadConn) handleReadEvent() {
	for {
		msg, ok, err := c.next()
		if err != nil {
			c.reportError(err)
			return
		}

		if !ok {
			return
		}

		if c.discard != nil && c.discard(msg) {
			continue
		}

		if err = c.onMessage(msg); err != nil {
			c.reportError(err)
		}
	}
}

// next receives one message if the socket reports input.
func (c *ReadConn) next() (Message, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() || c.socket == nil {
		return nil, false, nil
	}

	events, err := c.socket.Events()
	if err != nil {
		return nil, false, wrapKind(ErrReceiveFailed, errors.Wrap(err, "query events"))
	}

	if events&PollIn == 0 {
		return nil, false, nil
	}

	msg, err := c.socket.Recv()
	if err != nil {
		if errors.Is(err, ErrWouldBlock) {
			return nil, false, nil
		}
		return nil, false, wrapKind(ErrReceiveFailed, err)
	}

	return msg, true, nil
}

func unbindAll(s Socket) error {
	var err error
	for _, endpoint := range s.BoundEndpoints() {
		err = multierr.Append(err, errors.Wrapf(s.Unbind(endpoint), "unbind %s", endpoint))
	}
	return err
}
