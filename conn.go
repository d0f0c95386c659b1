// Package zsocket adapts ZeroMQ-style sockets (publish, subscribe, push, pull)
// to a readiness-driven reactor so that sending and receiving never block the
// reactor goroutine.
//
// A connection registers its socket descriptor with a reactor.Reactor. Inbound
// connections drain every available message into a MessageHandler each time
// the descriptor signals readiness. Outbound connections queue messages and
// raise write interest only while the queue is non-empty.
//
// Connections have no finalizer: pair every constructor with a deferred Close.
package zsocket

import (
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/Zereker/zsocket/reactor"
)

// Conn holds the state shared by inbound and outbound connections: the
// lazily created socket, its reactor registration and the close/error
// handlers. It is embedded by ReadConn and WriteConn.
type Conn struct {
	typ    SocketType
	opts   options
	logger Logger

	// teardown detaches the socket from its endpoints before it is closed.
	teardown func(Socket) error

	mu         sync.Mutex
	socket     Socket
	fd         int
	registered bool
	address    string
	onError    ErrorHandler
	onClose    CloseHandler

	closed atomic.Bool
}

func (c *Conn) init(t SocketType, opts options, teardown func(Socket) error) {
	c.typ = t
	c.opts = opts
	c.logger = opts.logger
	c.teardown = teardown
	c.fd = -1
	c.onError = opts.onError
	c.onClose = opts.onClose
}

// Close tears the connection down: it invokes the close handler, removes the
// descriptor from the reactor, detaches the socket from every endpoint and
// releases it. Safe to call multiple times and from any handler; only the
// first call has an effect.
func (c *Conn) Close() error {
	if c.closed.Swap(true) {
		return nil
	}

	c.mu.Lock()
	onClose := c.onClose
	c.mu.Unlock()

	if onClose != nil {
		onClose()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	if c.registered {
		if uerr := c.opts.reactor.Unregister(c.fd); uerr != nil {
			c.logger.Error("reactor unregister failed", "type", c.typ, "fd", c.fd, "error", uerr)
			err = multierr.Append(err, wrapKind(ErrReactorRegistration, errors.Wrapf(uerr, "unregister fd %d", c.fd)))
		}
		c.registered = false
	}

	if c.socket != nil {
		err = multierr.Append(err, c.teardown(c.socket))
		err = multierr.Append(err, errors.Wrap(c.socket.Close(), "close socket"))
		c.socket = nil
		c.fd = -1
	}

	if err != nil {
		c.logger.Info("connection closed with error", "type", c.typ, "addr", c.address, "error", err)
	} else {
		c.logger.Info("connection closed", "type", c.typ, "addr", c.address)
	}

	return err
}

// IsClosed returns true if the connection has been closed.
func (c *Conn) IsClosed() bool {
	return c.closed.Load()
}

// Addr returns the address passed to Bind or Connect, or "" before activation.
func (c *Conn) Addr() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.address
}

// Type returns the socket pattern.
func (c *Conn) Type() SocketType {
	return c.typ
}

// SetCloseHandler replaces the close callback.
func (c *Conn) SetCloseHandler(cb CloseHandler) {
	c.mu.Lock()
	c.onClose = cb
	c.mu.Unlock()
}

// SetErrorHandler replaces the error callback.
func (c *Conn) SetErrorHandler(cb ErrorHandler) {
	c.mu.Lock()
	c.onError = cb
	c.mu.Unlock()
}

// getSocket creates the socket on first use and caches its descriptor.
// c.mu must be held.
func (c *Conn) getSocket() (Socket, error) {
	if c.socket != nil {
		return c.socket, nil
	}

	s, err := c.opts.factory(c.typ)
	if err != nil {
		return nil, errors.Wrapf(err, "create %s socket", c.typ)
	}

	if err = c.configure(s); err != nil {
		_ = s.Close()
		return nil, err
	}

	fd, err := s.FD()
	if err != nil {
		_ = s.Close()
		return nil, errors.Wrap(err, "socket descriptor")
	}

	c.socket = s
	c.fd = fd

	c.logger.Debug("socket created", "type", c.typ, "fd", fd,
		"linger", c.opts.linger,
		"high_water_mark", c.opts.highWaterMark,
		"max_message_size", c.opts.maxMessageSize)

	return s, nil
}

// configure applies socket options. A bounded linger keeps Close from
// hanging on unsent messages.
func (c *Conn) configure(s Socket) error {
	if err := s.SetLinger(c.opts.linger); err != nil {
		return errors.Wrap(err, "set linger")
	}

	if c.opts.highWaterMark > 0 {
		if err := s.SetHighWaterMark(c.opts.highWaterMark); err != nil {
			return errors.Wrap(err, "set high water mark")
		}
	}

	if c.opts.maxMessageSize > 0 && (c.typ == Pull || c.typ == Sub) {
		if err := s.SetMaxMessageSize(c.opts.maxMessageSize); err != nil {
			return errors.Wrap(err, "set max message size")
		}
	}

	return nil
}

// register adds the descriptor to the reactor. c.mu must be held.
func (c *Conn) register(events reactor.Event, h reactor.Handler) error {
	if err := c.opts.reactor.Register(c.fd, events, h); err != nil {
		c.logger.Error("reactor register failed", "type", c.typ, "fd", c.fd, "error", err)
		return wrapKind(ErrReactorRegistration, errors.Wrapf(err, "register fd %d", c.fd))
	}
	c.registered = true
	return nil
}

// reportError hands err to the error handler, closing the connection if the
// handler asks to. Must be called without c.mu held.
func (c *Conn) reportError(err error) {
	c.mu.Lock()
	onError := c.onError
	c.mu.Unlock()

	if onError == nil {
		c.logger.Debug("connection error dropped", "type", c.typ, "addr", c.Addr(), "error", err)
		return
	}

	if onError(err) == Disconnect {
		_ = c.Close()
	}
}

// fail reports an unrecoverable error raised inside a reactor callback and
// closes the connection so it cannot stall unnoticed.
func (c *Conn) fail(err error) {
	c.logger.Error("connection failed", "type", c.typ, "addr", c.Addr(), "error", err)
	c.reportError(err)
	_ = c.Close()
}
