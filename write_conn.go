package zsocket

import (
	"github.com/eapache/queue"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/Zereker/zsocket/reactor"
)

// WriteConn is an outbound connection (Push or Pub). Sends are queued and
// flushed from the reactor goroutine; write interest is requested only while
// the queue is non-empty.
//
// Delivery is at most once: a message whose send fails is dropped and the
// error handler is told about it. It is not requeued.
type WriteConn struct {
	Conn

	queue     *queue.Queue
	connected bool
	// draining is true while write interest is requested.
	draining bool
}

// NewWriteConn creates an outbound connection. t must be Push or Pub.
func NewWriteConn(t SocketType, opt ...Option) (*WriteConn, error) {
	if t != Push && t != Pub {
		return nil, errors.Wrapf(ErrUnsupportedSocketType, "write connection: %s", t)
	}

	opts, err := newOptions(opt)
	if err != nil {
		return nil, err
	}

	c := &WriteConn{queue: queue.New()}
	c.init(t, opts, disconnectAll)
	return c, nil
}

// NewPushConn creates the sending side of a pipeline.
func NewPushConn(opt ...Option) (*WriteConn, error) {
	return NewWriteConn(Push, opt...)
}

// Connect connects the socket to address and registers it with the reactor.
// Messages queued before Connect are flushed once it succeeds.
// It returns ErrAlreadyActive if the connection is already connected. If the
// reactor rejects the descriptor the connection is closed.
func (c *WriteConn) Connect(address string) error {
	err := c.connect(address)
	if errors.Is(err, ErrReactorRegistration) {
		_ = c.Close()
	}
	return err
}

func (c *WriteConn) connect(address string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return ErrConnectionClosed
	}

	if c.connected {
		return ErrAlreadyActive
	}

	s, err := c.getSocket()
	if err != nil {
		return err
	}

	if err = s.Connect(address); err != nil {
		return errors.Wrapf(err, "connect %s", address)
	}
	c.connected = true
	c.address = address

	events := reactor.EventRead
	if c.queue.Length() > 0 {
		events |= reactor.EventWrite
		c.draining = true
	}

	h := reactor.Handler{OnRead: c.handleReadEvent, OnWrite: c.handleWriteEvent}
	if err = c.register(events, h); err != nil {
		c.draining = false
		return err
	}

	c.logger.Info("connection connected", "type", c.typ, "addr", address, "fd", c.fd)
	return nil
}

// Send queues a single-part message. The connection owns body until it has
// been sent.
func (c *WriteConn) Send(body []byte) error {
	return c.enqueue(NewMessage(body))
}

// SendMulti queues one message made of parts, delivered as a single unit.
// The parts slice is copied; the connection owns the frames until the
// message has been sent.
func (c *WriteConn) SendMulti(parts [][]byte) error {
	if len(parts) == 0 {
		return ErrEmptyMessage
	}
	return c.enqueue(append(Message(nil), parts...))
}

// Pending returns the number of queued messages.
func (c *WriteConn) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queue.Length()
}

func (c *WriteConn) enqueue(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return ErrConnectionClosed
	}

	c.queue.Add(msg)

	if c.draining || !c.registered {
		return nil
	}

	if err := c.opts.reactor.Modify(c.fd, reactor.EventRead|reactor.EventWrite); err != nil {
		c.logger.Error("reactor modify failed", "type", c.typ, "fd", c.fd, "error", err)
		return wrapKind(ErrReactorRegistration, errors.Wrapf(err, "modify fd %d", c.fd))
	}
	c.draining = true

	return nil
}

func (c *WriteConn) handleWriteEvent() {
	c.drain()
}

// handleReadEvent re-checks writability. The socket exposes output readiness
// through its event flags, which can change without a write signal, so read
// readiness is used as a second trigger for the drain.
func (c *WriteConn) handleReadEvent() {
	for {
		c.mu.Lock()
		if c.closed.Load() || c.socket == nil {
			c.mu.Unlock()
			return
		}
		events, err := c.socket.Events()
		draining := c.draining
		c.mu.Unlock()

		if err != nil {
			c.reportError(errors.Wrap(err, "query events"))
			return
		}

		if events&PollOut == 0 || !draining {
			return
		}

		if !c.drain() {
			return
		}
	}
}

// drain sends queued messages in order. On the first failed send the message
// is dropped, the error handler is notified and draining stops for this
// invocation. Once the queue is empty write interest is released. It reports
// whether the queue was emptied.
func (c *WriteConn) drain() bool {
	for {
		c.mu.Lock()
		if c.closed.Load() || c.socket == nil {
			c.mu.Unlock()
			return false
		}

		if c.queue.Length() == 0 {
			if !c.draining {
				c.mu.Unlock()
				return true
			}

			c.draining = false
			err := c.opts.reactor.Modify(c.fd, reactor.EventRead)
			fd := c.fd
			c.mu.Unlock()

			if err != nil {
				c.fail(wrapKind(ErrReactorRegistration, errors.Wrapf(err, "modify fd %d", fd)))
				return false
			}
			return true
		}

		msg := c.queue.Remove().(Message)
		err := c.socket.Send(msg)
		c.mu.Unlock()

		if err != nil {
			c.logger.Debug("message dropped", "type", c.typ, "addr", c.Addr(), "frames", msg.Frames(), "error", err)
			c.reportError(wrapKind(ErrSendFailed, err))
			return false
		}
	}
}

func disconnectAll(s Socket) error {
	var err error
	for _, endpoint := range s.ConnectedEndpoints() {
		err = multierr.Append(err, errors.Wrapf(s.Disconnect(endpoint), "disconnect %s", endpoint))
	}
	return err
}
