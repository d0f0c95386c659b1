// Package zmq implements zsocket.Socket on top of libzmq through
// github.com/pebbe/zmq4.
//
// The descriptor returned by FD is ZMQ_FD: it signals that the socket's
// event state may have changed, not that a message is ready. Connections
// always confirm with Events before sending or receiving.
package zmq

import (
	"syscall"
	"time"

	zmq4 "github.com/pebbe/zmq4"
	"github.com/pkg/errors"

	"github.com/Zereker/zsocket"
)

var socketTypes = map[zsocket.SocketType]zmq4.Type{
	zsocket.Pub:  zmq4.PUB,
	zsocket.Sub:  zmq4.SUB,
	zsocket.Push: zmq4.PUSH,
	zsocket.Pull: zmq4.PULL,
}

var _ zsocket.Socket = (*Socket)(nil)

// Socket is a zmq4 socket that tracks its own endpoints so they can be
// detached on close.
type Socket struct {
	sock *zmq4.Socket
	// ctx is terminated on Close when the socket owns it.
	ctx *zmq4.Context

	bound     []string
	connected []string
}

// NewFactory returns a factory that gives every socket its own private
// context, terminated when the socket is closed.
func NewFactory() zsocket.SocketFactory {
	return func(t zsocket.SocketType) (zsocket.Socket, error) {
		ctx, err := zmq4.NewContext()
		if err != nil {
			return nil, errors.Wrap(err, "new context")
		}

		s, err := newSocket(ctx, t)
		if err != nil {
			_ = ctx.Term()
			return nil, err
		}
		s.ctx = ctx
		return s, nil
	}
}

// NewSharedFactory returns a factory creating sockets in ctx. The caller
// owns ctx and must terminate it after every socket has been closed.
// Sharing a context is required for inproc:// endpoints.
func NewSharedFactory(ctx *zmq4.Context) zsocket.SocketFactory {
	return func(t zsocket.SocketType) (zsocket.Socket, error) {
		return newSocket(ctx, t)
	}
}

func newSocket(ctx *zmq4.Context, t zsocket.SocketType) (*Socket, error) {
	zt, ok := socketTypes[t]
	if !ok {
		return nil, errors.Wrapf(zsocket.ErrUnsupportedSocketType, "zmq: %s", t)
	}

	sock, err := ctx.NewSocket(zt)
	if err != nil {
		return nil, errors.Wrapf(err, "new %s socket", t)
	}

	return &Socket{sock: sock}, nil
}

// Bind binds to endpoint and records the resolved address, so wildcard
// ports can be unbound later.
func (s *Socket) Bind(endpoint string) error {
	if err := s.sock.Bind(endpoint); err != nil {
		return err
	}
	s.bound = append(s.bound, s.lastEndpoint(endpoint))
	return nil
}

// Connect connects to endpoint. The endpoint is recorded as given because
// disconnect matches it literally.
func (s *Socket) Connect(endpoint string) error {
	if err := s.sock.Connect(endpoint); err != nil {
		return err
	}
	s.connected = append(s.connected, endpoint)
	return nil
}

// Unbind detaches a bound endpoint.
func (s *Socket) Unbind(endpoint string) error {
	s.bound = remove(s.bound, endpoint)
	return s.sock.Unbind(endpoint)
}

// Disconnect detaches a connected endpoint.
func (s *Socket) Disconnect(endpoint string) error {
	s.connected = remove(s.connected, endpoint)
	return s.sock.Disconnect(endpoint)
}

// Send sends all frames without blocking.
func (s *Socket) Send(msg zsocket.Message) error {
	for i, frame := range msg {
		flags := zmq4.DONTWAIT
		if i < len(msg)-1 {
			flags |= zmq4.SNDMORE
		}
		if _, err := s.sock.SendBytes(frame, flags); err != nil {
			return translate(err)
		}
	}
	return nil
}

// Recv receives one complete message without blocking.
func (s *Socket) Recv() (zsocket.Message, error) {
	frames, err := s.sock.RecvMessageBytes(zmq4.DONTWAIT)
	if err != nil {
		return nil, translate(err)
	}
	return zsocket.Message(frames), nil
}

// Events returns ZMQ_EVENTS.
func (s *Socket) Events() (zsocket.Readiness, error) {
	state, err := s.sock.GetEvents()
	if err != nil {
		return 0, translate(err)
	}

	var r zsocket.Readiness
	if state&zmq4.POLLIN != 0 {
		r |= zsocket.PollIn
	}
	if state&zmq4.POLLOUT != 0 {
		r |= zsocket.PollOut
	}
	return r, nil
}

// FD returns ZMQ_FD.
func (s *Socket) FD() (int, error) {
	return s.sock.GetFd()
}

func (s *Socket) SetLinger(d time.Duration) error {
	return s.sock.SetLinger(d)
}

func (s *Socket) SetHighWaterMark(n int) error {
	if err := s.sock.SetSndhwm(n); err != nil {
		return err
	}
	return s.sock.SetRcvhwm(n)
}

func (s *Socket) SetMaxMessageSize(n int64) error {
	return s.sock.SetMaxmsgsize(n)
}

func (s *Socket) Subscribe(topic string) error {
	return s.sock.SetSubscribe(topic)
}

func (s *Socket) BoundEndpoints() []string {
	return append([]string(nil), s.bound...)
}

func (s *Socket) ConnectedEndpoints() []string {
	return append([]string(nil), s.connected...)
}

// Close closes the socket and terminates its private context, if any.
func (s *Socket) Close() error {
	err := s.sock.Close()
	if s.ctx != nil {
		if terr := s.ctx.Term(); err == nil {
			err = terr
		}
		s.ctx = nil
	}
	return err
}

func (s *Socket) lastEndpoint(fallback string) string {
	endpoint, err := s.sock.GetLastEndpoint()
	if err != nil || endpoint == "" {
		return fallback
	}
	return endpoint
}

// translate maps EAGAIN to zsocket.ErrWouldBlock.
func translate(err error) error {
	if zmq4.AsErrno(err) == zmq4.Errno(syscall.EAGAIN) {
		return errors.WithStack(zsocket.ErrWouldBlock)
	}
	return err
}

func remove(list []string, v string) []string {
	for i, e := range list {
		if e == v {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
