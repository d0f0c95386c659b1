package zsocket

import (
	"errors"
	"fmt"
	"time"
)

// SocketType is the messaging pattern of a socket.
type SocketType int

const (
	// Pub is the publishing side of publish/subscribe.
	Pub SocketType = iota + 1
	// Sub is the subscribing side of publish/subscribe.
	Sub
	// Push is the sending side of a pipeline.
	Push
	// Pull is the receiving side of a pipeline.
	Pull
)

func (t SocketType) String() string {
	switch t {
	case Pub:
		return "PUB"
	case Sub:
		return "SUB"
	case Push:
		return "PUSH"
	case Pull:
		return "PULL"
	default:
		return fmt.Sprintf("SocketType(%d)", int(t))
	}
}

// Readiness is the socket's own view of its input/output state.
type Readiness int

const (
	// PollIn means at least one complete message can be received.
	PollIn Readiness = 1 << iota
	// PollOut means at least one message can be sent without blocking.
	PollOut
)

// ErrWouldBlock is returned by Socket.Send and Socket.Recv when the
// operation cannot complete without blocking.
var ErrWouldBlock = errors.New("operation would block")

// Socket is the messaging library surface a connection drives. Send and Recv
// never block. A Socket is not safe for concurrent use; connections serialize
// access to it.
type Socket interface {
	Bind(endpoint string) error
	Connect(endpoint string) error
	Unbind(endpoint string) error
	Disconnect(endpoint string) error

	// Send transmits all frames of msg as one message.
	Send(msg Message) error
	// Recv returns one complete message.
	Recv() (Message, error)
	// Events reports the current readiness. Querying it also resets the
	// edge signal on FD.
	Events() (Readiness, error)
	// FD returns the descriptor the reactor watches for readiness changes.
	FD() (int, error)

	SetLinger(d time.Duration) error
	SetHighWaterMark(n int) error
	SetMaxMessageSize(n int64) error
	Subscribe(topic string) error

	// BoundEndpoints and ConnectedEndpoints list the resolved endpoints
	// currently active on the socket.
	BoundEndpoints() []string
	ConnectedEndpoints() []string

	Close() error
}

// SocketFactory creates a socket of the given type.
type SocketFactory func(t SocketType) (Socket, error)
