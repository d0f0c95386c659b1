package zsocket

import (
	"bytes"
	"time"

	"github.com/pkg/errors"
)

// WarmupPayload is the body of the throwaway messages a PubConn sends right
// after connecting. SubConn drops every single-frame message equal to it,
// whoever sent it, so applications must not publish it.
const WarmupPayload = "@@@ IGNORE THIS"

// PubConn is the publishing side of publish/subscribe.
type PubConn struct {
	*WriteConn
}

// NewPubConn creates a publisher.
func NewPubConn(opt ...Option) (*PubConn, error) {
	c, err := NewWriteConn(Pub, opt...)
	if err != nil {
		return nil, err
	}
	return &PubConn{WriteConn: c}, nil
}

// Connect connects the publisher and then sends the warm-up messages,
// sleeping after each one. A subscriber that is still completing its
// handshake misses the first messages published to it; the warm-up gives it
// that time. It is a mitigation, not a delivery guarantee.
//
// Connect sleeps, so call it from an application goroutine rather than from
// a reactor callback.
func (c *PubConn) Connect(address string) error {
	if err := c.WriteConn.Connect(address); err != nil {
		return err
	}

	for i := 0; i < c.opts.warmupCount; i++ {
		if err := c.Send([]byte(WarmupPayload)); err != nil {
			return err
		}
		time.Sleep(c.opts.warmupInterval)
	}

	return nil
}

// SubConn is the subscribing side of publish/subscribe.
type SubConn struct {
	*ReadConn
}

// NewSubConn creates a subscriber. It receives nothing until Subscribe is
// called at least once.
func NewSubConn(onMessage MessageHandler, opt ...Option) (*SubConn, error) {
	c, err := NewReadConn(Sub, onMessage, opt...)
	if err != nil {
		return nil, err
	}
	c.discard = isWarmup
	return &SubConn{ReadConn: c}, nil
}

// Subscribe adds a topic prefix filter. An empty topic matches everything.
// It may be called before or after Bind.
func (c *SubConn) Subscribe(topic string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return ErrConnectionClosed
	}

	s, err := c.getSocket()
	if err != nil {
		return err
	}

	if err = s.Subscribe(topic); err != nil {
		return errors.Wrapf(err, "subscribe %q", topic)
	}

	c.logger.Debug("subscribed", "addr", c.address, "topic", topic)
	return nil
}

func isWarmup(msg Message) bool {
	return len(msg) == 1 && bytes.Equal(msg[0], []byte(WarmupPayload))
}
