package zsocket

import "bytes"

// Message is one logical message made of ordered frames. A single-part
// message has exactly one frame. Frames are delivered together: a receiver
// never observes part of a message.
type Message [][]byte

// NewMessage returns a single-part message carrying body.
func NewMessage(body []byte) Message {
	return Message{body}
}

// Frames returns the number of frames.
func (m Message) Frames() int {
	return len(m)
}

// Length returns the total payload size across all frames.
func (m Message) Length() int {
	n := 0
	for _, f := range m {
		n += len(f)
	}
	return n
}

// Body returns the payload of a single-part message, or the frames
// concatenated for a multi-part one.
func (m Message) Body() []byte {
	switch len(m) {
	case 0:
		return nil
	case 1:
		return m[0]
	default:
		return bytes.Join(m, nil)
	}
}

// Equal reports whether m and o carry the same frames in the same order.
func (m Message) Equal(o Message) bool {
	if len(m) != len(o) {
		return false
	}
	for i := range m {
		if !bytes.Equal(m[i], o[i]) {
			return false
		}
	}
	return true
}
