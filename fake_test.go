package zsocket

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Zereker/zsocket/reactor"
)

// fakeNetwork connects fake sockets by endpoint and records the order of
// teardown operations across sockets and the reactor.
type fakeNetwork struct {
	mu      sync.Mutex
	nextFD  int
	bound   map[string]*fakeSocket
	sockets []*fakeSocket
	log     []string

	factoryErr error
}

func newFakeNetwork() *fakeNetwork {
	return &fakeNetwork{nextFD: 100, bound: make(map[string]*fakeSocket)}
}

func (n *fakeNetwork) factory(t SocketType) (Socket, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.factoryErr != nil {
		return nil, n.factoryErr
	}

	n.nextFD++
	s := &fakeSocket{net: n, typ: t, fd: n.nextFD, pollOut: true}
	n.sockets = append(n.sockets, s)
	return s, nil
}

func (n *fakeNetwork) record(format string, args ...any) {
	n.log = append(n.log, fmt.Sprintf(format, args...))
}

func (n *fakeNetwork) entries() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.log...)
}

type fakeSocket struct {
	net *fakeNetwork
	typ SocketType
	fd  int

	linger        time.Duration
	highWaterMark int
	maxSize       int64
	topics        []string

	bound     []string
	connected []string
	inbox     []Message
	sent      []Message

	pollOut  bool
	sendErrs []error
	closed   bool
}

func (s *fakeSocket) Bind(endpoint string) error {
	s.net.mu.Lock()
	defer s.net.mu.Unlock()

	if _, ok := s.net.bound[endpoint]; ok {
		return errors.New("address in use")
	}
	s.net.bound[endpoint] = s
	s.bound = append(s.bound, endpoint)
	return nil
}

func (s *fakeSocket) Connect(endpoint string) error {
	s.net.mu.Lock()
	defer s.net.mu.Unlock()

	if !strings.Contains(endpoint, "://") {
		return errors.New("invalid endpoint")
	}
	s.connected = append(s.connected, endpoint)
	return nil
}

func (s *fakeSocket) Unbind(endpoint string) error {
	s.net.mu.Lock()
	defer s.net.mu.Unlock()

	s.net.record("unbind %s", endpoint)
	delete(s.net.bound, endpoint)
	s.bound = without(s.bound, endpoint)
	return nil
}

func (s *fakeSocket) Disconnect(endpoint string) error {
	s.net.mu.Lock()
	defer s.net.mu.Unlock()

	s.net.record("disconnect %s", endpoint)
	s.connected = without(s.connected, endpoint)
	return nil
}

func (s *fakeSocket) Send(msg Message) error {
	s.net.mu.Lock()
	defer s.net.mu.Unlock()

	if len(s.sendErrs) > 0 {
		err := s.sendErrs[0]
		s.sendErrs = s.sendErrs[1:]
		if err != nil {
			return err
		}
	}

	s.sent = append(s.sent, msg)
	for _, endpoint := range s.connected {
		peer, ok := s.net.bound[endpoint]
		if !ok || !peer.accepts(msg) {
			continue
		}
		copied := make(Message, len(msg))
		for i, f := range msg {
			copied[i] = append([]byte(nil), f...)
		}
		peer.inbox = append(peer.inbox, copied)
	}
	return nil
}

// accepts applies the subscription prefix filter. s.net.mu must be held.
func (s *fakeSocket) accepts(msg Message) bool {
	if s.typ != Sub {
		return true
	}
	for _, topic := range s.topics {
		if strings.HasPrefix(string(msg[0]), topic) {
			return true
		}
	}
	return false
}

func (s *fakeSocket) Recv() (Message, error) {
	s.net.mu.Lock()
	defer s.net.mu.Unlock()

	if len(s.inbox) == 0 {
		return nil, ErrWouldBlock
	}
	msg := s.inbox[0]
	s.inbox = s.inbox[1:]
	return msg, nil
}

func (s *fakeSocket) Events() (Readiness, error) {
	s.net.mu.Lock()
	defer s.net.mu.Unlock()

	var r Readiness
	if len(s.inbox) > 0 {
		r |= PollIn
	}
	if s.pollOut {
		r |= PollOut
	}
	return r, nil
}

func (s *fakeSocket) FD() (int, error) { return s.fd, nil }

func (s *fakeSocket) SetLinger(d time.Duration) error {
	s.linger = d
	return nil
}

func (s *fakeSocket) SetHighWaterMark(n int) error {
	s.highWaterMark = n
	return nil
}

func (s *fakeSocket) SetMaxMessageSize(n int64) error {
	s.maxSize = n
	return nil
}

func (s *fakeSocket) Subscribe(topic string) error {
	s.net.mu.Lock()
	defer s.net.mu.Unlock()

	s.topics = append(s.topics, topic)
	return nil
}

func (s *fakeSocket) BoundEndpoints() []string {
	s.net.mu.Lock()
	defer s.net.mu.Unlock()
	return append([]string(nil), s.bound...)
}

func (s *fakeSocket) ConnectedEndpoints() []string {
	s.net.mu.Lock()
	defer s.net.mu.Unlock()
	return append([]string(nil), s.connected...)
}

func (s *fakeSocket) Close() error {
	s.net.mu.Lock()
	defer s.net.mu.Unlock()

	s.net.record("close %d", s.fd)
	s.closed = true
	return nil
}

func (s *fakeSocket) failNextSends(errs ...error) {
	s.net.mu.Lock()
	s.sendErrs = append(s.sendErrs, errs...)
	s.net.mu.Unlock()
}

func (s *fakeSocket) setPollOut(v bool) {
	s.net.mu.Lock()
	s.pollOut = v
	s.net.mu.Unlock()
}

func (s *fakeSocket) sentCount() int {
	s.net.mu.Lock()
	defer s.net.mu.Unlock()
	return len(s.sent)
}

func without(list []string, v string) []string {
	out := list[:0]
	for _, e := range list {
		if e != v {
			out = append(out, e)
		}
	}
	return out
}

type fakeRegistration struct {
	events  reactor.Event
	handler reactor.Handler
}

// fakeReactor records registrations and dispatches on demand from the test
// goroutine.
type fakeReactor struct {
	mu   sync.Mutex
	net  *fakeNetwork
	regs map[int]*fakeRegistration

	registers   int
	modifies    []reactor.Event
	unregisters int

	registerErr   error
	modifyErr     error
	unregisterErr error
}

func newFakeReactor(n *fakeNetwork) *fakeReactor {
	return &fakeReactor{net: n, regs: make(map[int]*fakeRegistration)}
}

func (r *fakeReactor) Register(fd int, events reactor.Event, h reactor.Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.registerErr != nil {
		return r.registerErr
	}
	if _, ok := r.regs[fd]; ok {
		return reactor.ErrAlreadyRegistered
	}
	r.registers++
	r.regs[fd] = &fakeRegistration{events: events, handler: h}
	return nil
}

func (r *fakeReactor) Modify(fd int, events reactor.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.modifyErr != nil {
		return r.modifyErr
	}
	reg, ok := r.regs[fd]
	if !ok {
		return reactor.ErrNotRegistered
	}
	reg.events = events
	r.modifies = append(r.modifies, events)
	return nil
}

func (r *fakeReactor) Unregister(fd int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.net != nil {
		r.net.mu.Lock()
		r.net.record("unregister %d", fd)
		r.net.mu.Unlock()
	}
	if r.unregisterErr != nil {
		return r.unregisterErr
	}
	if _, ok := r.regs[fd]; !ok {
		return reactor.ErrNotRegistered
	}
	r.unregisters++
	delete(r.regs, fd)
	return nil
}

func (r *fakeReactor) interest(fd int) reactor.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if reg, ok := r.regs[fd]; ok {
		return reg.events
	}
	return 0
}

func (r *fakeReactor) modifyCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.modifies)
}

// fire dispatches ready events to fd the way the epoll loop does.
func (r *fakeReactor) fire(fd int, ready reactor.Event) {
	r.mu.Lock()
	reg, ok := r.regs[fd]
	r.mu.Unlock()
	if !ok {
		return
	}

	if ready&reactor.EventRead != 0 && reg.handler.OnRead != nil {
		reg.handler.OnRead()
	}
	if ready&reactor.EventWrite != 0 && reg.handler.OnWrite != nil {
		reg.handler.OnWrite()
	}
}

// pump fires every registered descriptor with its current interest, rounds
// times, emulating a level-triggered loop.
func (r *fakeReactor) pump(rounds int) {
	for i := 0; i < rounds; i++ {
		r.mu.Lock()
		ready := make(map[int]reactor.Event, len(r.regs))
		for fd, reg := range r.regs {
			ready[fd] = reg.events
		}
		r.mu.Unlock()

		for fd, events := range ready {
			r.fire(fd, events)
		}
	}
}
