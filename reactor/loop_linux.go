//go:build linux

package reactor

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"sync"

	"github.com/eapache/queue"
	"go.uber.org/atomic"
	"golang.org/x/sys/unix"
)

const maxEvents = 128

type registration struct {
	handler Handler
	events  Event
}

// Loop is a level-triggered epoll reactor. Run drives it from a single
// goroutine; Register, Modify, Unregister and Submit are safe to call from any
// goroutine.
type Loop struct {
	epfd   int
	wakefd int
	logger Logger

	mu    sync.Mutex
	regs  map[int]*registration
	tasks *queue.Queue

	running atomic.Bool
	closed  atomic.Bool
	release sync.Once
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// LoopLoggerOption sets the logger used to report recovered callback panics.
func LoopLoggerOption(logger Logger) LoopOption {
	return func(l *Loop) {
		l.logger = logger
	}
}

// NewLoop creates an epoll instance and its wake-up eventfd.
func NewLoop(opts ...LoopOption) (*Loop, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll create: %w", err)
	}

	wakefd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		_ = unix.Close(epfd)
		return nil, fmt.Errorf("eventfd: %w", err)
	}

	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakefd)}
	if err = unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakefd, &ev); err != nil {
		_ = unix.Close(wakefd)
		_ = unix.Close(epfd)
		return nil, fmt.Errorf("epoll ctl add wakefd: %w", err)
	}

	l := &Loop{
		epfd:   epfd,
		wakefd: wakefd,
		logger: slog.Default(),
		regs:   make(map[int]*registration),
		tasks:  queue.New(),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l, nil
}

// Register adds fd to the epoll set with the given interest.
func (l *Loop) Register(fd int, events Event, h Handler) error {
	if l.closed.Load() {
		return ErrClosed
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.regs[fd]; ok {
		return ErrAlreadyRegistered
	}

	ev := unix.EpollEvent{Events: toEpoll(events), Fd: int32(fd)}
	if err := unix.EpollCtl(l.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return fmt.Errorf("epoll ctl add: %w", err)
	}

	l.regs[fd] = &registration{handler: h, events: events}
	return nil
}

// Modify replaces the interest set of fd.
func (l *Loop) Modify(fd int, events Event) error {
	if l.closed.Load() {
		return ErrClosed
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	reg, ok := l.regs[fd]
	if !ok {
		return ErrNotRegistered
	}

	ev := unix.EpollEvent{Events: toEpoll(events), Fd: int32(fd)}
	if err := unix.EpollCtl(l.epfd, unix.EPOLL_CTL_MOD, fd, &ev); err != nil {
		return fmt.Errorf("epoll ctl mod: %w", err)
	}

	reg.events = events
	return nil
}

// Unregister removes fd from the epoll set.
func (l *Loop) Unregister(fd int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.regs[fd]; !ok {
		return ErrNotRegistered
	}
	delete(l.regs, fd)

	if l.closed.Load() {
		return nil
	}

	if err := unix.EpollCtl(l.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return fmt.Errorf("epoll ctl del: %w", err)
	}
	return nil
}

// Submit schedules fn to run on the loop goroutine before the next poll.
func (l *Loop) Submit(fn func()) error {
	if l.closed.Load() {
		return ErrClosed
	}

	l.mu.Lock()
	l.tasks.Add(fn)
	l.mu.Unlock()

	return l.wake()
}

// Run polls and dispatches until ctx is canceled or the loop is closed.
// It returns ctx.Err() on cancellation and ErrClosed after Close.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer func() {
		l.running.Store(false)
		if l.closed.Load() {
			l.releaseFDs()
		}
	}()

	stop := context.AfterFunc(ctx, func() { _ = l.wake() })
	defer stop()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if l.closed.Load() {
			return ErrClosed
		}

		if _, err := l.Poll(-1); err != nil {
			return err
		}
	}
}

// Poll runs pending tasks, waits up to timeoutMs for readiness (negative
// blocks) and dispatches the ready callbacks. It returns the number of
// descriptors dispatched.
func (l *Loop) Poll(timeoutMs int) (int, error) {
	l.runTasks()

	var events [maxEvents]unix.EpollEvent
	n, err := unix.EpollWait(l.epfd, events[:], timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, fmt.Errorf("epoll wait: %w", err)
	}

	handled := 0
	for i := 0; i < n; i++ {
		fd := int(events[i].Fd)
		if fd == l.wakefd {
			l.drainWake()
			continue
		}
		l.dispatch(fd, fromEpoll(events[i].Events))
		handled++
	}

	l.runTasks()
	return handled, nil
}

// Close stops the loop. If Run is active, the descriptors are released when
// it returns.
func (l *Loop) Close() error {
	if l.closed.Swap(true) {
		return nil
	}

	if l.running.Load() {
		return l.wake()
	}

	l.releaseFDs()
	return nil
}

func (l *Loop) dispatch(fd int, ready Event) {
	reg := l.lookup(fd)
	if reg == nil {
		return
	}

	if ready&(EventRead|EventError) != 0 && reg.handler.OnRead != nil {
		l.invoke(fd, reg.handler.OnRead)
	}

	// the read callback may have unregistered or re-registered fd
	if ready&EventWrite != 0 && l.lookup(fd) == reg && reg.handler.OnWrite != nil {
		l.invoke(fd, reg.handler.OnWrite)
	}
}

func (l *Loop) lookup(fd int) *registration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.regs[fd]
}

func (l *Loop) invoke(fd int, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("reactor callback panic", "fd", fd, "panic", r)
		}
	}()
	fn()
}

func (l *Loop) runTasks() {
	l.mu.Lock()
	if l.tasks.Length() == 0 {
		l.mu.Unlock()
		return
	}
	pending := make([]func(), 0, l.tasks.Length())
	for l.tasks.Length() > 0 {
		pending = append(pending, l.tasks.Remove().(func()))
	}
	l.mu.Unlock()

	for _, fn := range pending {
		l.invoke(-1, fn)
	}
}

func (l *Loop) wake() error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], 1)
	_, err := unix.Write(l.wakefd, buf[:])
	if err != nil && err != unix.EAGAIN {
		return fmt.Errorf("eventfd write: %w", err)
	}
	return nil
}

func (l *Loop) drainWake() {
	var buf [8]byte
	_, _ = unix.Read(l.wakefd, buf[:])
}

func (l *Loop) releaseFDs() {
	l.release.Do(func() {
		_ = unix.Close(l.wakefd)
		_ = unix.Close(l.epfd)
	})
}

func toEpoll(events Event) uint32 {
	var ev uint32
	if events&EventRead != 0 {
		ev |= unix.EPOLLIN
	}
	if events&EventWrite != 0 {
		ev |= unix.EPOLLOUT
	}
	return ev
}

func fromEpoll(ev uint32) Event {
	var events Event
	if ev&unix.EPOLLIN != 0 {
		events |= EventRead
	}
	if ev&unix.EPOLLOUT != 0 {
		events |= EventWrite
	}
	if ev&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
		events |= EventError
	}
	return events
}
