package zsocket

import (
	"time"

	"github.com/Zereker/zsocket/reactor"
)

// ErrorAction defines the action to take when an error is reported.
type ErrorAction int

const (
	// Continue suppresses the error and keeps the connection open.
	Continue ErrorAction = iota
	// Disconnect closes the connection.
	Disconnect
)

// Handler roles.
//
// MessageHandler is invoked on the reactor goroutine once per complete
// inbound message, in arrival order. It must not block. A returned error is
// passed to the error handler.
//
// ErrorHandler receives transient failures: dropped outbound messages,
// receive errors and reactor failures raised from inside callbacks.
//
// CloseHandler is invoked once, at the start of the first Close.
//
// All three run without the connection lock held and may call Send or Close.
type (
	MessageHandler func(Message) error
	ErrorHandler   func(error) ErrorAction
	CloseHandler   func()
)

// options holds the configuration for a connection.
type options struct {
	factory SocketFactory
	reactor reactor.Reactor
	logger  Logger

	onError ErrorHandler
	onClose CloseHandler

	linger         time.Duration
	highWaterMark  int   // send/receive high water mark, 0 keeps the library default
	maxMessageSize int64 // inbound limit, 0 means unlimited

	warmupCount    int
	warmupInterval time.Duration
}

// Option is a function that configures connection options.
type Option func(*options)

// Default configuration values.
const (
	// defaultLinger bounds how long Close waits for unsent messages.
	defaultLinger = time.Second
	// defaultWarmupCount is the number of discarded publish warm-up messages.
	defaultWarmupCount = 2
	// defaultWarmupInterval is the pause after each warm-up message.
	defaultWarmupInterval = time.Millisecond
)

// checkOptions validates and sets default values for connection options.
func checkOptions(opts *options) error {
	if opts.factory == nil {
		return ErrInvalidSocketFactory
	}

	if opts.reactor == nil {
		return ErrInvalidReactor
	}

	if opts.linger < 0 {
		opts.linger = defaultLinger
	}

	if opts.warmupCount < 0 {
		opts.warmupCount = 0
	}

	if opts.warmupInterval < 0 {
		opts.warmupInterval = 0
	}

	if opts.logger == nil {
		opts.logger = defaultLogger()
	}

	return nil
}

func newOptions(opt []Option) (options, error) {
	opts := options{
		linger:         defaultLinger,
		warmupCount:    defaultWarmupCount,
		warmupInterval: defaultWarmupInterval,
	}
	for _, o := range opt {
		o(&opts)
	}
	return opts, checkOptions(&opts)
}

// SocketFactoryOption sets the factory used to create the underlying socket.
// It is required.
func SocketFactoryOption(factory SocketFactory) Option {
	return func(o *options) {
		o.factory = factory
	}
}

// ReactorOption sets the reactor the socket descriptor is registered with.
// It is required.
func ReactorOption(r reactor.Reactor) Option {
	return func(o *options) {
		o.reactor = r
	}
}

// LoggerOption sets the logger. If not set, the default slog logger is used.
func LoggerOption(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// LingerOption sets how long Close may wait for unsent messages to flush.
// Zero discards them immediately. Defaults to one second.
func LingerOption(d time.Duration) Option {
	return func(o *options) {
		o.linger = d
	}
}

// HighWaterMarkOption sets the socket's send and receive high water marks.
func HighWaterMarkOption(n int) Option {
	return func(o *options) {
		o.highWaterMark = n
	}
}

// MessageMaxSize sets the largest inbound message the socket accepts.
// Peers sending larger messages are disconnected by the messaging library.
func MessageMaxSize(size int64) Option {
	return func(o *options) {
		o.maxMessageSize = size
	}
}

// OnErrorOption sets the error callback. Without one, transient errors are
// logged at debug level and otherwise dropped.
func OnErrorOption(cb ErrorHandler) Option {
	return func(o *options) {
		o.onError = cb
	}
}

// OnCloseOption sets the close callback.
func OnCloseOption(cb CloseHandler) Option {
	return func(o *options) {
		o.onClose = cb
	}
}

// WarmupOption sets how many throwaway messages a publisher sends after
// connecting and the pause after each one.
func WarmupOption(count int, interval time.Duration) Option {
	return func(o *options) {
		o.warmupCount = count
		o.warmupInterval = interval
	}
}
