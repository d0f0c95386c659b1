package reactor

// Logger is the subset of *slog.Logger used by the loop.
type Logger interface {
	Debug(msg string, args ...any)
	Error(msg string, args ...any)
}
