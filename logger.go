package querycache

// Fields carries structured context for a log line, e.g. {"key": k, "removed": n}.
type Fields map[string]any

// Logger receives the cache's own diagnostics: evictions and sweeps at Debug,
// swallowed remote tier failures at Warn. Adapters live under log/ (zap, logrus,
// slog). A nil Options.Logger disables logging.
type Logger interface {
	Debug(msg string, f Fields)
	Info(msg string, f Fields)
	Warn(msg string, f Fields)
	Error(msg string, f Fields)
}

// NopLogger discards everything.
type NopLogger struct{}

var _ Logger = NopLogger{}

func (NopLogger) Debug(string, Fields) {}
func (NopLogger) Info(string, Fields)  {}
func (NopLogger) Warn(string, Fields)  {}
func (NopLogger) Error(string, Fields) {}
