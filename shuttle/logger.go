package shuttle

// Logger interface for engine logging
type Logger interface {
	Printf(format string, v ...interface{})
	Debug(format string, v ...interface{})
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
	DebugEvent(ev RawEvent)
}

// StdLogger wraps a standard logger to implement the Logger interface
type StdLogger struct {
	logger interface {
		Printf(format string, v ...interface{})
	}
}

func NewStdLogger(logger interface{ Printf(format string, v ...interface{}) }) *StdLogger {
	return &StdLogger{logger: logger}
}

func (l *StdLogger) Printf(format string, v ...interface{}) {
	l.logger.Printf(format, v...)
}

func (l *StdLogger) Debug(format string, v ...interface{}) {
	// No-op for standard logger
}

func (l *StdLogger) Info(format string, v ...interface{}) {
	l.logger.Printf(format, v...)
}

func (l *StdLogger) Warn(format string, v ...interface{}) {
	l.logger.Printf(format, v...)
}

func (l *StdLogger) Error(format string, v ...interface{}) {
	l.logger.Printf(format, v...)
}

func (l *StdLogger) DebugEvent(ev RawEvent) {
	// No-op for standard logger
}
