package main

type LogLevel int

const (
	LogLevelNone  LogLevel = 0
	LogLevelError LogLevel = 1
	LogLevelWarn  LogLevel = 2
	LogLevelInfo  LogLevel = 3
	LogLevelDebug LogLevel = 4
)

// BackendType selects the command dialect and transport, fixed for the
// lifetime of the process.
type BackendType int

const (
	BackendSPJS BackendType = iota
	BackendBCNC
)

type Options struct {
	LogLevel        LogLevel
	DevicePath      string
	Backend         BackendType
	CNCHost         string
	CNCPort         int
	SerialDevice    string
	TinyG           bool
	RedisServerAddr string
	RedisServerPort uint16
	GPIOChip        string
	FeedHoldLine    int
	ResumeLine      int
	ResetLine       int
	ReconnectLine   int
}
