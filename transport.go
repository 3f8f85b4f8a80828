package main

import "shuttlecp/shuttle"

// Transport delivers command strings to the CNC backend. Send failures
// are reported to the caller; the connection manager decides when to
// tear down and reconnect.
type Transport interface {
	shuttle.CommandSender

	// Connect (re)establishes the backend connection, dropping any
	// previous one first.
	Connect() error

	Close()
}

// NewTransport builds the transport matching the configured backend.
func NewTransport(logger *LeveledLogger, opts *Options) Transport {
	switch opts.Backend {
	case BackendBCNC:
		return NewBCNCTransport(logger)
	default:
		return NewSPJSTransport(logger, opts.CNCHost, opts.CNCPort)
	}
}
