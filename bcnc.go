package main

import (
	"fmt"
	"io"
	"net/http"
	"time"
)

// BCNCTransport sends commands to the bCNC pendant HTTP server. Each
// command string is already a complete URL (the bCNC formatter renders
// it that way), so the transport itself holds no connection state.
type BCNCTransport struct {
	log    *LeveledLogger
	client *http.Client
}

var _ Transport = (*BCNCTransport)(nil)

func NewBCNCTransport(logger *LeveledLogger) *BCNCTransport {
	return &BCNCTransport{
		log: logger,
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// Connect is a no-op: HTTP is connectionless from the engine's point of
// view, and the first failing Send triggers the usual reconnect path.
func (t *BCNCTransport) Connect() error {
	t.log.Info("Using HTTP for bCNC")
	return nil
}

func (t *BCNCTransport) Send(cmd string) error {
	resp, err := t.client.Get(cmd)
	if err != nil {
		return fmt.Errorf("bCNC request: %w", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("bCNC request failed: %s", resp.Status)
	}
	return nil
}

func (t *BCNCTransport) Close() {}
