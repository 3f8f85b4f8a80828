package main

import (
	"fmt"
	"io"
	"sync"

	"golang.org/x/net/websocket"
)

// SPJSTransport sends commands over the Serial Port JSON Server
// websocket. One command string goes out per websocket frame; a write
// error drops the connection so the manager reconnects from scratch.
type SPJSTransport struct {
	log *LeveledLogger
	url string

	mx sync.Mutex
	ws *websocket.Conn
}

var _ Transport = (*SPJSTransport)(nil)

func NewSPJSTransport(logger *LeveledLogger, host string, port int) *SPJSTransport {
	return &SPJSTransport{
		log: logger,
		url: fmt.Sprintf("ws://%s:%d/ws", host, port),
	}
}

func (t *SPJSTransport) Connect() error {
	t.mx.Lock()
	defer t.mx.Unlock()

	if t.ws != nil {
		t.ws.Close()
		t.ws = nil
	}

	t.log.Info("Connecting to %s", t.url)
	ws, err := websocket.Dial(t.url, "ws", "http://localhost")
	if err != nil {
		return fmt.Errorf("dial SPJS: %w", err)
	}

	t.ws = ws
	return nil
}

func (t *SPJSTransport) Send(cmd string) error {
	t.mx.Lock()
	defer t.mx.Unlock()

	if t.ws == nil {
		return fmt.Errorf("SPJS not connected")
	}

	if _, err := io.WriteString(t.ws, cmd); err != nil {
		t.ws.Close()
		t.ws = nil
		return fmt.Errorf("write SPJS: %w", err)
	}
	return nil
}

func (t *SPJSTransport) Close() {
	t.mx.Lock()
	defer t.mx.Unlock()

	if t.ws != nil {
		t.ws.Close()
		t.ws = nil
	}
}
