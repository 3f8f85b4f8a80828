package main

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/go-redis/redis/v8"

	"shuttlecp/shuttle"
)

// StatusTx mirrors pendant state into Redis so UIs and other services
// can observe the active axis, increment and connection health. It is
// strictly an observer channel: failures here are logged and never
// affect the motion command flow.
type StatusTx struct {
	log   *LeveledLogger
	redis *redis.Client
	mu    sync.Mutex
	ctx   context.Context
}

func NewStatusTx(logger *LeveledLogger, redis *redis.Client) *StatusTx {
	return &StatusTx{
		log:   logger,
		redis: redis,
		ctx:   context.Background(),
	}
}

func (tx *StatusTx) Destroy() {}

// SendAxisSpeed publishes the active axis and distance increment.
func (tx *StatusTx) SendAxisSpeed(axis shuttle.Axis, increment float64) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	pipe := tx.redis.Pipeline()

	pipe.HSet(tx.ctx, "pendant", map[string]interface{}{
		"axis":      strings.ToLower(axis.String()),
		"increment": fmt.Sprintf("%.3f", increment),
	})
	pipe.Publish(tx.ctx, "pendant axis", nil)

	_, err := pipe.Exec(tx.ctx)
	if err != nil {
		return fmt.Errorf("failed to send axis/speed: %v", err)
	}

	return nil
}

// SendConnection publishes device and CNC transport liveness.
func (tx *StatusTx) SendConnection(deviceConnected, cncConnected bool) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	pipe := tx.redis.Pipeline()

	pipe.HSet(tx.ctx, "pendant", map[string]interface{}{
		"device-connected": map[bool]string{true: "on", false: "off"}[deviceConnected],
		"cnc-connected":    map[bool]string{true: "on", false: "off"}[cncConnected],
	})
	pipe.Publish(tx.ctx, "pendant connection", nil)

	_, err := pipe.Exec(tx.ctx)
	if err != nil {
		return fmt.Errorf("failed to send connection state: %v", err)
	}

	return nil
}
