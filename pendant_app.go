package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"

	"shuttlecp/shuttle"
)

const (
	// CyclePeriod is the fixed duration of one poll/translate/flush
	// cycle. A slow cycle is shorter-slept, never compensated later.
	CyclePeriod = 100 * time.Millisecond

	ConnectRetryTime = time.Second
)

type PendantApp struct {
	log       *LeveledLogger
	opts      *Options
	engine    *shuttle.Engine
	conn      shuttle.ConnState
	transport Transport
	device    *Device
	switches  *AuxSwitches
	redis     *redis.Client
	statusTx  *StatusTx

	// last published axis/speed, so Redis only sees changes
	lastAxis  shuttle.Axis
	lastSpeed int

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func NewPendantApp(opts *Options) (*PendantApp, error) {
	ctx, cancel := context.WithCancel(context.Background())

	app := &PendantApp{
		log:    NewLeveledLogger(log.New(log.Writer(), fmt.Sprintf("%s: ", ProjectName), log.LstdFlags), opts.LogLevel),
		opts:   opts,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	var format shuttle.Formatter
	switch opts.Backend {
	case BackendBCNC:
		format = &shuttle.BCNCFormatter{Host: opts.CNCHost, Port: opts.CNCPort}
	default:
		format = &shuttle.SPJSFormatter{SerialDevice: opts.SerialDevice, TinyG: opts.TinyG}
	}

	app.engine = shuttle.NewEngine(app.log, format, CyclePeriod)
	app.lastAxis = app.engine.ActiveAxis()
	app.lastSpeed = app.engine.SpeedIndex()

	app.transport = NewTransport(app.log, opts)

	// Redis is an observer channel only: if it is unreachable the
	// pendant still has to move the machine.
	if opts.RedisServerAddr != "" {
		app.redis = redis.NewClient(&redis.Options{
			Addr:         fmt.Sprintf("%s:%d", opts.RedisServerAddr, opts.RedisServerPort),
			Password:     "",
			DB:           0,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  2 * time.Second,
			WriteTimeout: 2 * time.Second,
		})

		connectCtx, connectCancel := context.WithTimeout(ctx, 5*time.Second)
		err := app.redis.Ping(connectCtx).Err()
		connectCancel()
		if err != nil {
			app.log.Warn("Redis unreachable at %s:%d, status broadcast disabled: %v",
				opts.RedisServerAddr, opts.RedisServerPort, err)
			app.redis.Close()
			app.redis = nil
		} else {
			app.statusTx = NewStatusTx(app.log, app.redis)
			app.log.Info("Status broadcast connected to Redis at %s:%d",
				opts.RedisServerAddr, opts.RedisServerPort)
		}
	}

	if opts.GPIOChip != "" {
		switches, err := NewAuxSwitches(app.log, opts)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed to set up auxiliary switches: %v", err)
		}
		app.switches = switches
		app.log.Info("Auxiliary switches initialized on %s", opts.GPIOChip)
	}

	go app.run()

	return app, nil
}

// run owns all connection and cycle state. Everything below here runs
// on this one goroutine, so the engine needs no locking.
func (app *PendantApp) run() {
	defer close(app.done)

	for app.ctx.Err() == nil {
		app.connectTransport()
		app.connectDevice()
		if app.ctx.Err() != nil {
			return
		}
		app.cycleLoop()
		app.sleep(ConnectRetryTime)
	}
}

func (app *PendantApp) connectTransport() {
	for app.ctx.Err() == nil {
		if err := app.transport.Connect(); err != nil {
			app.log.Error("connect CNC backend: %v", err)
			app.sleep(ConnectRetryTime)
			continue
		}
		app.conn.TransportConnected = true
		app.conn.ReconnectRequested = false
		app.log.Info("CNC backend connected")
		app.publishConnection()
		return
	}
}

func (app *PendantApp) connectDevice() {
	for app.ctx.Err() == nil && !app.conn.DeviceConnected {
		dev, err := OpenDevice(app.log, app.opts.DevicePath)
		if err != nil {
			app.log.Error("%v", err)
			app.sleep(ConnectRetryTime)
			continue
		}
		app.device = dev
		app.conn.DeviceConnected = true
		app.log.Info("Shuttle device connected")
		app.publishConnection()
	}
}

// cycleLoop is the steady state: poll, translate, flush, sleep the
// remainder of the period. It returns once the session needs a full
// reset.
func (app *PendantApp) cycleLoop() {
	for app.ctx.Err() == nil {
		if app.conn.NeedsReset() {
			app.resetConnections()
			return
		}

		start := time.Now()

		app.drainDeviceEvents()
		app.pollSwitches()
		app.flushQueue()
		app.publishAxisSpeed()

		if remaining := CyclePeriod - time.Since(start); remaining > 0 {
			app.sleep(remaining)
		}
	}
}

// drainDeviceEvents handles every event the device has pending, never
// blocking on a quiet device.
func (app *PendantApp) drainDeviceEvents() {
	for {
		ready, err := app.device.Ready()
		if err != nil {
			app.log.Error("%v", err)
			app.conn.RequestReconnect()
			return
		}
		if !ready {
			return
		}

		ev, err := app.device.ReadEvent()
		if err != nil {
			app.log.Error("%v", err)
			app.conn.RequestReconnect()
			return
		}

		app.log.DebugEvent(ev)
		app.engine.HandleEvent(ev)
	}
}

func (app *PendantApp) pollSwitches() {
	if app.switches == nil {
		return
	}
	ev := app.switches.Poll()
	if ev.Reconnect {
		app.log.Info("RECONNECT requested")
		app.conn.ReconnectRequested = true
	}
	if ev.FeedHold {
		app.engine.QueueControl(FeedHoldChar)
	}
	if ev.Resume {
		app.engine.QueueControl(ResumeChar)
	}
	if ev.Reset {
		app.engine.QueueControl(ResetChar)
	}
}

// flushQueue sends everything queued this cycle. A shortfall between
// submitted and accepted commands means the backend is gone: drop the
// transport so the connection manager rebuilds the session.
func (app *PendantApp) flushQueue() {
	if !app.conn.TransportConnected {
		return
	}

	submitted := app.engine.Queue().Size()
	sent, err := app.engine.Queue().FlushTo(app.transport)
	if err != nil {
		app.log.Error("send commands: %v", err)
	}
	if sent != submitted {
		app.conn.TransportConnected = false
		return
	}

	// While the shuttle is held away from center, the same motion
	// command goes out again next cycle.
	app.engine.RequeueContinuous()
}

func (app *PendantApp) publishAxisSpeed() {
	if app.statusTx == nil {
		return
	}
	axis, speed := app.engine.ActiveAxis(), app.engine.SpeedIndex()
	if axis == app.lastAxis && speed == app.lastSpeed {
		return
	}
	if err := app.statusTx.SendAxisSpeed(axis, app.engine.Increment()); err != nil {
		app.log.Warn("%v", err)
		return
	}
	app.lastAxis = axis
	app.lastSpeed = speed
}

func (app *PendantApp) publishConnection() {
	if app.statusTx == nil {
		return
	}
	if err := app.statusTx.SendConnection(app.conn.DeviceConnected, app.conn.TransportConnected); err != nil {
		app.log.Warn("%v", err)
	}
}

// resetConnections tears the whole session down to the initial state.
// Device and transport are cheap to reopen, so there is no partial
// recovery: queue cleared, continuous send cleared, both connections
// dropped, then the connect sequence restarts from scratch.
func (app *PendantApp) resetConnections() {
	app.log.Info("============ Reinitializing connections")
	app.engine.Reset()
	app.conn.Reset()
	if app.device != nil {
		app.device.Close()
		app.device = nil
	}
	app.transport.Close()
	app.publishConnection()
}

func (app *PendantApp) sleep(d time.Duration) {
	select {
	case <-time.After(d):
	case <-app.ctx.Done():
	}
}

func (app *PendantApp) Destroy() {
	app.log.Printf("Shutting down pendant...")

	if app.cancel != nil {
		app.cancel()
	}
	<-app.done

	if app.device != nil {
		app.device.Close()
		app.log.Printf("Device closed")
	}

	if app.transport != nil {
		app.transport.Close()
		app.log.Printf("Transport closed")
	}

	if app.switches != nil {
		app.switches.Close()
		app.log.Printf("Auxiliary switches released")
	}

	if app.statusTx != nil {
		app.statusTx.Destroy()
	}

	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.log.Printf("Error closing Redis connection: %v", err)
		} else {
			app.log.Printf("Redis connection closed")
		}
	}

	app.log.Printf("Pendant shutdown complete")
}
