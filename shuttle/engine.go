package shuttle

import (
	"log"
	"time"
)

// Sentinels for the jog counter and shuttle deflection before the first
// sample arrives. Real jog values are 0..255, real deflections -7..7.
const (
	unsetCounter = -1
	unsetShuttle = 0xffff
)

// Engine turns decoded device events into queued backend commands. All
// state lives here and is touched only from the single cycle goroutine,
// so no locking is needed.
type Engine struct {
	log    Logger
	format Formatter
	queue  *CommandQueue

	// clock is injectable so the shuttle quiet-interval logic is
	// testable without real sleeps.
	clock func() time.Time

	cyclePeriod time.Duration

	activeAxis  Axis
	activeSpeed int

	jogCounter int

	shuttleValue      int
	lastShuttleTime   time.Time
	needSyntheticZero bool

	continuousSend bool
	lastCommand    string
}

// NewEngine creates an engine with the device's power-on defaults:
// X axis active on the largest increment, no samples seen yet.
func NewEngine(logger Logger, format Formatter, cyclePeriod time.Duration) *Engine {
	if logger == nil {
		logger = NewStdLogger(log.Default())
	}
	return &Engine{
		log:          logger,
		format:       format,
		queue:        NewCommandQueue(),
		clock:        time.Now,
		cyclePeriod:  cyclePeriod,
		activeAxis:   AxisX,
		activeSpeed:  NumSpeedLevels - 1,
		jogCounter:   unsetCounter,
		shuttleValue: unsetShuttle,
	}
}

// SetClock replaces the time source. Tests use this to step through the
// shuttle quiet interval deterministically.
func (e *Engine) SetClock(clock func() time.Time) {
	e.clock = clock
}

func (e *Engine) Queue() *CommandQueue { return e.queue }

func (e *Engine) ActiveAxis() Axis { return e.activeAxis }

func (e *Engine) SpeedIndex() int { return e.activeSpeed }

// Increment returns the distance moved per jog detent at the active
// speed level.
func (e *Engine) Increment() float64 { return IncrementFor(e.activeSpeed) }

// ContinuousSend reports whether the last motion command should be
// re-issued every cycle (shuttle held away from center).
func (e *Engine) ContinuousSend() bool { return e.continuousSend }

// PendingSyntheticZero reports whether a center-return event is still
// owed for the last non-zero shuttle deflection.
func (e *Engine) PendingSyntheticZero() bool { return e.needSyntheticZero }

// HandleEvent dispatches one raw device event. Unknown types and codes
// are logged and dropped, never fatal.
func (e *Engine) HandleEvent(ev RawEvent) {
	switch ev.Type {
	case EventTypeDone, EventTypeActiveKey:
	case EventTypeKey:
		e.handleKey(ev.Code, ev.Value)
	case EventTypeJogShuttle:
		switch ev.Code {
		case EventCodeJog:
			e.handleJog(uint8(ev.Value))
		case EventCodeShuttle:
			e.handleShuttle(int(ev.Value))
		default:
			e.log.Warn("jogshuttle(%d, %d) invalid code", ev.Code, ev.Value)
		}
	default:
		e.log.Warn("event type %d invalid", ev.Type)
	}
}

// handleKey acts on button press edges only; releases are ignored. Each
// acted press supersedes whatever was queued and emits one broadcast
// notification so observers can mirror the new axis or increment.
func (e *Engine) handleKey(code uint16, value int32) {
	if value != KeyPress {
		return
	}

	var cmd string
	switch code {
	case XAxisButton:
		e.activeAxis = AxisX
		cmd = e.format.BroadcastAxis(e.activeAxis)
	case YAxisButton:
		e.activeAxis = AxisY
		cmd = e.format.BroadcastAxis(e.activeAxis)
	case ZAxisButton:
		e.activeAxis = AxisZ
		cmd = e.format.BroadcastAxis(e.activeAxis)
	case AAxisButton:
		e.activeAxis = AxisA
		cmd = e.format.BroadcastAxis(e.activeAxis)
	case IncrementButton:
		e.activeSpeed = (e.activeSpeed + 1) % NumSpeedLevels
		cmd = e.format.BroadcastIncrement(e.Increment())
	default:
		e.log.Warn("key(%d, %d) out of range", code, value)
		return
	}

	e.queue.Clear()
	e.continuousSend = false
	if cmd != "" {
		e.queue.Push(cmd)
		e.log.Debug("queued %q", cmd)
	}
}

// handleShuttle runs the CENTERED/DEFLECTED state machine for one
// shuttle ring sample.
//
// Values 0, 1 and -1 all count as a return to center: the device
// intermittently fails to report exactly 0, so stopping only on 0 would
// leave the machine creeping on the smallest deflection.
func (e *Engine) handleShuttle(value int) {
	if value < -MaxShuttleDeflection || value > MaxShuttleDeflection {
		e.log.Warn("shuttle(%d) out of range", value)
		return
	}

	direction := 1
	if value < 0 {
		direction = -1
	}

	e.lastShuttleTime = e.clock()
	e.needSyntheticZero = value != 0
	if value != e.shuttleValue {
		e.log.Debug("shuttle moved to %d", value)
		e.shuttleValue = value
	}

	// Only the newest deflection matters while shuttling.
	e.queue.Clear()

	if value >= -1 && value <= 1 {
		e.continuousSend = false
		if cmd := e.format.FeedHoldWipe(); cmd != "" {
			e.queue.Push(cmd)
		}
		return
	}

	e.continuousSend = true

	// Scale feed so full deflection at the largest increment hits
	// MaxFeedRate, then size the move to one cycle of travel plus the
	// overshoot margin: the next cycle re-issues an updated command
	// before this move finishes decelerating.
	feed := e.Increment() * float64(direction) * float64(value) * (MaxFeedRate / (MaxShuttleDeflection * speedIncrements[NumSpeedLevels-1]))
	distance := (feed / 60.0) * (e.cyclePeriod.Seconds() * Overshoot) * float64(direction)

	cmd := e.format.Motion(e.activeAxis, feed, distance)
	e.lastCommand = cmd
	e.queue.Push(cmd)
}

// handleJog reconstructs direction from the wheel's 8-bit wrapping
// counter and emits one rapid step per detent.
//
// The first sample is only stored: direction needs two samples. The
// shuttle center position is never reported by the hardware; a jog
// event is typically the first thing seen after the ring springs back,
// so an owed synthetic zero is resolved here once the ring has been
// quiet long enough.
func (e *Engine) handleJog(value uint8) {
	if e.jogCounter != unsetCounter && int(value) != e.jogCounter {
		direction := 1
		if (int(value)-e.jogCounter)&0x80 != 0 {
			direction = -1
		}
		distance := e.Increment() * float64(direction)
		cmd := e.format.Motion(e.activeAxis, 0, distance)
		e.lastCommand = cmd
		e.queue.Push(cmd)
	}

	if e.needSyntheticZero && e.clock().Sub(e.lastShuttleTime) >= ShuttleQuietInterval {
		e.handleShuttle(0)
		e.needSyntheticZero = false
	}

	// The driver skips the event for counter value 0, so the stored
	// counter may be more than one detent behind. Walk it forward to
	// the new value without emitting further commands.
	if e.jogCounter != unsetCounter {
		v := int(value) & 0xff
		direction := 1
		if (v-e.jogCounter)&0x80 != 0 {
			direction = -1
		}
		for e.jogCounter != v {
			e.jogCounter = (e.jogCounter + direction) & 0xff
		}
	}
	e.jogCounter = int(value)
}

// QueueControl supersedes all pending motion with one control command
// (feed hold, resume, reset). Used by auxiliary panel switches.
func (e *Engine) QueueControl(ch rune) {
	e.queue.Clear()
	e.continuousSend = false
	if cmd := e.format.Control(ch); cmd != "" {
		e.queue.Push(cmd)
	}
}

// RequeueContinuous re-pushes the last issued motion command. The cycle
// scheduler calls this after each flush while the shuttle is held away
// from center.
func (e *Engine) RequeueContinuous() {
	if e.continuousSend && e.lastCommand != "" {
		e.queue.Push(e.lastCommand)
	}
}

// Reset drops all queued commands and the continuous-send obligation.
// Called when connections are torn down; axis and increment selections
// survive a reconnect.
func (e *Engine) Reset() {
	e.queue.Clear()
	e.continuousSend = false
}
