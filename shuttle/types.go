package shuttle

import "time"

// Event protocol of the Contour ShuttleXpress / ShuttlePro HID devices,
// as reported by the Linux input layer.

// RawEvent.Type values.
const (
	EventTypeDone       = 0
	EventTypeKey        = 1
	EventTypeJogShuttle = 2
	EventTypeActiveKey  = 4
)

// RawEvent.Code values when Type == EventTypeJogShuttle.
const (
	EventCodeJog     = 7
	EventCodeShuttle = 8
)

// RawEvent.Code values when Type == EventTypeKey. The device numbers
// its momentary buttons upward from 256.
const (
	XAxisButton     = 260
	YAxisButton     = 261
	ZAxisButton     = 262
	AAxisButton     = 263
	IncrementButton = 264
)

// RawEvent.Value for key events: 1 on press, 0 on release.
const (
	KeyRelease = 0
	KeyPress   = 1
)

// RawEvent is one decoded record from the input device.
type RawEvent struct {
	Type  uint16
	Code  uint16
	Value int32
}

// Axis identifies the machine axis that jog and shuttle motion applies to.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
	AxisA
)

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "X"
	case AxisY:
		return "Y"
	case AxisZ:
		return "Z"
	case AxisA:
		return "A"
	default:
		return "X"
	}
}

// Letter returns the single G-code axis letter.
func (a Axis) Letter() rune {
	return rune(a.String()[0])
}

// NumSpeedLevels is how many distance increments the increment button
// cycles through.
const NumSpeedLevels = 4

// speedIncrements maps the active speed index to the distance moved per
// jog detent, in machine length units.
var speedIncrements = [NumSpeedLevels]float64{0.001, 0.01, 0.1, 1.0}

// IncrementFor returns the distance increment for a speed index.
func IncrementFor(index int) float64 {
	if index < 0 || index >= NumSpeedLevels {
		return speedIncrements[1]
	}
	return speedIncrements[index]
}

// Motion scaling constants.
const (
	// MaxFeedRate is the feed rate commanded at full shuttle deflection
	// on the largest increment, in length units per minute.
	MaxFeedRate = 1500.0

	// Overshoot stretches the per-cycle travel so the machine is still
	// moving when the next cycle's command arrives, masking deceleration
	// at the end of each continuous move.
	Overshoot = 1.06

	// MaxShuttleDeflection bounds the shuttle ring's reported position.
	MaxShuttleDeflection = 7

	// MaxCmdLength bounds every command string pushed onto the queue.
	MaxCmdLength = 256

	// ShuttleQuietInterval is how long the shuttle may stay silent after
	// a non-zero deflection before a jog event makes us synthesize the
	// center-return the hardware failed to report.
	ShuttleQuietInterval = 5 * time.Millisecond
)
