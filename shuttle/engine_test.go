package shuttle

import (
	"fmt"
	"math"
	"testing"
	"time"
)

// testLogger implements Logger for testing
type testLogger struct{}

func (l *testLogger) Printf(format string, v ...interface{}) {}
func (l *testLogger) Debug(format string, v ...interface{})  {}
func (l *testLogger) Info(format string, v ...interface{})   {}
func (l *testLogger) Warn(format string, v ...interface{})   {}
func (l *testLogger) Error(format string, v ...interface{})  {}
func (l *testLogger) DebugEvent(ev RawEvent)                 {}

type motionCall struct {
	axis     Axis
	feed     float64
	distance float64
}

// recordFormatter captures formatter calls so tests can assert on the
// engine's computed values instead of parsing command text.
type recordFormatter struct {
	motions  []motionCall
	axes     []Axis
	incs     []float64
	holdWipe string
}

var _ Formatter = (*recordFormatter)(nil)

func (f *recordFormatter) Motion(axis Axis, feed, distance float64) string {
	f.motions = append(f.motions, motionCall{axis, feed, distance})
	return fmt.Sprintf("motion %c F%.6f D%.6f", axis.Letter(), feed, distance)
}

func (f *recordFormatter) BroadcastAxis(axis Axis) string {
	f.axes = append(f.axes, axis)
	return fmt.Sprintf("bcast axis %c", axis.Letter())
}

func (f *recordFormatter) BroadcastIncrement(increment float64) string {
	f.incs = append(f.incs, increment)
	return fmt.Sprintf("bcast inc %.3f", increment)
}

func (f *recordFormatter) FeedHoldWipe() string { return f.holdWipe }

func (f *recordFormatter) Control(ch rune) string { return fmt.Sprintf("ctl %c", ch) }

// testClock is a manually stepped time source.
type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time          { return c.now }
func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestEngine() (*Engine, *recordFormatter, *testClock) {
	format := &recordFormatter{}
	clock := &testClock{now: time.Unix(1000, 0)}
	e := NewEngine(&testLogger{}, format, 100*time.Millisecond)
	e.SetClock(clock.Now)
	return e, format, clock
}

func shuttleEvent(value int) RawEvent {
	return RawEvent{Type: EventTypeJogShuttle, Code: EventCodeShuttle, Value: int32(value)}
}

func jogEvent(value uint8) RawEvent {
	return RawEvent{Type: EventTypeJogShuttle, Code: EventCodeJog, Value: int32(value)}
}

func keyEvent(code uint16, value int32) RawEvent {
	return RawEvent{Type: EventTypeKey, Code: code, Value: value}
}

// --- Shuttle translator tests ---

func TestShuttle_CenterValuesStopMotion(t *testing.T) {
	for _, v := range []int{-1, 0, 1} {
		e, _, _ := newTestEngine()
		e.HandleEvent(shuttleEvent(5)) // deflect first
		if !e.ContinuousSend() {
			t.Fatalf("v=%d: expected continuous send after deflection", v)
		}

		e.HandleEvent(shuttleEvent(v))
		if e.Queue().Size() != 0 {
			t.Errorf("v=%d: queue size = %d, want 0", v, e.Queue().Size())
		}
		if e.ContinuousSend() {
			t.Errorf("v=%d: continuous send still set", v)
		}
	}
}

func TestShuttle_CenterQueuesFeedHoldWipe(t *testing.T) {
	e, format, _ := newTestEngine()
	format.holdWipe = "hold+wipe"

	e.HandleEvent(shuttleEvent(4))
	e.HandleEvent(shuttleEvent(0))
	if e.Queue().Size() != 1 {
		t.Fatalf("queue size = %d, want 1", e.Queue().Size())
	}
	sender := &recordSender{}
	e.Queue().FlushTo(sender)
	if sender.sent[0] != "hold+wipe" {
		t.Errorf("queued %q, want hold+wipe", sender.sent[0])
	}
}

func TestShuttle_DeflectionQueuesOneMotion(t *testing.T) {
	for v := -MaxShuttleDeflection; v <= MaxShuttleDeflection; v++ {
		if v >= -1 && v <= 1 {
			continue
		}
		e, format, _ := newTestEngine()
		e.HandleEvent(shuttleEvent(v))

		if !e.ContinuousSend() {
			t.Errorf("v=%d: continuous send not set", v)
		}
		if e.Queue().Size() != 1 {
			t.Errorf("v=%d: queue size = %d, want 1", v, e.Queue().Size())
		}
		if len(format.motions) != 1 {
			t.Fatalf("v=%d: %d motion commands, want 1", v, len(format.motions))
		}
		m := format.motions[0]
		if v > 0 && m.distance <= 0 {
			t.Errorf("v=%d: distance = %f, want positive", v, m.distance)
		}
		if v < 0 && m.distance >= 0 {
			t.Errorf("v=%d: distance = %f, want negative", v, m.distance)
		}
		if m.feed <= 0 {
			t.Errorf("v=%d: feed = %f, want positive", v, m.feed)
		}
	}
}

func TestShuttle_RedeflectionCoalesces(t *testing.T) {
	e, format, _ := newTestEngine()
	e.HandleEvent(shuttleEvent(3))
	e.HandleEvent(shuttleEvent(6))

	// Two deflections, but only the newest intent stays queued.
	if e.Queue().Size() != 1 {
		t.Errorf("queue size = %d, want 1", e.Queue().Size())
	}
	if len(format.motions) != 2 {
		t.Errorf("%d motion commands formatted, want 2", len(format.motions))
	}
}

func TestShuttle_OutOfRangeIgnored(t *testing.T) {
	e, format, _ := newTestEngine()
	e.HandleEvent(shuttleEvent(5))

	for _, v := range []int{8, -8, 100} {
		e.HandleEvent(shuttleEvent(v))
		if e.Queue().Size() != 1 {
			t.Errorf("v=%d: queue size = %d, want 1", v, e.Queue().Size())
		}
		if !e.ContinuousSend() {
			t.Errorf("v=%d: continuous send lost", v)
		}
	}
	if len(format.motions) != 1 {
		t.Errorf("%d motion commands, want 1", len(format.motions))
	}
}

// Full deflection on the largest increment must command exactly the
// maximum feed rate, with one cycle of travel plus overshoot.
func TestShuttle_MaxDeflectionHitsMaxFeed(t *testing.T) {
	e, format, _ := newTestEngine()
	// power-on defaults: X axis, speed index 3 (increment 1.0)
	if e.SpeedIndex() != 3 || e.ActiveAxis() != AxisX {
		t.Fatalf("unexpected defaults: axis %v speed %d", e.ActiveAxis(), e.SpeedIndex())
	}

	e.HandleEvent(shuttleEvent(7))
	if len(format.motions) != 1 {
		t.Fatalf("%d motion commands, want 1", len(format.motions))
	}
	m := format.motions[0]
	if m.axis != AxisX {
		t.Errorf("axis = %v, want X", m.axis)
	}
	if math.Abs(m.feed-MaxFeedRate) > 1e-9 {
		t.Errorf("feed = %f, want %f", m.feed, MaxFeedRate)
	}
	wantDist := (MaxFeedRate / 60.0) * (0.1 * Overshoot)
	if math.Abs(m.distance-wantDist) > 1e-9 {
		t.Errorf("distance = %f, want %f", m.distance, wantDist)
	}
}

// --- Jog translator tests ---

func TestJog_FirstSampleStoresOnly(t *testing.T) {
	e, format, _ := newTestEngine()
	e.HandleEvent(jogEvent(10))
	if len(format.motions) != 0 {
		t.Errorf("%d motion commands after first sample, want 0", len(format.motions))
	}
	if e.Queue().Size() != 0 {
		t.Errorf("queue size = %d, want 0", e.Queue().Size())
	}
}

func TestJog_ForwardDirection(t *testing.T) {
	e, format, _ := newTestEngine()
	e.HandleEvent(jogEvent(10))
	e.HandleEvent(jogEvent(12))

	if len(format.motions) != 1 {
		t.Fatalf("%d motion commands, want 1", len(format.motions))
	}
	m := format.motions[0]
	if m.distance != e.Increment() {
		t.Errorf("distance = %f, want %f", m.distance, e.Increment())
	}
	if m.feed != 0 {
		t.Errorf("feed = %f, want 0 (rapid)", m.feed)
	}
}

func TestJog_BackwardDirection(t *testing.T) {
	e, format, _ := newTestEngine()
	e.HandleEvent(jogEvent(10))
	e.HandleEvent(jogEvent(8))

	if len(format.motions) != 1 {
		t.Fatalf("%d motion commands, want 1", len(format.motions))
	}
	if got := format.motions[0].distance; got != -e.Increment() {
		t.Errorf("distance = %f, want %f", got, -e.Increment())
	}
}

func TestJog_WrapDeltaSign(t *testing.T) {
	// 1 -> 255 is two detents backward through the wrap, not 254 forward.
	e, format, _ := newTestEngine()
	e.HandleEvent(jogEvent(1))
	e.HandleEvent(jogEvent(255))

	if len(format.motions) != 1 {
		t.Fatalf("%d motion commands, want 1", len(format.motions))
	}
	if got := format.motions[0].distance; got >= 0 {
		t.Errorf("distance = %f, want negative", got)
	}
	if e.jogCounter != 255 {
		t.Errorf("stored counter = %d, want 255", e.jogCounter)
	}
}

func TestJog_CounterWalksThroughSkippedZero(t *testing.T) {
	// The driver never reports counter value 0; stepping 254 -> 2 must
	// still leave the stored counter at 2 with exactly one command.
	e, format, _ := newTestEngine()
	e.HandleEvent(jogEvent(254))
	e.HandleEvent(jogEvent(2))

	if e.jogCounter != 2 {
		t.Errorf("stored counter = %d, want 2", e.jogCounter)
	}
	if len(format.motions) != 1 {
		t.Errorf("%d motion commands, want 1", len(format.motions))
	}
}

func TestJog_SyntheticZeroAfterQuietInterval(t *testing.T) {
	e, _, clock := newTestEngine()

	e.HandleEvent(shuttleEvent(5))
	if !e.PendingSyntheticZero() {
		t.Fatal("expected synthetic zero obligation after deflection")
	}

	// Within the quiet interval the obligation stays pending.
	clock.Advance(time.Millisecond)
	e.HandleEvent(jogEvent(10))
	if !e.PendingSyntheticZero() {
		t.Fatal("obligation resolved too early")
	}
	if !e.ContinuousSend() {
		t.Fatal("continuous send cleared too early")
	}

	// Once the ring has been quiet long enough, the next jog event
	// stands in for the center return the hardware never sent.
	clock.Advance(ShuttleQuietInterval)
	e.HandleEvent(jogEvent(11))
	if e.PendingSyntheticZero() {
		t.Error("obligation still pending after quiet interval")
	}
	if e.ContinuousSend() {
		t.Error("continuous send still set after synthetic zero")
	}
	if e.Queue().Size() != 0 {
		t.Errorf("queue size = %d, want 0 after synthetic zero", e.Queue().Size())
	}
}

// --- Button handling tests ---

func TestKey_AxisSelection(t *testing.T) {
	cases := []struct {
		code uint16
		want Axis
	}{
		{XAxisButton, AxisX},
		{YAxisButton, AxisY},
		{ZAxisButton, AxisZ},
		{AAxisButton, AxisA},
	}
	for _, tc := range cases {
		e, format, _ := newTestEngine()
		e.HandleEvent(keyEvent(tc.code, KeyPress))
		if e.ActiveAxis() != tc.want {
			t.Errorf("code %d: axis = %v, want %v", tc.code, e.ActiveAxis(), tc.want)
		}
		if len(format.axes) != 1 || format.axes[0] != tc.want {
			t.Errorf("code %d: broadcasts = %v, want [%v]", tc.code, format.axes, tc.want)
		}
		if e.Queue().Size() != 1 {
			t.Errorf("code %d: queue size = %d, want 1", tc.code, e.Queue().Size())
		}
	}
}

func TestKey_PressEdgeOnly(t *testing.T) {
	e, format, _ := newTestEngine()

	e.HandleEvent(keyEvent(XAxisButton, KeyPress))
	e.HandleEvent(keyEvent(XAxisButton, KeyRelease))
	if len(format.axes) != 1 {
		t.Errorf("%d broadcasts after press+release, want 1", len(format.axes))
	}

	// A second press is a new discrete action: one more broadcast, and
	// it supersedes whatever was still queued.
	e.HandleEvent(keyEvent(XAxisButton, KeyPress))
	if len(format.axes) != 2 {
		t.Errorf("%d broadcasts after second press, want 2", len(format.axes))
	}
	if e.Queue().Size() != 1 {
		t.Errorf("queue size = %d, want 1", e.Queue().Size())
	}
}

func TestKey_IncrementCyclesModulo(t *testing.T) {
	e, format, _ := newTestEngine()
	want := []float64{0.001, 0.01, 0.1, 1.0}
	for i := 0; i < NumSpeedLevels; i++ {
		e.HandleEvent(keyEvent(IncrementButton, KeyPress))
		if e.Increment() != want[i] {
			t.Errorf("press %d: increment = %f, want %f", i+1, e.Increment(), want[i])
		}
	}
	if e.SpeedIndex() != NumSpeedLevels-1 {
		t.Errorf("speed index = %d, want %d after full cycle", e.SpeedIndex(), NumSpeedLevels-1)
	}
	if len(format.incs) != NumSpeedLevels {
		t.Errorf("%d increment broadcasts, want %d", len(format.incs), NumSpeedLevels)
	}
}

func TestKey_UnknownCodeDropped(t *testing.T) {
	e, format, _ := newTestEngine()
	e.HandleEvent(keyEvent(300, KeyPress))
	if e.Queue().Size() != 0 {
		t.Errorf("queue size = %d, want 0", e.Queue().Size())
	}
	if len(format.axes)+len(format.incs) != 0 {
		t.Error("unexpected broadcast for unknown key code")
	}
	if e.ActiveAxis() != AxisX || e.SpeedIndex() != NumSpeedLevels-1 {
		t.Error("state changed by unknown key code")
	}
}

func TestKey_PressClearsContinuousSend(t *testing.T) {
	e, _, _ := newTestEngine()
	e.HandleEvent(shuttleEvent(5))
	e.HandleEvent(keyEvent(YAxisButton, KeyPress))
	if e.ContinuousSend() {
		t.Error("continuous send survived a superseding button press")
	}
}

// --- Decoder tests ---

func TestHandleEvent_NoOpTypes(t *testing.T) {
	e, format, _ := newTestEngine()
	e.HandleEvent(RawEvent{Type: EventTypeDone})
	e.HandleEvent(RawEvent{Type: EventTypeActiveKey, Code: 1, Value: 1})
	e.HandleEvent(RawEvent{Type: 9, Code: 7, Value: 1})
	e.HandleEvent(RawEvent{Type: EventTypeJogShuttle, Code: 9, Value: 1})

	if e.Queue().Size() != 0 || len(format.motions) != 0 {
		t.Error("no-op events produced commands")
	}
}

// --- Continuous send / reset tests ---

func TestRequeueContinuous(t *testing.T) {
	e, _, _ := newTestEngine()
	e.HandleEvent(shuttleEvent(6))

	sender := &recordSender{}
	e.Queue().FlushTo(sender)
	e.RequeueContinuous()
	if e.Queue().Size() != 1 {
		t.Fatalf("queue size = %d, want 1 after requeue", e.Queue().Size())
	}

	e.HandleEvent(shuttleEvent(0))
	e.RequeueContinuous()
	if e.Queue().Size() != 0 {
		t.Errorf("queue size = %d, want 0 once centered", e.Queue().Size())
	}
}

func TestQueueControlSupersedesMotion(t *testing.T) {
	e, _, _ := newTestEngine()
	e.HandleEvent(shuttleEvent(5))

	e.QueueControl('!')
	if e.ContinuousSend() {
		t.Error("continuous send survived a control command")
	}
	if e.Queue().Size() != 1 {
		t.Fatalf("queue size = %d, want 1", e.Queue().Size())
	}
	sender := &recordSender{}
	e.Queue().FlushTo(sender)
	if sender.sent[0] != "ctl !" {
		t.Errorf("queued %q, want control command", sender.sent[0])
	}
}

func TestEngineReset(t *testing.T) {
	e, _, _ := newTestEngine()
	e.HandleEvent(keyEvent(AAxisButton, KeyPress))
	e.HandleEvent(shuttleEvent(5))

	e.Reset()
	if e.Queue().Size() != 0 {
		t.Errorf("queue size = %d, want 0", e.Queue().Size())
	}
	if e.ContinuousSend() {
		t.Error("continuous send survived reset")
	}
	// Operator selections survive a reconnect.
	if e.ActiveAxis() != AxisA {
		t.Errorf("axis = %v, want A", e.ActiveAxis())
	}
}
