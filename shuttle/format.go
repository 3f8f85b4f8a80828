package shuttle

import (
	"fmt"
	"net/url"
	"unicode"
)

// Formatter renders engine output into one backend dialect. The dialect
// is selected once at configuration time; the engine never branches on
// it per command.
type Formatter interface {
	// Motion renders a relative move on axis. A positive feed selects a
	// feed-rate move (G1); feed <= 0 renders a rapid step (G0).
	Motion(axis Axis, feed, distance float64) string

	// BroadcastAxis renders the notification emitted when the active
	// axis changes. Empty string means the dialect has no broadcast
	// channel and nothing is queued.
	BroadcastAxis(axis Axis) string

	// BroadcastIncrement renders the notification emitted when the
	// active distance increment changes.
	BroadcastIncrement(increment float64) string

	// FeedHoldWipe renders the motion-cancel command queued when the
	// shuttle recenters, or "" when the backend needs none.
	FeedHoldWipe() string

	// Control renders a single-character control command (feed hold,
	// resume, soft reset).
	Control(ch rune) string
}

// SPJSFormatter renders commands for the Serial Port JSON Server used
// with ChiliPeppr. Motion goes out as "send <port> ..." lines; axis and
// increment changes are broadcast so pendant UIs can mirror them.
type SPJSFormatter struct {
	// SerialDevice is the serial port SPJS forwards commands to.
	SerialDevice string

	// TinyG wants an explicit feed hold and wipe when the shuttle
	// recenters; GRBL ignores the wipe so it is skipped by default.
	TinyG bool
}

var _ Formatter = (*SPJSFormatter)(nil)

func (f *SPJSFormatter) Motion(axis Axis, feed, distance float64) string {
	if feed > 0 {
		return fmt.Sprintf("send %s G91 G1 F%.3f %c%.3f\nG90\n", f.SerialDevice, feed, axis.Letter(), distance)
	}
	return fmt.Sprintf("send %s G91 G0 %c%.3f\nG90\n", f.SerialDevice, axis.Letter(), distance)
}

func (f *SPJSFormatter) BroadcastAxis(axis Axis) string {
	return fmt.Sprintf("broadcast {\"id\":\"shuttlexpress\", \"action\":\"%c\"}\n", unicode.ToLower(axis.Letter()))
}

func (f *SPJSFormatter) BroadcastIncrement(increment float64) string {
	return fmt.Sprintf("broadcast {\"id\":\"shuttlexpress\", \"action\":\"%.3fmm\"}\n", increment)
}

func (f *SPJSFormatter) FeedHoldWipe() string {
	if !f.TinyG {
		return ""
	}
	return fmt.Sprintf("send %s !%%\n", f.SerialDevice)
}

func (f *SPJSFormatter) Control(ch rune) string {
	return fmt.Sprintf("send %s %c\n", f.SerialDevice, ch)
}

// BCNCFormatter renders each command as a URL for the bCNC pendant
// HTTP server. bCNC has no broadcast channel, so state notifications
// render empty.
type BCNCFormatter struct {
	Host string
	Port int
}

var _ Formatter = (*BCNCFormatter)(nil)

func (f *BCNCFormatter) Motion(axis Axis, feed, distance float64) string {
	if feed > 0 {
		return fmt.Sprintf("http://%s:%d/send?gcode=G91G1F%.3f%c%.3f%%0DG90", f.Host, f.Port, feed, axis.Letter(), distance)
	}
	return fmt.Sprintf("http://%s:%d/send?gcode=G91G0%c%.3f%%0DG90", f.Host, f.Port, axis.Letter(), distance)
}

func (f *BCNCFormatter) BroadcastAxis(axis Axis) string {
	return ""
}

func (f *BCNCFormatter) BroadcastIncrement(increment float64) string {
	return ""
}

func (f *BCNCFormatter) FeedHoldWipe() string {
	return ""
}

func (f *BCNCFormatter) Control(ch rune) string {
	return fmt.Sprintf("http://%s:%d/send?gcode=%s", f.Host, f.Port, url.QueryEscape(string(ch)))
}
