package main

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// Control characters queued for the auxiliary switches, per GRBL's
// realtime command set.
const (
	FeedHoldChar = '!'
	ResumeChar   = '~'
	ResetChar    = rune(0x18) // Ctrl-X soft reset
)

// SwitchEvents reports which auxiliary switches saw a press edge during
// one poll.
type SwitchEvents struct {
	FeedHold  bool
	Resume    bool
	Reset     bool
	Reconnect bool
}

// auxLine is one debounce-free momentary input: active low, acted on
// only when the level drops.
type auxLine struct {
	name string
	line *gpiocdev.Line
	prev int
}

// AuxSwitches polls optional panel switches (feed hold, resume, reset,
// reconnect request) once per cycle. Lines with a negative offset are
// left unconfigured.
type AuxSwitches struct {
	log   *LeveledLogger
	lines []*auxLine
}

func NewAuxSwitches(logger *LeveledLogger, opts *Options) (*AuxSwitches, error) {
	sw := &AuxSwitches{log: logger}

	requests := []struct {
		name   string
		offset int
	}{
		{"FEED_HOLD", opts.FeedHoldLine},
		{"RESUME", opts.ResumeLine},
		{"RESET", opts.ResetLine},
		{"RECONNECT", opts.ReconnectLine},
	}
	for _, req := range requests {
		if req.offset < 0 {
			sw.lines = append(sw.lines, nil)
			continue
		}
		line, err := gpiocdev.RequestLine(opts.GPIOChip, req.offset, gpiocdev.AsInput)
		if err != nil {
			sw.Close()
			return nil, fmt.Errorf("request %s line %d on %s: %w", req.name, req.offset, opts.GPIOChip, err)
		}
		sw.lines = append(sw.lines, &auxLine{name: req.name, line: line, prev: 1})
	}

	return sw, nil
}

// Poll samples every configured switch and reports press edges. Read
// errors are logged and the sample skipped; a flaky switch must not
// take the cycle down.
func (sw *AuxSwitches) Poll() SwitchEvents {
	var ev SwitchEvents
	pressed := [4]*bool{&ev.FeedHold, &ev.Resume, &ev.Reset, &ev.Reconnect}

	for i, l := range sw.lines {
		if l == nil {
			continue
		}
		v, err := l.line.Value()
		if err != nil {
			sw.log.Warn("read %s switch: %v", l.name, err)
			continue
		}
		if v == 0 && l.prev != 0 {
			sw.log.Info("%s detected", l.name)
			*pressed[i] = true
		}
		l.prev = v
	}
	return ev
}

func (sw *AuxSwitches) Close() {
	for _, l := range sw.lines {
		if l != nil {
			l.line.Close()
		}
	}
	sw.lines = nil
}
