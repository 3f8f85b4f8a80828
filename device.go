package main

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/sys/unix"

	"shuttlecp/shuttle"
)

// eventSize is the on-wire size of struct input_event on 64-bit Linux:
// a 16-byte timestamp followed by type (u16), code (u16) and value (i32).
const eventSize = 24

// eviocGrab is the evdev exclusive-grab ioctl, _IOW('E', 0x90, int).
// golang.org/x/sys/unix does not export the EVIOC* request numbers.
const eviocGrab = 0x40044590

// Device is the grabbed evdev character device the jog controller
// reports through. All reads happen from the cycle goroutine.
type Device struct {
	log  *LeveledLogger
	path string
	fd   int
}

// OpenDevice opens the event device read-only and takes exclusive
// access. The engine must be the only consumer of the event stream, so
// a failed grab is as fatal to this connection attempt as a failed open.
func OpenDevice(logger *LeveledLogger, path string) (*Device, error) {
	fd, err := unix.Open(path, unix.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	if err := unix.IoctlSetInt(fd, eviocGrab, 1); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("grab %s: %w", path, err)
	}

	return &Device{log: logger, path: path, fd: fd}, nil
}

// Ready reports whether a read would return data, without blocking. The
// cycle scheduler calls this before every read so a quiet device never
// stalls a cycle.
func (d *Device) Ready() (bool, error) {
	var set unix.FdSet
	set.Zero()
	set.Set(d.fd)
	timeout := unix.Timeval{}

	n, err := unix.Select(d.fd+1, &set, nil, nil, &timeout)
	if err != nil {
		if err == unix.EINTR {
			return false, nil
		}
		return false, fmt.Errorf("select %s: %w", d.path, err)
	}
	return n > 0, nil
}

// ReadEvent reads exactly one input record. A short read is treated the
// same as a failed one: the stream is misaligned and the connection has
// to be reopened.
func (d *Device) ReadEvent() (shuttle.RawEvent, error) {
	buf := make([]byte, eventSize)
	n, err := unix.Read(d.fd, buf)
	if err != nil {
		return shuttle.RawEvent{}, fmt.Errorf("read %s: %w", d.path, err)
	}
	if n != eventSize {
		return shuttle.RawEvent{}, fmt.Errorf("short read on %s: %d bytes", d.path, n)
	}

	return shuttle.RawEvent{
		Type:  binary.LittleEndian.Uint16(buf[16:18]),
		Code:  binary.LittleEndian.Uint16(buf[18:20]),
		Value: int32(binary.LittleEndian.Uint32(buf[20:24])),
	}, nil
}

// Close releases the grab and the file descriptor.
func (d *Device) Close() {
	unix.IoctlSetInt(d.fd, eviocGrab, 0)
	if err := unix.Close(d.fd); err != nil {
		d.log.Warn("close %s: %v", d.path, err)
	}
}
