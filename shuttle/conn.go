package shuttle

// ConnState tracks liveness of the input device and the command
// transport. It starts all-false; the connect sequence raises the flags
// one by one, and any read or send failure requests a reconnect that
// tears everything down. Recovery is deliberately coarse: device and
// transport are cheap to reopen, so there is no per-resource retry.
type ConnState struct {
	DeviceConnected    bool
	TransportConnected bool
	ReconnectRequested bool
}

// NeedsReset reports whether the steady-state cycle must stop and the
// full connect sequence restart from scratch.
func (c *ConnState) NeedsReset() bool {
	return c.ReconnectRequested || !c.TransportConnected
}

// RequestReconnect flags the session for teardown after a device read
// failure. The device flag drops immediately; the transport is torn
// down with it on the next cycle.
func (c *ConnState) RequestReconnect() {
	c.ReconnectRequested = true
	c.DeviceConnected = false
}

// Reset drops every flag back to the initial disconnected state.
func (c *ConnState) Reset() {
	c.DeviceConnected = false
	c.TransportConnected = false
	c.ReconnectRequested = false
}
