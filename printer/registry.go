package printer

import (
	"sync"
	"sync/atomic"

	"github.com/nixxel-company-limited/booth-printer/adapter"
)

// DeviceConnection is a connected printer and the channel used to write to it.
// The channel is non-nil exactly while the connection is marked connected.
type DeviceConnection struct {
	device    adapter.Device
	channel   adapter.Characteristic
	connected atomic.Bool
}

// NewDeviceConnection marks dev connected with ch as its write channel.
func NewDeviceConnection(dev adapter.Device, ch adapter.Characteristic) *DeviceConnection {
	c := &DeviceConnection{device: dev, channel: ch}
	c.connected.Store(true)
	return c
}

// Device returns the underlying device handle
func (c *DeviceConnection) Device() adapter.Device {
	return c.device
}

// Channel returns the writable characteristic, or nil once disconnected
func (c *DeviceConnection) Channel() adapter.Characteristic {
	if c == nil || !c.connected.Load() {
		return nil
	}
	return c.channel
}

// Live reports whether the connection is marked connected and the device
// still reports an open link.
func (c *DeviceConnection) Live() bool {
	return c != nil && c.connected.Load() && c.device.Connected()
}

func (c *DeviceConnection) invalidate() bool {
	return c.connected.Swap(false)
}

// ConnectionRegistry holds the one shared printer connection. Callers are
// expected to run a single print session at a time; concurrent Set calls
// resolve as last writer wins.
type ConnectionRegistry struct {
	mu   sync.Mutex
	conn *DeviceConnection
}

// NewConnectionRegistry returns an empty registry
func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{}
}

// Get returns the shared connection, or nil
func (r *ConnectionRegistry) Get() *DeviceConnection {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conn
}

// Set replaces the shared connection
func (r *ConnectionRegistry) Set(c *DeviceConnection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conn = c
}

// Clear drops the shared connection and returns what was held
func (r *ConnectionRegistry) Clear() *DeviceConnection {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.conn
	r.conn = nil
	return c
}

// clearIf drops the shared connection only if it is still c
func (r *ConnectionRegistry) clearIf(c *DeviceConnection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn == c {
		r.conn = nil
	}
}

// Live reports whether a live connection is held
func (r *ConnectionRegistry) Live() bool {
	return r.Get().Live()
}
