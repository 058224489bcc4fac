package printer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConnectionRegistry(t *testing.T) {
	r := NewConnectionRegistry()
	assert.Nil(t, r.Get())
	assert.False(t, r.Live())
	assert.Nil(t, r.Clear())

	dev := &fakeDevice{id: "dev", connected: true}
	conn := NewDeviceConnection(dev, &fakeChar{uuid: "c"})
	r.Set(conn)
	assert.Same(t, conn, r.Get())
	assert.True(t, r.Live())

	dev.connected = false
	assert.False(t, r.Live(), "a dropped link is not live")

	assert.Same(t, conn, r.Clear())
	assert.Nil(t, r.Get())
}

func TestRegistryLastWriterWins(t *testing.T) {
	r := NewConnectionRegistry()
	a := NewDeviceConnection(&fakeDevice{id: "a", connected: true}, &fakeChar{})
	b := NewDeviceConnection(&fakeDevice{id: "b", connected: true}, &fakeChar{})

	r.Set(a)
	r.Set(b)
	assert.Same(t, b, r.Get())

	r.clearIf(a)
	assert.Same(t, b, r.Get())
	r.clearIf(b)
	assert.Nil(t, r.Get())
}

func TestDeviceConnectionChannelInvariant(t *testing.T) {
	ch := &fakeChar{uuid: "c"}
	conn := NewDeviceConnection(&fakeDevice{id: "d", connected: true}, ch)
	assert.Equal(t, ch, conn.Channel())

	assert.True(t, conn.invalidate())
	assert.Nil(t, conn.Channel())
	assert.False(t, conn.invalidate())

	var nilConn *DeviceConnection
	assert.Nil(t, nilConn.Channel())
	assert.False(t, nilConn.Live())
}
