package printer

import (
	"context"
	"errors"
	"sync"

	"github.com/nixxel-company-limited/booth-printer/adapter"
)

type fakeChar struct {
	uuid    string
	props   adapter.Properties
	mu      sync.Mutex
	chunks  [][]byte
	acked   int
	failAt  int // 1-based chunk index that fails, 0 never
	onChunk func(index int)
}

func (c *fakeChar) UUID() string                   { return c.uuid }
func (c *fakeChar) Properties() adapter.Properties { return c.props }

func (c *fakeChar) record(data []byte, acked bool) (int, error) {
	c.mu.Lock()
	index := len(c.chunks) + 1
	if c.failAt == index {
		c.mu.Unlock()
		return 0, errors.New("gatt write failed")
	}
	c.chunks = append(c.chunks, append([]byte(nil), data...))
	if acked {
		c.acked++
	}
	hook := c.onChunk
	c.mu.Unlock()

	if hook != nil {
		hook(index)
	}
	return len(data), nil
}

func (c *fakeChar) Write(data []byte) (int, error) {
	if c.props&adapter.PropWrite == 0 {
		return 0, adapter.ErrWriteUnsupported
	}
	return c.record(data, true)
}

func (c *fakeChar) WriteWithoutResponse(data []byte) (int, error) {
	if c.props&adapter.PropWriteWithoutResponse == 0 {
		return 0, adapter.ErrWriteUnsupported
	}
	return c.record(data, false)
}

func (c *fakeChar) written() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []byte
	for _, ch := range c.chunks {
		out = append(out, ch...)
	}
	return out
}

type fakeService struct {
	uuid  string
	chars []adapter.Characteristic
	err   error
}

func (s *fakeService) UUID() string { return s.uuid }

func (s *fakeService) Characteristics() ([]adapter.Characteristic, error) {
	return s.chars, s.err
}

type fakeDevice struct {
	id         string
	services   []adapter.Service
	connectErr error

	mu          sync.Mutex
	connected   bool
	disconnects int
	handlers    []func()
}

func (d *fakeDevice) ID() string   { return d.id }
func (d *fakeDevice) Name() string { return "fake " + d.id }

func (d *fakeDevice) Connect(ctx context.Context) error {
	if d.connectErr != nil {
		return d.connectErr
	}
	d.mu.Lock()
	d.connected = true
	d.mu.Unlock()
	return nil
}

func (d *fakeDevice) Services() ([]adapter.Service, error) {
	return d.services, nil
}

func (d *fakeDevice) Connected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connected
}

func (d *fakeDevice) Disconnect() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.connected = false
	d.disconnects++
	return nil
}

func (d *fakeDevice) OnDisconnect(handler func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers = append(d.handlers, handler)
}

// drop simulates the driver reporting link loss.
func (d *fakeDevice) drop() {
	d.mu.Lock()
	d.connected = false
	handlers := append([]func(){}, d.handlers...)
	d.mu.Unlock()
	for _, h := range handlers {
		h()
	}
}

func (d *fakeDevice) disconnectCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.disconnects
}

type fakeScanner struct {
	mu       sync.Mutex
	devices  []*fakeDevice
	err      error
	requests int
	lastOpts adapter.RequestOptions
}

func (s *fakeScanner) Request(ctx context.Context, opts adapter.RequestOptions) (adapter.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests++
	s.lastOpts = opts
	if s.err != nil {
		return nil, s.err
	}
	if len(s.devices) == 0 {
		return nil, adapter.ErrNotFound
	}
	d := s.devices[0]
	if len(s.devices) > 1 {
		s.devices = s.devices[1:]
	}
	return d, nil
}

func (s *fakeScanner) requestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests
}

// printerDevice builds a device with a read-only service followed by a
// service holding ch.
func printerDevice(id string, ch *fakeChar) *fakeDevice {
	return &fakeDevice{
		id: id,
		services: []adapter.Service{
			&fakeService{uuid: "1800", chars: []adapter.Characteristic{
				&fakeChar{uuid: "2a00", props: adapter.PropRead},
			}},
			&fakeService{uuid: adapter.ServicePrinter18F0, chars: []adapter.Characteristic{
				&fakeChar{uuid: "2af0", props: adapter.PropNotify},
				ch,
			}},
		},
	}
}
