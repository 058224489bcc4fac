// Package printer owns the link to the thermal printer: discovery, channel
// selection, the shared connection and paced chunked writes.
package printer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nixxel-company-limited/booth-printer/adapter"
	"go.uber.org/zap"
)

// The printer characteristic rejects large writes and overruns its buffer
// when chunks arrive back to back.
const (
	ChunkSize  = 180
	ChunkDelay = 40 * time.Millisecond
)

// Options configures a Transport. A zero ChunkSize means ChunkSize; a zero
// ChunkDelay disables pacing.
type Options struct {
	ChunkSize  int
	ChunkDelay time.Duration
	Request    adapter.RequestOptions
}

// DefaultOptions accepts any device and hints the known printer services.
func DefaultOptions() Options {
	return Options{
		ChunkSize:  ChunkSize,
		ChunkDelay: ChunkDelay,
		Request: adapter.RequestOptions{
			AcceptAll:        true,
			OptionalServices: adapter.DefaultOptionalServices,
		},
	}
}

// Status describes the shared connection.
type Status struct {
	Connected  bool   `json:"connected"`
	DeviceID   string `json:"device_id,omitempty"`
	DeviceName string `json:"device_name,omitempty"`
	Channel    string `json:"channel,omitempty"`
}

// Transport streams byte payloads to the printer held in a ConnectionRegistry.
type Transport struct {
	scanner  adapter.Scanner
	registry *ConnectionRegistry
	opts     Options
	logger   *zap.Logger
	sleep    func(time.Duration)

	// jobMu keeps one payload on the channel at a time across every caller
	// sharing the transport; connectMu keeps discovery single-flight.
	jobMu     sync.Mutex
	connectMu sync.Mutex

	eventListeners map[adapter.EventType][]func(adapter.Event)
	listenersMutex sync.RWMutex
}

// New creates a transport with a production logger
func New(scanner adapter.Scanner, registry *ConnectionRegistry, opts Options) *Transport {
	logger, err := zap.NewProduction()
	if err != nil {
		logger = zap.NewNop()
	}
	return NewWithLogger(scanner, registry, opts, logger)
}

// NewWithLogger creates a transport with a custom logger
func NewWithLogger(scanner adapter.Scanner, registry *ConnectionRegistry, opts Options, logger *zap.Logger) *Transport {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = ChunkSize
	}
	if opts.ChunkDelay < 0 {
		opts.ChunkDelay = 0
	}
	return &Transport{
		scanner:        scanner,
		registry:       registry,
		opts:           opts,
		logger:         logger.Named("printer"),
		sleep:          time.Sleep,
		eventListeners: make(map[adapter.EventType][]func(adapter.Event)),
	}
}

// Registry returns the registry the transport publishes connections to
func (t *Transport) Registry() *ConnectionRegistry {
	return t.registry
}

// On adds an event listener
func (t *Transport) On(eventType adapter.EventType, handler func(adapter.Event)) {
	t.listenersMutex.Lock()
	defer t.listenersMutex.Unlock()

	t.eventListeners[eventType] = append(t.eventListeners[eventType], handler)
}

// emit triggers an event
func (t *Transport) emit(event adapter.Event) {
	t.listenersMutex.RLock()
	defer t.listenersMutex.RUnlock()

	for _, handler := range t.eventListeners[event.Type] {
		go handler(event)
	}
}

// DiscoverAndConnect requests a device, connects and selects the first
// characteristic that accepts writes. On success the connection replaces
// whatever the registry held.
func (t *Transport) DiscoverAndConnect(ctx context.Context) (*DeviceConnection, error) {
	t.logger.Info("requesting device")

	dev, err := t.scanner.Request(ctx, t.opts.Request)
	if err != nil {
		t.logger.Warn("device request failed", zap.Error(err))
		if errors.Is(err, adapter.ErrPermission) {
			return nil, fmt.Errorf("%w: %v", ErrPermissionDenied, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	log := t.logger.With(zap.String("device", dev.ID()), zap.String("name", dev.Name()))
	log.Info("connecting")

	if err := dev.Connect(ctx); err != nil {
		log.Warn("connect failed", zap.Error(err))
		return nil, fmt.Errorf("%w: connect %s: %v", ErrDeviceUnavailable, dev.ID(), err)
	}

	ch, err := t.selectChannel(dev, log)
	if ch == nil {
		if derr := dev.Disconnect(); derr != nil {
			log.Debug("disconnect after failed selection", zap.Error(derr))
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoWritableChannel, err)
		}
		return nil, ErrNoWritableChannel
	}

	conn := NewDeviceConnection(dev, ch)
	dev.OnDisconnect(func() { t.linkLost(conn) })
	t.registry.Set(conn)

	log.Info("printer connected", zap.String("channel", ch.UUID()), zap.Stringer("properties", ch.Properties()))
	t.emit(adapter.Event{Type: adapter.EventConnect, DeviceID: dev.ID()})

	return conn, nil
}

// selectChannel walks every service and returns the first writable
// characteristic. Services whose characteristics cannot be read are skipped.
func (t *Transport) selectChannel(dev adapter.Device, log *zap.Logger) (adapter.Characteristic, error) {
	services, err := dev.Services()
	if err != nil {
		return nil, fmt.Errorf("enumerate services: %w", err)
	}

	for _, svc := range services {
		chars, err := svc.Characteristics()
		if err != nil {
			log.Warn("could not read characteristics", zap.String("service", svc.UUID()), zap.Error(err))
			continue
		}
		for _, c := range chars {
			if c.Properties().CanWrite() {
				return c, nil
			}
		}
	}

	return nil, nil
}

// Acquire returns the shared connection when it is live, otherwise runs a
// full discovery.
func (t *Transport) Acquire(ctx context.Context) (*DeviceConnection, error) {
	t.connectMu.Lock()
	defer t.connectMu.Unlock()

	conn := t.registry.Get()
	if conn.Live() {
		return conn, nil
	}

	if conn != nil {
		t.logger.Info("dropping stale connection", zap.String("device", conn.device.ID()))
		t.registry.clearIf(conn)
		conn.invalidate()
		if err := conn.device.Disconnect(); err != nil {
			t.logger.Debug("disconnect stale device", zap.Error(err))
		}
	}

	return t.DiscoverAndConnect(ctx)
}

// Write streams payload to the shared connection in chunks of at most
// ChunkSize bytes, waiting for each write and pausing ChunkDelay after it.
// ctx is only consulted before the first chunk: once streaming starts it
// runs to completion or failure, since an aborted raster leaves the printer
// mid-command. Any failure invalidates the shared connection. Concurrent
// writes queue behind each other and never interleave chunks.
func (t *Transport) Write(ctx context.Context, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.jobMu.Lock()
	defer t.jobMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	conn := t.registry.Get()
	if !conn.Live() {
		if conn != nil {
			t.invalidate(conn, errors.New("link down"))
		}
		return fmt.Errorf("%w: not connected", ErrTransport)
	}

	return t.stream(conn, payload)
}

func (t *Transport) stream(conn *DeviceConnection, payload []byte) error {
	size := t.opts.ChunkSize
	total := (len(payload) + size - 1) / size
	log := t.logger.With(zap.String("device", conn.device.ID()))

	t.emit(adapter.Event{Type: adapter.EventData, DeviceID: conn.device.ID(), Data: payload})
	log.Debug("streaming payload", zap.Int("bytes", len(payload)), zap.Int("chunks", total))

	for i := 0; i < len(payload); i += size {
		end := i + size
		if end > len(payload) {
			end = len(payload)
		}
		chunk := payload[i:end]
		index := i/size + 1

		ch := conn.Channel()
		if ch == nil || !conn.Live() {
			err := fmt.Errorf("%w: link lost after %d of %d bytes", ErrTransport, i, len(payload))
			t.invalidate(conn, err)
			return err
		}

		var n int
		var err error
		if ch.Properties()&adapter.PropWriteWithoutResponse != 0 {
			n, err = ch.WriteWithoutResponse(chunk)
		} else {
			n, err = ch.Write(chunk)
		}
		if err == nil && n != len(chunk) {
			err = fmt.Errorf("short write: %d of %d bytes", n, len(chunk))
		}
		if err != nil {
			werr := fmt.Errorf("%w: chunk %d/%d: %v", ErrTransport, index, total, err)
			log.Warn("chunk write failed", zap.Int("chunk", index), zap.Error(err))
			t.invalidate(conn, werr)
			return werr
		}

		if t.opts.ChunkDelay > 0 {
			t.sleep(t.opts.ChunkDelay)
		}
	}

	log.Info("payload sent", zap.Int("bytes", len(payload)), zap.Int("chunks", total))
	return nil
}

// Print acquires a connection and streams payload to it.
func (t *Transport) Print(ctx context.Context, payload []byte) error {
	if _, err := t.Acquire(ctx); err != nil {
		return err
	}
	return t.Write(ctx, payload)
}

// Invalidate drops the shared connection after a failure so the next
// print starts from discovery.
func (t *Transport) Invalidate(cause error) {
	if conn := t.registry.Get(); conn != nil {
		t.invalidate(conn, cause)
	}
}

func (t *Transport) invalidate(conn *DeviceConnection, cause error) {
	t.registry.clearIf(conn)
	if !conn.invalidate() {
		return
	}

	t.logger.Warn("connection invalidated", zap.String("device", conn.device.ID()), zap.Error(cause))
	if err := conn.device.Disconnect(); err != nil {
		t.logger.Debug("disconnect after failure", zap.Error(err))
	}
	t.emit(adapter.Event{Type: adapter.EventDisconnect, DeviceID: conn.device.ID(), Error: cause})
}

// linkLost handles a driver-level disconnect.
func (t *Transport) linkLost(conn *DeviceConnection) {
	t.registry.clearIf(conn)
	if !conn.invalidate() {
		return
	}

	t.logger.Warn("printer disconnected", zap.String("device", conn.device.ID()))
	t.emit(adapter.Event{Type: adapter.EventDisconnect, DeviceID: conn.device.ID()})
}

// Disconnect tears down the link and clears the registry. Safe to call
// when nothing is connected.
func (t *Transport) Disconnect() error {
	conn := t.registry.Clear()
	if conn == nil {
		return nil
	}

	conn.invalidate()

	var err error
	if conn.device.Connected() {
		err = conn.device.Disconnect()
		if err != nil {
			t.logger.Warn("error disconnecting", zap.Error(err))
		}
	}

	t.logger.Info("printer disconnected by request", zap.String("device", conn.device.ID()))
	t.emit(adapter.Event{Type: adapter.EventClose, DeviceID: conn.device.ID()})
	return err
}

// Status reports the shared connection state
func (t *Transport) Status() Status {
	conn := t.registry.Get()
	if !conn.Live() {
		return Status{}
	}
	return Status{
		Connected:  true,
		DeviceID:   conn.device.ID(),
		DeviceName: conn.device.Name(),
		Channel:    conn.channel.UUID(),
	}
}
