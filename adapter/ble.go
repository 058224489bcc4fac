package adapter

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"tinygo.org/x/bluetooth"
)

// DefaultWritableCharacteristics are the write endpoints of the printer
// services in DefaultOptionalServices. Where the host stack does not expose
// GATT property flags, only listed characteristics are reported as writable.
var DefaultWritableCharacteristics = []string{
	"00002af1-0000-1000-8000-00805f9b34fb",
	"0000ffe1-0000-1000-8000-00805f9b34fb",
	"0000ff02-0000-1000-8000-00805f9b34fb",
}

// BLEScanner requests devices over Bluetooth Low Energy.
type BLEScanner struct {
	adapter  *bluetooth.Adapter
	writable map[string]bool
	logger   *zap.Logger

	enableOnce sync.Once
	enableErr  error

	mu      sync.Mutex
	devices map[string]*BLEDevice
}

// NewBLEScanner uses the default host adapter. Extra characteristic UUIDs
// are treated as writable in addition to DefaultWritableCharacteristics on
// hosts without property flags; elsewhere the flags decide.
func NewBLEScanner(logger *zap.Logger, extraWritable ...string) *BLEScanner {
	if logger == nil {
		logger = zap.NewNop()
	}

	writable := make(map[string]bool)
	for _, u := range append(DefaultWritableCharacteristics, extraWritable...) {
		writable[strings.ToLower(u)] = true
	}

	return &BLEScanner{
		adapter:  bluetooth.DefaultAdapter,
		writable: writable,
		logger:   logger.Named("ble"),
		devices:  make(map[string]*BLEDevice),
	}
}

func (s *BLEScanner) enable() error {
	s.enableOnce.Do(func() {
		if err := s.adapter.Enable(); err != nil {
			s.enableErr = fmt.Errorf("%w: %v", ErrUnsupported, err)
			return
		}
		s.adapter.SetConnectHandler(s.connectionChanged)
	})
	return s.enableErr
}

// connectionChanged routes adapter-wide link events to the matching device.
func (s *BLEScanner) connectionChanged(device bluetooth.Device, connected bool) {
	s.mu.Lock()
	d := s.devices[device.Address.String()]
	s.mu.Unlock()

	if d == nil {
		return
	}
	if connected {
		d.setConnected(true)
		return
	}
	s.logger.Info("link lost", zap.String("device", d.ID()))
	d.linkLost()
}

// Request scans until a device matching opts shows up or ctx ends.
func (s *BLEScanner) Request(ctx context.Context, opts RequestOptions) (Device, error) {
	if err := s.enable(); err != nil {
		return nil, err
	}

	hints := make([]bluetooth.UUID, 0, len(opts.OptionalServices))
	for _, raw := range opts.OptionalServices {
		u, err := bluetooth.ParseUUID(raw)
		if err != nil {
			return nil, fmt.Errorf("optional service %q: %w", raw, err)
		}
		hints = append(hints, u)
	}

	found := make(chan bluetooth.ScanResult, 1)
	done := make(chan error, 1)

	s.logger.Debug("scanning", zap.Bool("accept_all", opts.AcceptAll), zap.String("prefix", opts.NamePrefix))
	go func() {
		done <- s.adapter.Scan(func(a *bluetooth.Adapter, result bluetooth.ScanResult) {
			if !matches(result, opts, hints) {
				return
			}
			select {
			case found <- result:
				a.StopScan()
			default:
			}
		})
	}()

	var scanErr error
	select {
	case scanErr = <-done:
	case <-ctx.Done():
		s.adapter.StopScan()
		<-done
		return nil, fmt.Errorf("%w: %v", ErrNotFound, ctx.Err())
	}

	select {
	case result := <-found:
		return s.track(result), nil
	default:
	}

	if scanErr != nil {
		return nil, scanError(scanErr)
	}
	return nil, ErrNotFound
}

// scanError classifies a failed scan. Host stacks only report denied radio
// access as text.
func scanError(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "permission") || strings.Contains(msg, "not authorized") {
		return fmt.Errorf("%w: %v", ErrPermission, err)
	}
	return fmt.Errorf("scan failed: %w", err)
}

// advertisement is the part of a scan result used for selection.
type advertisement interface {
	LocalName() string
	HasServiceUUID(bluetooth.UUID) bool
}

func matches(adv advertisement, opts RequestOptions, hints []bluetooth.UUID) bool {
	if opts.AcceptAll {
		return true
	}
	if opts.NamePrefix != "" && strings.HasPrefix(adv.LocalName(), opts.NamePrefix) {
		return true
	}
	for _, u := range hints {
		if adv.HasServiceUUID(u) {
			return true
		}
	}
	return false
}

func (s *BLEScanner) track(result bluetooth.ScanResult) *BLEDevice {
	d := &BLEDevice{
		scanner: s,
		address: result.Address,
		name:    result.LocalName(),
	}

	s.mu.Lock()
	s.devices[result.Address.String()] = d
	s.mu.Unlock()

	s.logger.Info("device selected", zap.String("device", d.ID()), zap.String("name", d.name), zap.Int16("rssi", result.RSSI))
	return d
}

func (s *BLEScanner) forget(d *BLEDevice) {
	s.mu.Lock()
	if s.devices[d.ID()] == d {
		delete(s.devices, d.ID())
	}
	s.mu.Unlock()
}

// BLEDevice is a GATT peripheral.
type BLEDevice struct {
	scanner *BLEScanner
	address bluetooth.Address
	name    string

	mu        sync.Mutex
	device    bluetooth.Device
	connected bool
	onLost    []func()
}

func (d *BLEDevice) ID() string   { return d.address.String() }
func (d *BLEDevice) Name() string { return d.name }

// Connect opens the GATT link. Cancelling ctx abandons the attempt; a link
// that completes afterwards is closed.
func (d *BLEDevice) Connect(ctx context.Context) error {
	type result struct {
		dev bluetooth.Device
		err error
	}
	ch := make(chan result, 1)
	go func() {
		dev, err := d.scanner.adapter.Connect(d.address, bluetooth.ConnectionParams{})
		ch <- result{dev, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return fmt.Errorf("gatt connect: %w", r.err)
		}
		d.mu.Lock()
		d.device = r.dev
		d.connected = true
		d.mu.Unlock()
		return nil
	case <-ctx.Done():
		go func() {
			if r := <-ch; r.err == nil {
				r.dev.Disconnect()
			}
		}()
		return ctx.Err()
	}
}

// Services discovers all primary services.
func (d *BLEDevice) Services() ([]Service, error) {
	d.mu.Lock()
	dev, connected := d.device, d.connected
	d.mu.Unlock()

	if !connected {
		return nil, ErrNotConnected
	}

	discovered, err := dev.DiscoverServices(nil)
	if err != nil {
		return nil, fmt.Errorf("discover services: %w", err)
	}

	services := make([]Service, 0, len(discovered))
	for _, svc := range discovered {
		services = append(services, &bleService{svc: svc, writable: d.scanner.writable})
	}
	return services, nil
}

func (d *BLEDevice) Connected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connected
}

func (d *BLEDevice) OnDisconnect(handler func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onLost = append(d.onLost, handler)
}

// Disconnect closes the link. It does not fire OnDisconnect handlers.
func (d *BLEDevice) Disconnect() error {
	d.mu.Lock()
	dev, connected := d.device, d.connected
	d.connected = false
	d.onLost = nil
	d.mu.Unlock()

	d.scanner.forget(d)
	if !connected {
		return nil
	}
	return dev.Disconnect()
}

func (d *BLEDevice) setConnected(v bool) {
	d.mu.Lock()
	d.connected = v
	d.mu.Unlock()
}

func (d *BLEDevice) linkLost() {
	d.mu.Lock()
	wasConnected := d.connected
	d.connected = false
	handlers := append([]func(){}, d.onLost...)
	d.mu.Unlock()

	if !wasConnected {
		return
	}
	for _, h := range handlers {
		h()
	}
}

type bleService struct {
	svc      bluetooth.DeviceService
	writable map[string]bool
}

func (s *bleService) UUID() string { return s.svc.UUID().String() }

func (s *bleService) Characteristics() ([]Characteristic, error) {
	discovered, err := s.svc.DiscoverCharacteristics(nil)
	if err != nil {
		return nil, fmt.Errorf("discover characteristics of %s: %w", s.UUID(), err)
	}

	chars := make([]Characteristic, 0, len(discovered))
	for _, c := range discovered {
		listed := s.writable[strings.ToLower(c.UUID().String())]
		chars = append(chars, &bleCharacteristic{char: c, props: characteristicProperties(c, listed)})
	}
	return chars, nil
}

type bleCharacteristic struct {
	char  bluetooth.DeviceCharacteristic
	props Properties
}

func (c *bleCharacteristic) UUID() string           { return c.char.UUID().String() }
func (c *bleCharacteristic) Properties() Properties { return c.props }

func (c *bleCharacteristic) Write(data []byte) (int, error) {
	if c.props&PropWrite == 0 {
		return 0, ErrWriteUnsupported
	}
	return writeWithResponse(c.char, data)
}

func (c *bleCharacteristic) WriteWithoutResponse(data []byte) (int, error) {
	if c.props&PropWriteWithoutResponse == 0 {
		return 0, ErrWriteUnsupported
	}
	return c.char.WriteWithoutResponse(data)
}

// propertiesFromGATT maps GATT characteristic property bits. Indications
// count as notifications.
func propertiesFromGATT(flags bluetooth.CharacteristicPermissions) Properties {
	var props Properties
	if flags.Read() {
		props |= PropRead
	}
	if flags.Write() {
		props |= PropWrite
	}
	if flags.WriteWithoutResponse() {
		props |= PropWriteWithoutResponse
	}
	if flags.Notify() || flags.Indicate() {
		props |= PropNotify
	}
	return props
}
