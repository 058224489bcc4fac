package adapter

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/google/gousb"
	"go.uber.org/zap"
)

// Interface class codes
// Reference: http://www.usb.org/developers/defined_class
const (
	IfaceClassAudio   = 0x01
	IfaceClassHID     = 0x03
	IfaceClassPrinter = 0x07
	IfaceClassHub     = 0x09
)

// USBScanner finds USB printer-class devices.
type USBScanner struct {
	// VID and PID select a specific device; zero values auto-detect
	VID, PID uint16
	logger   *zap.Logger
}

// NewUSBScanner creates a scanner that auto-detects printers
func NewUSBScanner(logger *zap.Logger) *USBScanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &USBScanner{logger: logger.Named("usb")}
}

// Request opens the configured device, or the first printer found.
// Name filters are ignored: USB printers rarely carry a useful product string.
func (s *USBScanner) Request(ctx context.Context, opts RequestOptions) (Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	usbCtx := gousb.NewContext()

	if s.VID != 0 || s.PID != 0 {
		dev, err := GetDeviceByVIDPID(usbCtx, s.VID, s.PID)
		if err == nil {
			return newUSBDevice(usbCtx, dev, s.logger), nil
		}
		s.logger.Warn("configured device not found, falling back to auto-detect",
			zap.Uint16("vid", s.VID), zap.Uint16("pid", s.PID), zap.Error(err))
	}

	devices := FindPrinters(usbCtx, s.logger)
	if len(devices) == 0 {
		usbCtx.Close()
		return nil, fmt.Errorf("cannot find printer: %w", ErrNotFound)
	}
	for _, extra := range devices[1:] {
		extra.Close()
	}

	return newUSBDevice(usbCtx, devices[0], s.logger), nil
}

// IsPrinter checks if a device is a printer
func IsPrinter(dev *gousb.Device) bool {
	if dev == nil {
		return false
	}

	cfg, err := dev.ActiveConfigNum()
	if err != nil {
		return false
	}

	cfgDesc, err := dev.Config(cfg)
	if err != nil {
		return false
	}
	defer cfgDesc.Close()

	for _, iface := range cfgDesc.Desc.Interfaces {
		for _, alt := range iface.AltSettings {
			if alt.Class == IfaceClassPrinter {
				return true
			}
		}
	}

	return false
}

// FindPrinters returns all USB printer devices
func FindPrinters(ctx *gousb.Context, logger *zap.Logger) []*gousb.Device {
	var printers []*gousb.Device

	devices, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return true // Check all devices
	})

	if err != nil && len(devices) == 0 {
		logger.Debug("enumerating usb devices failed", zap.Error(err))
		return printers
	}

	for _, dev := range devices {
		if IsPrinter(dev) {
			logger.Debug("found printer", zap.Stringer("desc", dev.Desc))
			printers = append(printers, dev)
		} else {
			dev.Close()
		}
	}

	return printers
}

// GetDeviceByVIDPID opens a device by VID and PID
func GetDeviceByVIDPID(ctx *gousb.Context, vid, pid uint16) (*gousb.Device, error) {
	device, err := ctx.OpenDeviceWithVIDPID(gousb.ID(vid), gousb.ID(pid))
	if err != nil {
		return nil, err
	}
	if device == nil {
		return nil, errors.New("device not found")
	}
	return device, nil
}

// USBDevice exposes each printer-class interface as a service and its
// bulk endpoints as characteristics.
type USBDevice struct {
	ctx      *gousb.Context
	device   *gousb.Device
	cfg      *gousb.Config
	iface    *gousb.Interface
	services []Service
	onLost   []func()
	isOpen   bool
	logger   *zap.Logger
	mu       sync.Mutex
}

func newUSBDevice(ctx *gousb.Context, dev *gousb.Device, logger *zap.Logger) *USBDevice {
	return &USBDevice{ctx: ctx, device: dev, logger: logger}
}

// ID returns the bus/address path of the device
func (d *USBDevice) ID() string {
	return fmt.Sprintf("usb:%d:%d", d.device.Desc.Bus, d.device.Desc.Address)
}

// Name returns the product string, or VID:PID when unavailable
func (d *USBDevice) Name() string {
	if name, err := d.device.Product(); err == nil && name != "" {
		return name
	}
	return fmt.Sprintf("%s:%s", d.device.Desc.Vendor, d.device.Desc.Product)
}

// Connect claims the printer interface and collects its endpoints
func (d *USBDevice) Connect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.isOpen {
		return errors.New("device already open")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// Set auto-detach kernel driver on Linux
	if runtime.GOOS == "linux" {
		d.device.SetAutoDetach(true)
	}

	cfgNum, err := d.device.ActiveConfigNum()
	if err != nil {
		return fmt.Errorf("failed to get active config: %w", err)
	}

	cfg, err := d.device.Config(cfgNum)
	if err != nil {
		return fmt.Errorf("failed to get config: %w", err)
	}

	printerIfaceNum := -1
	for _, iface := range cfg.Desc.Interfaces {
		for _, alt := range iface.AltSettings {
			if alt.Class == IfaceClassPrinter {
				printerIfaceNum = iface.Number
				break
			}
		}
		if printerIfaceNum >= 0 {
			break
		}
	}

	if printerIfaceNum < 0 {
		cfg.Close()
		return errors.New("no printer interface found")
	}

	iface, err := cfg.Interface(printerIfaceNum, 0)
	if err != nil {
		cfg.Close()
		return fmt.Errorf("failed to claim interface: %w", err)
	}

	svc := &usbService{uuid: fmt.Sprintf("usb-interface-%d", printerIfaceNum)}
	for _, epDesc := range iface.Setting.Endpoints {
		switch epDesc.Direction {
		case gousb.EndpointDirectionOut:
			ep, err := iface.OutEndpoint(epDesc.Number)
			if err != nil {
				continue
			}
			svc.chars = append(svc.chars, &usbEndpoint{
				uuid:   epDesc.String(),
				props:  PropWrite | PropWriteWithoutResponse,
				out:    ep,
				device: d,
			})
		case gousb.EndpointDirectionIn:
			svc.chars = append(svc.chars, &usbEndpoint{
				uuid:   epDesc.String(),
				props:  PropRead,
				device: d,
			})
		}
	}

	d.cfg = cfg
	d.iface = iface
	d.services = []Service{svc}
	d.isOpen = true
	return nil
}

// Services returns the claimed printer interface
func (d *USBDevice) Services() ([]Service, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.isOpen {
		return nil, ErrNotConnected
	}
	return d.services, nil
}

// Connected returns whether the device is open
func (d *USBDevice) Connected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.isOpen
}

// OnDisconnect registers a handler fired when the device disappears mid-write
func (d *USBDevice) OnDisconnect(handler func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onLost = append(d.onLost, handler)
}

// Disconnect releases the interface and closes the device
func (d *USBDevice) Disconnect() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closeLocked()
}

func (d *USBDevice) closeLocked() error {
	if !d.isOpen {
		return nil
	}

	var errs []error

	if d.iface != nil {
		d.iface.Close()
		d.iface = nil
	}

	if d.cfg != nil {
		if err := d.cfg.Close(); err != nil {
			errs = append(errs, err)
		}
		d.cfg = nil
	}

	if d.device != nil {
		if err := d.device.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if d.ctx != nil {
		if err := d.ctx.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	d.isOpen = false
	d.services = nil

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %w", errors.Join(errs...))
	}

	return nil
}

// lost tears the device down after the kernel reported it gone
func (d *USBDevice) lost() {
	d.mu.Lock()
	if err := d.closeLocked(); err != nil {
		d.logger.Debug("closing lost device", zap.Error(err))
	}
	handlers := append([]func(){}, d.onLost...)
	d.mu.Unlock()

	for _, h := range handlers {
		go h()
	}
}

type usbService struct {
	uuid  string
	chars []Characteristic
}

func (s *usbService) UUID() string { return s.uuid }

func (s *usbService) Characteristics() ([]Characteristic, error) {
	return s.chars, nil
}

// usbEndpoint maps a bulk endpoint onto the characteristic model. Bulk
// transfers are always acknowledged, so both write modes behave the same.
type usbEndpoint struct {
	uuid   string
	props  Properties
	out    *gousb.OutEndpoint
	device *USBDevice
}

func (e *usbEndpoint) UUID() string           { return e.uuid }
func (e *usbEndpoint) Properties() Properties { return e.props }

func (e *usbEndpoint) Write(data []byte) (int, error) {
	if e.out == nil {
		return 0, ErrWriteUnsupported
	}
	if !e.device.Connected() {
		return 0, ErrNotConnected
	}

	n, err := e.out.Write(data)
	if err != nil {
		if errors.Is(err, gousb.ErrorNoDevice) {
			e.device.lost()
		}
		return n, fmt.Errorf("write failed: %w", err)
	}
	return n, nil
}

func (e *usbEndpoint) WriteWithoutResponse(data []byte) (int, error) {
	return e.Write(data)
}
