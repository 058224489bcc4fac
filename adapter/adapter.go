package adapter

import (
	"context"
	"errors"
	"strings"
)

// Well-known service UUIDs advertised by portable thermal printers. They are
// requested as optional services; characteristic discovery decides what is used.
const (
	ServicePrinter18F0 = "000018f0-0000-1000-8000-00805f9b34fb"
	ServiceSerialFFE0  = "0000ffe0-0000-1000-8000-00805f9b34fb"
	ServiceSerialFF00  = "0000ff00-0000-1000-8000-00805f9b34fb"
)

// DefaultOptionalServices lists the service hints passed to a device request.
var DefaultOptionalServices = []string{
	ServicePrinter18F0,
	ServiceSerialFFE0,
	ServiceSerialFF00,
}

// Scanner failures reported by drivers.
var (
	ErrNotFound         = errors.New("no device found or selected")
	ErrPermission       = errors.New("permission denied")
	ErrUnsupported      = errors.New("radio not available")
	ErrNotConnected     = errors.New("device not connected")
	ErrWriteUnsupported = errors.New("characteristic does not support this write mode")
)

// Properties is the capability set of a characteristic.
type Properties uint8

const (
	PropRead Properties = 1 << iota
	PropWrite
	PropWriteWithoutResponse
	PropNotify
)

// CanWrite reports whether either write mode is available.
func (p Properties) CanWrite() bool {
	return p&(PropWrite|PropWriteWithoutResponse) != 0
}

func (p Properties) String() string {
	var parts []string
	if p&PropRead != 0 {
		parts = append(parts, "read")
	}
	if p&PropWrite != 0 {
		parts = append(parts, "write")
	}
	if p&PropWriteWithoutResponse != 0 {
		parts = append(parts, "write-without-response")
	}
	if p&PropNotify != 0 {
		parts = append(parts, "notify")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Characteristic is a byte endpoint on a connected device.
type Characteristic interface {
	// UUID identifies the characteristic
	UUID() string

	// Properties returns the advertised capabilities
	Properties() Properties

	// Write sends data and waits for the device to acknowledge it
	Write(data []byte) (int, error)

	// WriteWithoutResponse sends data without an acknowledgement
	WriteWithoutResponse(data []byte) (int, error)
}

// Service groups characteristics on a connected device.
type Service interface {
	UUID() string
	Characteristics() ([]Characteristic, error)
}

// Device is a peripheral returned by a Scanner.
type Device interface {
	// ID returns a stable identifier (address, bus path)
	ID() string

	// Name returns the advertised name, possibly empty
	Name() string

	// Connect opens the link to the device
	Connect(ctx context.Context) error

	// Services enumerates services of a connected device
	Services() ([]Service, error)

	// Connected reports whether the link is up
	Connected() bool

	// Disconnect tears down the link
	Disconnect() error

	// OnDisconnect registers a handler for unexpected link loss
	OnDisconnect(handler func())
}

// RequestOptions controls a device request.
type RequestOptions struct {
	// AcceptAll accepts any device regardless of name or advertised services
	AcceptAll bool

	// NamePrefix restricts the request when AcceptAll is false
	NamePrefix string

	// OptionalServices are service UUIDs the caller may want to access
	OptionalServices []string
}

// Scanner finds a device to connect to.
type Scanner interface {
	// Request blocks until a device is chosen or ctx ends
	Request(ctx context.Context, opts RequestOptions) (Device, error)
}

// EventType represents device events
type EventType int

const (
	EventConnect EventType = iota
	EventDisconnect
	EventData
	EventClose
)

func (t EventType) String() string {
	switch t {
	case EventConnect:
		return "connect"
	case EventDisconnect:
		return "disconnect"
	case EventData:
		return "data"
	case EventClose:
		return "close"
	}
	return "unknown"
}

// Event represents a device event
type Event struct {
	Type     EventType
	DeviceID string
	Data     []byte
	Error    error
}
