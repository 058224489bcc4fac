package printer

import "errors"

var (
	// ErrDeviceUnavailable covers a missing radio and a cancelled device request
	ErrDeviceUnavailable = errors.New("printer unavailable: make sure the printer is on and in BLE mode")

	// ErrPermissionDenied is recovered from the same way as ErrDeviceUnavailable
	ErrPermissionDenied = errors.New("bluetooth permission denied")

	// ErrNoWritableChannel means the device connected but exposes nothing to print to
	ErrNoWritableChannel = errors.New("connected to printer but no writable characteristic found; " +
		"many portable printers use Bluetooth Classic (SPP), enable BLE mode if the printer supports it")

	// ErrTransport is a failed write or a link lost mid-stream
	ErrTransport = errors.New("printer transport failed")
)
