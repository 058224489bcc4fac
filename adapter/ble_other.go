//go:build !windows

package adapter

import "tinygo.org/x/bluetooth"

// characteristicProperties falls back to the allow list: BlueZ and the HCI
// stack expose no property flags, and only unacknowledged writes.
func characteristicProperties(_ bluetooth.DeviceCharacteristic, listed bool) Properties {
	if listed {
		return PropWriteWithoutResponse
	}
	return PropRead
}

func writeWithResponse(bluetooth.DeviceCharacteristic, []byte) (int, error) {
	return 0, ErrWriteUnsupported
}
