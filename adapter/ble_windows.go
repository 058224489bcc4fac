//go:build windows

package adapter

import "tinygo.org/x/bluetooth"

// characteristicProperties trusts the property flags WinRT reports; the
// allow list is not consulted.
func characteristicProperties(c bluetooth.DeviceCharacteristic, _ bool) Properties {
	return propertiesFromGATT(bluetooth.CharacteristicPermissions(c.Properties()))
}

func writeWithResponse(c bluetooth.DeviceCharacteristic, data []byte) (int, error) {
	return c.Write(data)
}
