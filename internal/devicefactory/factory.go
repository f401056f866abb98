// Package devicefactory constructs device.Device instances backed by the
// go-ble transport. The factory variables exist so tests can substitute
// fakes without touching the BLE stack.
package devicefactory

import (
	"context"

	ble "github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/xuio/nubert-hass/internal/device"
	goble "github.com/xuio/nubert-hass/internal/device/go-ble"
)

// bleScanningDevice wraps ble.Device to implement device.ScanningDevice.
type bleScanningDevice struct {
	dev ble.Device
}

// Scan adapts the raw ble.Device.Scan handler to device.Advertisement.
func (s *bleScanningDevice) Scan(ctx context.Context, allowDup bool, handler func(device.Advertisement)) error {
	bleHandler := func(adv ble.Advertisement) {
		handler(goble.NewBLEAdvertisement(adv))
	}
	return s.dev.Scan(ctx, allowDup, bleHandler)
}

// ScanningDeviceFactory creates device.ScanningDevice instances for BLE
// scanning. Overridable in tests.
var ScanningDeviceFactory = func() (device.ScanningDevice, error) {
	dev, err := goble.DeviceFactory()
	if err != nil {
		return nil, err
	}
	return &bleScanningDevice{dev: dev}, nil
}

// NewDevice creates a connectable device with the specified address.
// Overridable in tests.
var NewDevice = func(address string, logger *logrus.Logger) device.Device {
	return goble.NewBLEDevice(address, logger)
}

// NewDeviceFromAdvertisement creates a device from a received advertisement,
// used while scanning.
func NewDeviceFromAdvertisement(adv device.Advertisement, logger *logrus.Logger) device.Device {
	return goble.NewBLEDeviceFromAdvertisement(adv, logger)
}
