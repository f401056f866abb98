package device

import (
	"context"
	"time"
)

// ScanningDevice represents a BLE device capable of scanning for advertisements.
type ScanningDevice interface {
	Scan(ctx context.Context, allowDup bool, handler func(Advertisement)) error
}

// Advertisement carries the fields of one received advertisement.
type Advertisement interface {
	LocalName() string
	ManufacturerData() []byte
	ServiceData() map[string][]byte
	Services() []string
	TxPowerLevel() int
	Connectable() bool
	RSSI() int
	Addr() string
}

// DeviceInfo exposes the advertised identity of a device.
//
//nolint:revive // DeviceInfo name is intentional for clarity when used as a device.DeviceInfo
type DeviceInfo interface {
	ID() string
	Name() string
	Address() string
	RSSI() int
	TxPower() *int
	IsConnectable() bool
	AdvertisedServices() []string
	ManufacturerData() []byte
	ServiceData() map[string][]byte
	LastSeen() time.Time
}

// Device is a connectable BLE peripheral.
type Device interface {
	DeviceInfo

	Connect(ctx context.Context, opts *ConnectOptions) error
	Disconnect() error
	IsConnected() bool
	Update(adv Advertisement)
	Connection() Connection
}

// Connection represents a live BLE connection with its discovered GATT tree.
type Connection interface {
	Services() []Service
	GetService(uuid string) (Service, error)
	GetCharacteristic(service, uuid string) (Characteristic, error)

	// FindCharacteristic searches every discovered service for the first
	// characteristic matching any of the given UUIDs, honoring the order of
	// the uuids argument as preference.
	FindCharacteristic(uuids ...string) (Characteristic, error)

	// Done is closed when the connection is torn down, by Disconnect or by
	// the platform reporting a link loss. Pending waits select on it.
	Done() <-chan struct{}
}

// Service represents a discovered GATT service.
type Service interface {
	UUID() string
	KnownName() string
	Characteristics() []Characteristic
}

// Characteristic represents a discovered GATT characteristic with the
// operations the session needs: writes and notification subscription.
type Characteristic interface {
	UUID() string
	KnownName() string
	CanNotify() bool

	// Write transmits data, acknowledged when withResponse is set. The
	// timeout bounds the acknowledged round trip.
	Write(data []byte, withResponse bool, timeout time.Duration) error

	// Subscribe routes incoming notifications to fn. The data slice is only
	// valid for the duration of the callback.
	Subscribe(fn func(data []byte)) error
	Unsubscribe() error
}

// ConnectOptions defines BLE connection options.
type ConnectOptions struct {
	ConnectTimeout time.Duration
}
