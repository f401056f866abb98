package goble

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/xuio/nubert-hass/internal/device"
)

// BLEDevice implements device.Device for a real BLE peripheral.
type BLEDevice struct {
	mu                 sync.RWMutex
	id                 string
	name               string
	address            string
	rssi               int
	txPower            *int
	connectable        bool
	lastSeen           time.Time
	advertisedServices []string
	manufData          []byte
	serviceData        map[string][]byte

	connection *BLEConnection
	logger     *logrus.Logger
}

// NewBLEDevice creates a BLEDevice with a pre-created connection instance.
func NewBLEDevice(address string, logger *logrus.Logger) *BLEDevice {
	if logger == nil {
		logger = logrus.New()
	}
	return &BLEDevice{
		id:          address,
		address:     address,
		serviceData: make(map[string][]byte),
		lastSeen:    time.Now(),
		connection:  NewBLEConnection(logger),
		logger:      logger,
	}
}

// NewBLEDeviceFromAdvertisement creates a BLEDevice from a received
// advertisement, used during scanning.
func NewBLEDeviceFromAdvertisement(adv device.Advertisement, logger *logrus.Logger) *BLEDevice {
	dev := NewBLEDevice(adv.Addr(), logger)
	dev.name = adv.LocalName()
	dev.rssi = adv.RSSI()
	dev.connectable = adv.Connectable()
	dev.manufData = adv.ManufacturerData()

	for _, uuid := range adv.Services() {
		dev.advertisedServices = append(dev.advertisedServices, device.NormalizeUUID(uuid))
	}
	sort.Strings(dev.advertisedServices)

	for uuid, data := range adv.ServiceData() {
		dev.serviceData[device.NormalizeUUID(uuid)] = data
	}

	// 127 means TX power not available.
	if adv.TxPowerLevel() != 127 {
		txPower := adv.TxPowerLevel()
		dev.txPower = &txPower
	}

	return dev
}

func (d *BLEDevice) ID() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.id
}

// Name returns the advertised local name, falling back to the address.
func (d *BLEDevice) Name() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.name == "" {
		return d.address
	}
	return d.name
}

func (d *BLEDevice) Address() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.address
}

func (d *BLEDevice) RSSI() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.rssi
}

func (d *BLEDevice) TxPower() *int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.txPower
}

func (d *BLEDevice) IsConnectable() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.connectable
}

func (d *BLEDevice) AdvertisedServices() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.advertisedServices
}

func (d *BLEDevice) ManufacturerData() []byte {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.manufData
}

func (d *BLEDevice) ServiceData() map[string][]byte {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.serviceData
}

func (d *BLEDevice) LastSeen() time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lastSeen
}

// Connect establishes the BLE link and discovers the GATT tree.
func (d *BLEDevice) Connect(ctx context.Context, opts *device.ConnectOptions) error {
	if opts == nil {
		opts = &device.ConnectOptions{ConnectTimeout: 30 * time.Second}
	}
	return d.connection.Connect(ctx, d.Address(), opts)
}

// Disconnect closes the link; idempotent.
func (d *BLEDevice) Disconnect() error {
	return d.connection.Disconnect()
}

// IsConnected reports whether a live link exists.
func (d *BLEDevice) IsConnected() bool {
	return d.connection.IsConnected()
}

// Connection returns the connection handle; valid whether or not connected.
func (d *BLEDevice) Connection() device.Connection {
	return d.connection
}

// Update refreshes device information from a new advertisement.
func (d *BLEDevice) Update(adv device.Advertisement) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.rssi = adv.RSSI()
	d.lastSeen = time.Now()

	if name := adv.LocalName(); name != "" {
		d.name = name
	}
	if manufData := adv.ManufacturerData(); len(manufData) > 0 {
		d.manufData = manufData
	}

	needsSort := false
	for _, svc := range adv.Services() {
		normalized := device.NormalizeUUID(svc)
		if !d.hasServiceUUIDLocked(normalized) {
			d.advertisedServices = append(d.advertisedServices, normalized)
			needsSort = true
		}
	}
	if needsSort {
		sort.Strings(d.advertisedServices)
	}

	for uuid, data := range adv.ServiceData() {
		d.serviceData[device.NormalizeUUID(uuid)] = data
	}

	if adv.TxPowerLevel() != 127 {
		txPower := adv.TxPowerLevel()
		d.txPower = &txPower
	}
}

func (d *BLEDevice) hasServiceUUIDLocked(uuid string) bool {
	for _, s := range d.advertisedServices {
		if strings.EqualFold(s, uuid) {
			return true
		}
	}
	return false
}
