// Package goble implements the device abstraction on top of go-ble/ble.
package goble

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/xuio/nubert-hass/internal/bledb"
	"github.com/xuio/nubert-hass/internal/device"
	"github.com/xuio/nubert-hass/internal/groutine"
)

// BLEConnection represents a live BLE connection (discovery, notifications,
// writes). One BLEConnection is reused across reconnects of the same device.
type BLEConnection struct {
	logger *logrus.Logger

	// writeMutex serializes raw characteristic writes on the link.
	writeMutex sync.Mutex

	connMutex   sync.RWMutex
	client      ble.Client
	isConnected bool
	services    map[string]*BLEService

	ctx    context.Context
	cancel context.CancelCauseFunc
}

// NewBLEConnection creates a disconnected connection.
func NewBLEConnection(logger *logrus.Logger) *BLEConnection {
	if logger == nil {
		logger = logrus.New()
	}
	return &BLEConnection{
		logger:   logger,
		services: make(map[string]*BLEService),
	}
}

// Connect dials the device, discovers the GATT profile and populates live
// characteristic handles. Returns ErrAlreadyConnected if a live link exists.
func (c *BLEConnection) Connect(ctx context.Context, address string, opts *device.ConnectOptions) error {
	c.connMutex.Lock()
	defer c.connMutex.Unlock()

	if strings.TrimSpace(address) == "" {
		return fmt.Errorf("device address is empty")
	}
	if c.isConnectedLocked() {
		return device.ErrAlreadyConnected
	}

	c.logger.WithFields(logrus.Fields{
		"address": address,
		"timeout": opts.ConnectTimeout,
	}).Info("Connecting to BLE device...")

	dev, err := DeviceFactory()
	if err != nil {
		return fmt.Errorf("failed to create BLE device: %w", err)
	}
	ble.SetDefaultDevice(dev)

	connCtx := ctx
	if opts.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		connCtx, cancel = context.WithTimeout(ctx, opts.ConnectTimeout)
		defer cancel()
	}

	client, err := ble.Dial(connCtx, ble.NewAddr(address))
	if err != nil {
		return fmt.Errorf("failed to connect to device %q: %w", address, err)
	}

	bleProfile, err := client.DiscoverProfile(true)
	if err != nil {
		if cancelErr := client.CancelConnection(); cancelErr != nil {
			c.logger.WithError(cancelErr).Warn("Failed to cancel connection after discovery failure")
		}
		return fmt.Errorf("failed to discover profile: %w", err)
	}

	c.services = make(map[string]*BLEService, len(bleProfile.Services))
	for _, bleSvc := range bleProfile.Services {
		svcRawUUID := bleSvc.UUID.String()
		svcUUID := device.NormalizeUUID(svcRawUUID)
		svc := &BLEService{
			uuid:            svcUUID,
			knownName:       bledb.LookupService(svcRawUUID),
			characteristics: make(map[string]*BLECharacteristic, len(bleSvc.Characteristics)),
		}
		for _, bleChar := range bleSvc.Characteristics {
			char := newCharacteristic(bleChar, c)
			svc.characteristics[char.UUID()] = char
		}
		c.services[svcUUID] = svc
	}

	c.client = client
	c.isConnected = true
	c.ctx, c.cancel = context.WithCancelCause(context.Background())

	// Watch the client's disconnect channel so a platform-reported link loss
	// tears down the handle and releases pending waits.
	if monitored, ok := client.(interface{ Disconnected() <-chan struct{} }); ok {
		connDone := c.ctx.Done()
		groutine.Go(context.Background(), "ble-connection-monitor", func(context.Context) {
			select {
			case <-monitored.Disconnected():
				c.logger.WithField("address", address).Warn("Platform reported disconnection")
				c.markDisconnected(device.ErrNotConnected)
			case <-connDone:
			}
		})
	}

	totalChars := 0
	for _, svc := range c.services {
		totalChars += len(svc.characteristics)
	}
	c.logger.WithFields(logrus.Fields{
		"address":         address,
		"services":        len(c.services),
		"characteristics": totalChars,
	}).Info("BLE device connected")
	return nil
}

// Disconnect closes the link. Idempotent; unsubscribe failures are logged,
// not returned.
func (c *BLEConnection) Disconnect() error {
	c.connMutex.Lock()
	if !c.isConnectedLocked() {
		c.connMutex.Unlock()
		c.logger.Debug("Disconnect called but already disconnected")
		return nil
	}

	client := c.client
	cancel := c.cancel
	servicesCopy := c.services
	c.client = nil
	c.cancel = nil
	c.isConnected = false
	c.connMutex.Unlock()

	if cancel != nil {
		cancel(nil)
	}

	// Best-effort remote unsubscribe before dropping the link.
	for _, svc := range servicesCopy {
		for _, char := range svc.characteristics {
			char.mu.Lock()
			notifying := char.notifying
			char.notifying = false
			char.mu.Unlock()
			if !notifying {
				continue
			}
			if err := client.Unsubscribe(char.bleChar, false); err != nil {
				c.logger.WithFields(logrus.Fields{
					"char_uuid": char.uuid,
				}).WithError(err).Debug("Unsubscribe during disconnect failed")
			}
		}
	}

	err := client.CancelConnection()
	if err != nil {
		c.logger.WithError(err).Warn("BLE device disconnected with errors")
	} else {
		c.logger.Info("BLE device disconnected")
	}
	return err
}

// markDisconnected invalidates the handle after a platform-reported link
// loss without issuing further network calls.
func (c *BLEConnection) markDisconnected(cause error) {
	c.connMutex.Lock()
	cancel := c.cancel
	c.client = nil
	c.cancel = nil
	c.isConnected = false
	c.connMutex.Unlock()

	if cancel != nil {
		cancel(cause)
	}
}

// IsConnected reports whether a live link exists.
func (c *BLEConnection) IsConnected() bool {
	c.connMutex.RLock()
	defer c.connMutex.RUnlock()
	return c.isConnectedLocked()
}

// isConnectedLocked checks connection status; caller holds connMutex.
func (c *BLEConnection) isConnectedLocked() bool {
	return c.client != nil && c.isConnected
}

// Done returns a channel closed when the connection is torn down. For a
// disconnected handle it returns an already-closed channel.
func (c *BLEConnection) Done() <-chan struct{} {
	c.connMutex.RLock()
	defer c.connMutex.RUnlock()
	if c.ctx == nil || !c.isConnected {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return c.ctx.Done()
}

// Services returns all discovered services sorted by UUID.
func (c *BLEConnection) Services() []device.Service {
	c.connMutex.RLock()
	defer c.connMutex.RUnlock()

	result := make([]device.Service, 0, len(c.services))
	for _, svc := range c.services {
		result = append(result, svc)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].UUID() < result[j].UUID()
	})
	return result
}

// GetService retrieves a service by UUID (any accepted format).
func (c *BLEConnection) GetService(uuid string) (device.Service, error) {
	c.connMutex.RLock()
	defer c.connMutex.RUnlock()

	svc, ok := c.services[device.NormalizeUUID(uuid)]
	if !ok {
		return nil, &device.NotFoundError{Resource: "service", UUIDs: []string{uuid}}
	}
	return svc, nil
}

// GetCharacteristic retrieves a characteristic by service and characteristic
// UUID, both normalized for lookup.
func (c *BLEConnection) GetCharacteristic(service, uuid string) (device.Characteristic, error) {
	c.connMutex.RLock()
	defer c.connMutex.RUnlock()

	svc, ok := c.services[device.NormalizeUUID(service)]
	if !ok {
		return nil, &device.NotFoundError{Resource: "service", UUIDs: []string{service}}
	}
	char, ok := svc.characteristics[device.NormalizeUUID(uuid)]
	if !ok {
		return nil, &device.NotFoundError{Resource: "characteristic", UUIDs: []string{service, uuid}}
	}
	return char, nil
}

// FindCharacteristic searches every discovered service for the first
// characteristic matching any of the given UUIDs, preferring earlier
// entries of the uuids argument.
func (c *BLEConnection) FindCharacteristic(uuids ...string) (device.Characteristic, error) {
	c.connMutex.RLock()
	defer c.connMutex.RUnlock()

	for _, uuid := range uuids {
		normalized := device.NormalizeUUID(uuid)
		for _, svc := range c.services {
			if char, ok := svc.characteristics[normalized]; ok {
				return char, nil
			}
		}
	}
	return nil, &device.NotFoundError{Resource: "characteristic", UUIDs: uuids}
}
