package goble

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-ble/ble"
	"github.com/xuio/nubert-hass/internal/bledb"
	"github.com/xuio/nubert-hass/internal/device"
)

const (
	// DefaultWriteChunkSize is the maximum number of bytes per BLE write.
	// BLE 4.0/4.1 ATT_MTU of 23 bytes leaves 20 bytes of payload; staying at
	// 20 keeps writes compatible with every BLE version.
	DefaultWriteChunkSize = 20

	// DefaultWriteChunkDelay paces consecutive chunks so the peripheral's
	// receive buffer is not overwhelmed.
	DefaultWriteChunkDelay = 10 * time.Millisecond
)

// BLECharacteristic wraps a live ble.Characteristic handle with the write
// and subscribe operations the session uses.
type BLECharacteristic struct {
	uuid      string // normalized
	knownName string
	bleChar   *ble.Characteristic
	conn      *BLEConnection

	mu        sync.Mutex
	notifying bool
}

func newCharacteristic(c *ble.Characteristic, conn *BLEConnection) *BLECharacteristic {
	rawUUID := c.UUID.String()
	return &BLECharacteristic{
		uuid:      device.NormalizeUUID(rawUUID),
		knownName: bledb.LookupCharacteristic(rawUUID),
		bleChar:   c,
		conn:      conn,
	}
}

func (c *BLECharacteristic) UUID() string      { return c.uuid }
func (c *BLECharacteristic) KnownName() string { return c.knownName }

// CanNotify reports whether the characteristic advertises notify or
// indicate capability.
func (c *BLECharacteristic) CanNotify() bool {
	if c.bleChar == nil {
		return false
	}
	return c.bleChar.Property&(ble.CharNotify|ble.CharIndicate) != 0
}

// Write transmits data to the characteristic, chunked at the BLE payload
// limit. When withResponse is set the write is acknowledged and the timeout
// bounds the round trip; unacknowledged chunks are paced instead.
func (c *BLECharacteristic) Write(data []byte, withResponse bool, timeout time.Duration) error {
	client, err := c.snapshotClient()
	if err != nil {
		return err
	}

	// Serialize raw writes on this connection.
	c.conn.writeMutex.Lock()
	defer c.conn.writeMutex.Unlock()

	for len(data) > 0 {
		n := len(data)
		if n > DefaultWriteChunkSize {
			n = DefaultWriteChunkSize
		}
		if err := c.writeChunk(client, data[:n], withResponse, timeout); err != nil {
			return err
		}
		data = data[n:]
		if len(data) > 0 {
			time.Sleep(DefaultWriteChunkDelay)
		}
	}
	return nil
}

func (c *BLECharacteristic) writeChunk(client ble.Client, chunk []byte, withResponse bool, timeout time.Duration) error {
	if !withResponse {
		return device.NormalizeError(client.WriteCharacteristic(c.bleChar, chunk, true))
	}

	// Acknowledged writes block until the device responds; bound them so an
	// unresponsive device cannot wedge the write path.
	errCh := make(chan error, 1)
	go func() {
		errCh <- client.WriteCharacteristic(c.bleChar, chunk, false)
	}()

	if timeout <= 0 {
		return device.NormalizeError(<-errCh)
	}
	select {
	case err := <-errCh:
		return device.NormalizeError(err)
	case <-time.After(timeout):
		return fmt.Errorf("write to characteristic %s: %w", c.uuid, device.ErrTimeout)
	}
}

// Subscribe routes incoming notifications to fn. The callback runs on the
// BLE stack's delivery goroutine; the data slice is only valid for the
// duration of the call.
func (c *BLECharacteristic) Subscribe(fn func(data []byte)) error {
	client, err := c.snapshotClient()
	if err != nil {
		return err
	}

	if err := device.NormalizeError(client.Subscribe(c.bleChar, false, func(data []byte) {
		fn(data)
	})); err != nil {
		return err
	}

	c.mu.Lock()
	c.notifying = true
	c.mu.Unlock()
	return nil
}

// Unsubscribe stops notification delivery. Unsubscribing a characteristic
// that was never subscribed is a no-op.
func (c *BLECharacteristic) Unsubscribe() error {
	c.mu.Lock()
	notifying := c.notifying
	c.notifying = false
	c.mu.Unlock()
	if !notifying {
		return nil
	}

	client, err := c.snapshotClient()
	if err != nil {
		return err
	}
	return device.NormalizeError(client.Unsubscribe(c.bleChar, false))
}

// snapshotClient returns the live client under the connection lock.
func (c *BLECharacteristic) snapshotClient() (ble.Client, error) {
	if c.conn == nil || c.bleChar == nil {
		return nil, device.ErrNotInitialized
	}

	c.conn.connMutex.RLock()
	defer c.conn.connMutex.RUnlock()
	if !c.conn.isConnectedLocked() {
		return nil, device.ErrNotConnected
	}
	return c.conn.client, nil
}
