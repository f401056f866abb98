// Package testutils holds the fake BLE peripheral and assertion helpers
// shared by session, bridge and CLI tests. The fake implements the
// device.Device interface family and is installed through the device
// factory variables, so tests exercise real session logic without a
// Bluetooth stack.
package testutils

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/xuio/nubert-hass/internal/device"
	"github.com/xuio/nubert-hass/internal/devicefactory"
)

// WriteRecord is one captured characteristic write.
type WriteRecord struct {
	Data         []byte
	WithResponse bool
}

// FakePeripheral scripts one BLE device end to end: per-attempt connect
// failures, write capture, notification injection and an optional
// auto-responder that answers writes with notification frames.
type FakePeripheral struct {
	mu sync.Mutex

	address   string
	name      string
	charUUID  string
	canNotify bool

	// connectErrs fail connect attempts in order; attempts past the end of
	// the slice succeed.
	connectErrs  []error
	connectCalls int
	connected    bool
	done         chan struct{}

	writes   []WriteRecord
	writeErr error

	notifyFn   func([]byte)
	subscribed bool

	// respond maps a written frame to notification frames sent back after
	// the write returns.
	respond func(frame []byte) [][]byte
}

// NewFakePeripheral creates a fake device exposing one control
// characteristic with the given UUID.
func NewFakePeripheral(address, charUUID string, canNotify bool) *FakePeripheral {
	return &FakePeripheral{
		address:   address,
		name:      "fake-" + address,
		charUUID:  charUUID,
		canNotify: canNotify,
	}
}

// FailConnects scripts the next connect attempts to fail with errs, in order.
func (p *FakePeripheral) FailConnects(errs ...error) *FakePeripheral {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connectErrs = append(p.connectErrs, errs...)
	return p
}

// FailWrites makes every subsequent write return err; nil clears it.
func (p *FakePeripheral) FailWrites(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writeErr = err
}

// AutoRespond registers fn; its returned frames are injected as
// notifications after each successful write.
func (p *FakePeripheral) AutoRespond(fn func(frame []byte) [][]byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.respond = fn
}

// ConnectCalls returns how many connect attempts were made.
func (p *FakePeripheral) ConnectCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connectCalls
}

// Writes returns all captured writes in order.
func (p *FakePeripheral) Writes() []WriteRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]WriteRecord, len(p.writes))
	copy(out, p.writes)
	return out
}

// WrittenFrames returns just the raw bytes of every captured write.
func (p *FakePeripheral) WrittenFrames() [][]byte {
	writes := p.Writes()
	frames := make([][]byte, len(writes))
	for i, w := range writes {
		frames[i] = w.Data
	}
	return frames
}

// Subscribed reports whether the session holds a notification subscription.
func (p *FakePeripheral) Subscribed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.subscribed
}

// Notify injects one notification frame, as the device pushing unsolicited
// state. No-op when nothing is subscribed.
func (p *FakePeripheral) Notify(data []byte) {
	p.mu.Lock()
	fn := p.notifyFn
	p.mu.Unlock()
	if fn != nil {
		fn(append([]byte(nil), data...))
	}
}

// DropLink simulates a platform-level link loss.
func (p *FakePeripheral) DropLink() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.markDisconnectedLocked()
}

func (p *FakePeripheral) markDisconnectedLocked() {
	if p.connected {
		p.connected = false
		p.subscribed = false
		p.notifyFn = nil
		close(p.done)
	}
}

// Install overrides the device factory to hand out this peripheral for any
// address and restores the original factory when the test ends.
func (p *FakePeripheral) Install(t *testing.T) {
	t.Helper()
	orig := devicefactory.NewDevice
	devicefactory.NewDevice = func(address string, logger *logrus.Logger) device.Device {
		return &fakeDevice{p: p}
	}
	t.Cleanup(func() { devicefactory.NewDevice = orig })
}

// fakeDevice adapts FakePeripheral to device.Device.
type fakeDevice struct {
	p *FakePeripheral
}

func (d *fakeDevice) ID() string                     { return d.p.address }
func (d *fakeDevice) Name() string                   { return d.p.name }
func (d *fakeDevice) Address() string                { return d.p.address }
func (d *fakeDevice) RSSI() int                      { return -42 }
func (d *fakeDevice) TxPower() *int                  { return nil }
func (d *fakeDevice) IsConnectable() bool            { return true }
func (d *fakeDevice) AdvertisedServices() []string   { return nil }
func (d *fakeDevice) ManufacturerData() []byte       { return nil }
func (d *fakeDevice) ServiceData() map[string][]byte { return nil }
func (d *fakeDevice) LastSeen() time.Time            { return time.Now() }
func (d *fakeDevice) Update(device.Advertisement)    {}

func (d *fakeDevice) Connect(ctx context.Context, opts *device.ConnectOptions) error {
	p := d.p
	p.mu.Lock()
	defer p.mu.Unlock()

	p.connectCalls++
	if p.connected {
		return device.ErrAlreadyConnected
	}
	if n := p.connectCalls - 1; n < len(p.connectErrs) && p.connectErrs[n] != nil {
		return p.connectErrs[n]
	}
	p.connected = true
	p.done = make(chan struct{})
	return nil
}

func (d *fakeDevice) Disconnect() error {
	p := d.p
	p.mu.Lock()
	defer p.mu.Unlock()
	p.markDisconnectedLocked()
	return nil
}

func (d *fakeDevice) IsConnected() bool {
	p := d.p
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

func (d *fakeDevice) Connection() device.Connection {
	return &fakeConnection{p: d.p}
}

type fakeConnection struct {
	p *FakePeripheral
}

func (c *fakeConnection) Services() []device.Service {
	return []device.Service{&fakeService{p: c.p}}
}

func (c *fakeConnection) GetService(uuid string) (device.Service, error) {
	return &fakeService{p: c.p}, nil
}

func (c *fakeConnection) GetCharacteristic(service, uuid string) (device.Characteristic, error) {
	if uuid != c.p.charUUID {
		return nil, &device.NotFoundError{Resource: "characteristic", UUIDs: []string{uuid}}
	}
	return &fakeCharacteristic{p: c.p}, nil
}

func (c *fakeConnection) FindCharacteristic(uuids ...string) (device.Characteristic, error) {
	for _, uuid := range uuids {
		if uuid == c.p.charUUID {
			return &fakeCharacteristic{p: c.p}, nil
		}
	}
	return nil, &device.NotFoundError{Resource: "characteristic", UUIDs: uuids}
}

func (c *fakeConnection) Done() <-chan struct{} {
	c.p.mu.Lock()
	defer c.p.mu.Unlock()
	if !c.p.connected {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return c.p.done
}

type fakeService struct {
	p *FakePeripheral
}

func (s *fakeService) UUID() string      { return "fake-service" }
func (s *fakeService) KnownName() string { return "" }
func (s *fakeService) Characteristics() []device.Characteristic {
	return []device.Characteristic{&fakeCharacteristic{p: s.p}}
}

type fakeCharacteristic struct {
	p *FakePeripheral
}

func (c *fakeCharacteristic) UUID() string      { return c.p.charUUID }
func (c *fakeCharacteristic) KnownName() string { return "" }
func (c *fakeCharacteristic) CanNotify() bool   { return c.p.canNotify }

func (c *fakeCharacteristic) Write(data []byte, withResponse bool, timeout time.Duration) error {
	p := c.p
	p.mu.Lock()
	if !p.connected {
		p.mu.Unlock()
		return device.ErrNotConnected
	}
	if p.writeErr != nil {
		err := p.writeErr
		p.mu.Unlock()
		return err
	}
	p.writes = append(p.writes, WriteRecord{
		Data:         append([]byte(nil), data...),
		WithResponse: withResponse,
	})
	respond := p.respond
	p.mu.Unlock()

	if respond != nil {
		for _, frame := range respond(data) {
			c.p.Notify(frame)
		}
	}
	return nil
}

func (c *fakeCharacteristic) Subscribe(fn func(data []byte)) error {
	p := c.p
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.canNotify {
		return device.ErrUnsupported
	}
	p.notifyFn = fn
	p.subscribed = true
	return nil
}

func (c *fakeCharacteristic) Unsubscribe() error {
	p := c.p
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notifyFn = nil
	p.subscribed = false
	return nil
}
