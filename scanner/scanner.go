// Package scanner implements BLE discovery of Nubert devices: it filters
// advertisements by the advertised control service and maintains a registry
// of everything seen during one scan window.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/sirupsen/logrus"
	"github.com/xuio/nubert-hass/internal/bledb"
	"github.com/xuio/nubert-hass/internal/device"
	"github.com/xuio/nubert-hass/internal/devicefactory"
	"github.com/xuio/nubert-hass/internal/profile"
	"github.com/xuio/nubert-hass/internal/ringchan"
)

// ProgressCallback is called when the scan phase changes.
type ProgressCallback func(phase string)

// DeviceEventType marks if the device was newly discovered or updated.
type DeviceEventType int

const (
	EventNew DeviceEventType = iota
	EventUpdated
)

type DeviceEvent struct {
	Type       DeviceEventType
	DeviceInfo device.DeviceInfo
}

// eventBuffer bounds the live discovery event channel.
const eventBuffer = 100

// Scanner handles BLE device discovery.
type Scanner struct {
	devices *hashmap.Map[string, device.Device]
	events  *ringchan.RingChannel[DeviceEvent]
	logger  *logrus.Logger

	scanOptions *ScanOptions
}

// ScanOptions configures scanning behavior.
type ScanOptions struct {
	Duration        time.Duration
	DuplicateFilter bool

	// NubertOnly keeps only devices advertising the Nubert control service.
	NubertOnly bool

	AllowList []string
	BlockList []string
}

// DefaultScanOptions returns the options used by the CLI: a 10 second
// window, duplicates collapsed, Nubert devices only.
func DefaultScanOptions() *ScanOptions {
	return &ScanOptions{
		Duration:        10 * time.Second,
		DuplicateFilter: true,
		NubertOnly:      true,
	}
}

// NewScanner creates a new BLE scanner.
func NewScanner(logger *logrus.Logger) (*Scanner, error) {
	if logger == nil {
		logger = logrus.New()
	}

	return &Scanner{
		events: ringchan.New[DeviceEvent](eventBuffer),
		logger: logger,
	}, nil
}

// Scan performs BLE discovery with the provided options, blocking until ctx
// expires, and returns the devices seen.
func (s *Scanner) Scan(ctx context.Context, opts *ScanOptions, progressCallback ProgressCallback) (map[string]device.DeviceInfo, error) {
	s.devices = hashmap.New[string, device.Device]()

	if opts == nil {
		opts = DefaultScanOptions()
	}
	if progressCallback == nil {
		progressCallback = func(string) {}
	}

	s.logger.WithFields(logrus.Fields{
		"duration":    opts.Duration,
		"nubert_only": opts.NubertOnly,
	}).Info("Starting BLE scan")

	progressCallback("Scanning")

	scanDev, err := devicefactory.ScanningDeviceFactory()
	if err != nil {
		return nil, fmt.Errorf("failed to create BLE device: %w", err)
	}

	s.scanOptions = opts
	defer func() {
		s.scanOptions = nil
	}()
	err = scanDev.Scan(ctx, !opts.DuplicateFilter, s.handleAdvertisement)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("scan failed: %w", err)
	}

	s.logger.WithField("device_count", s.devices.Len()).Info("BLE scan completed")

	progressCallback("Processing results")

	devices := make(map[string]device.DeviceInfo, s.devices.Len())
	s.devices.Range(func(key string, value device.Device) bool {
		devices[key] = value
		return true
	})

	return devices, nil
}

// handleAdvertisement updates an existing registry entry or admits a new
// device after filtering.
func (s *Scanner) handleAdvertisement(adv device.Advertisement) {
	deviceID := adv.Addr()

	dev, existing := s.devices.Get(deviceID)
	if !existing {
		if !s.shouldIncludeDevice(adv, s.scanOptions) {
			return
		}
		dev, existing = s.devices.GetOrInsert(deviceID, devicefactory.NewDeviceFromAdvertisement(adv, s.logger))
	}

	event := DeviceEvent{
		DeviceInfo: dev,
	}

	if existing {
		dev.Update(adv)
		event.Type = EventUpdated
	} else {
		s.logger.WithFields(logrus.Fields{
			"device":  dev.Name(),
			"address": dev.Address(),
			"rssi":    dev.RSSI(),
		}).Info("Discovered Nubert device")
		event.Type = EventNew
	}

	s.events.ForceSend(event)
}

// shouldIncludeDevice applies the block/allow/service filters.
func (s *Scanner) shouldIncludeDevice(adv device.Advertisement, opts *ScanOptions) bool {
	addr := adv.Addr()

	for _, blocked := range opts.BlockList {
		if addr == blocked {
			return false
		}
	}

	if len(opts.AllowList) > 0 {
		allowed := false
		for _, a := range opts.AllowList {
			if addr == a {
				allowed = true
				break
			}
		}
		if !allowed {
			return false
		}
	}

	if opts.NubertOnly && !AdvertisesNubertService(adv) {
		return false
	}

	return true
}

// AdvertisesNubertService reports whether the advertisement carries the
// Nubert control service UUID in any representation.
func AdvertisesNubertService(adv device.Advertisement) bool {
	want := bledb.NormalizeUUID(profile.AdvertisedServiceUUID)
	for _, svc := range adv.Services() {
		if bledb.NormalizeUUID(svc) == want {
			return true
		}
	}
	return false
}

// Events returns a read-only channel of live discovery events; oldest events
// are dropped when the consumer lags.
func (s *Scanner) Events() <-chan DeviceEvent {
	return s.events.C()
}
