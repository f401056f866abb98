package goble

import (
	"sort"

	"github.com/xuio/nubert-hass/internal/device"
)

// BLEService represents a discovered GATT service and its characteristics.
type BLEService struct {
	uuid            string // normalized
	knownName       string
	characteristics map[string]*BLECharacteristic
}

func (s *BLEService) UUID() string      { return s.uuid }
func (s *BLEService) KnownName() string { return s.knownName }

// Characteristics returns the service's characteristics sorted by UUID for
// consistent ordering.
func (s *BLEService) Characteristics() []device.Characteristic {
	result := make([]device.Characteristic, 0, len(s.characteristics))
	for _, c := range s.characteristics {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].UUID() < result[j].UUID()
	})
	return result
}
