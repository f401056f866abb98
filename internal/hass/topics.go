package hass

import (
	"fmt"
	"strings"
)

// DeviceID derives the stable topic identifier from a BLE address:
// lowercase hex with separators stripped.
func DeviceID(address string) string {
	id := strings.ToLower(address)
	id = strings.ReplaceAll(id, ":", "")
	id = strings.ReplaceAll(id, "-", "")
	return id
}

// deviceTopics builds every topic the bridge uses for one device.
type deviceTopics struct {
	base string
	id   string
}

func newDeviceTopics(baseTopic, address string) deviceTopics {
	return deviceTopics{base: baseTopic, id: DeviceID(address)}
}

// root is the per-device topic prefix, also used as the `~` abbreviation in
// discovery payloads.
func (t deviceTopics) root() string {
	return fmt.Sprintf("%s/%s", t.base, t.id)
}

func (t deviceTopics) availability() string {
	return t.root() + "/availability"
}

func (t deviceTopics) state() string {
	return t.root() + "/state"
}

func (t deviceTopics) command(entity string) string {
	return fmt.Sprintf("%s/%s/set", t.root(), entity)
}

// discoveryTopic is where Home Assistant expects a retained entity config.
func discoveryTopic(prefix, component, deviceID, object string) string {
	return fmt.Sprintf("%s/%s/nubert_%s/%s/config", prefix, component, deviceID, object)
}
