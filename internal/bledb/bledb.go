// Package bledb provides UUID normalization and a small name database for
// the GATT identifiers this tool encounters: the Bluetooth SIG assigned
// numbers it cares about plus the Nubert vendor services.
package bledb

import "strings"

// sigBaseSuffix is the tail of the Bluetooth SIG base UUID
// (0000xxxx-0000-1000-8000-00805f9b34fb) after normalization.
const sigBaseSuffix = "00001000800000805f9b34fb"

// NormalizeUUID converts a UUID string to the internal BLE library format
// (lowercase, no dashes). Strips a 0x prefix if present. Full 128-bit UUIDs
// in the SIG base format collapse to their 16-bit short form.
func NormalizeUUID(uuid string) string {
	u := strings.ToLower(strings.TrimSpace(uuid))
	u = strings.TrimPrefix(u, "0x")
	u = strings.ReplaceAll(u, "-", "")

	// 0000xxxx + SIG base suffix -> xxxx
	if len(u) == 32 && strings.HasPrefix(u, "0000") && strings.HasSuffix(u, sigBaseSuffix) {
		return u[4:8]
	}
	return u
}

// NormalizeUUIDs normalizes a slice of UUID strings to internal format.
func NormalizeUUIDs(uuids []string) []string {
	result := make([]string, len(uuids))
	for i, u := range uuids {
		result[i] = NormalizeUUID(u)
	}
	return result
}

// Known service names, keyed by normalized UUID.
var serviceNames = map[string]string{
	"1800":                             "Generic Access",
	"1801":                             "Generic Attribute",
	"180a":                             "Device Information",
	"180f":                             "Battery Service",
	"a600":                             "Nubert Control (advertised)",
	"8e2ceaaa0e2711e793ae92361f002671": "Nubert Control",
}

// Known characteristic names, keyed by normalized UUID.
var characteristicNames = map[string]string{
	"2a00":                             "Device Name",
	"2a01":                             "Appearance",
	"2a19":                             "Battery Level",
	"2a29":                             "Manufacturer Name String",
	"8e2cece40e2711e793ae92361f002671": "Nubert Control Point (speaker)",
	"8e2cef1e0e2711e793ae92361f002671": "Nubert Control Point (subwoofer)",
}

// LookupService returns the known name for a service UUID, or "" if unknown.
func LookupService(uuid string) string {
	return serviceNames[NormalizeUUID(uuid)]
}

// LookupCharacteristic returns the known name for a characteristic UUID,
// or "" if unknown.
func LookupCharacteristic(uuid string) string {
	return characteristicNames[NormalizeUUID(uuid)]
}
