//go:build !linux

// Adapter power management only applies to BlueZ on Linux; other platforms
// manage the radio themselves.
package bluez

// EnsurePowered is a no-op on non-Linux platforms.
func EnsurePowered(name string) error {
	return nil
}
