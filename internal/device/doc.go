// Package device defines the transport abstraction the session manager is
// built on: devices, live connections, services and characteristics, plus
// normalized connection errors. The go-ble subpackage provides the real BLE
// implementation; tests substitute fakes behind the same interfaces.
package device
