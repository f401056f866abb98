//go:build linux

// Package bluez talks to the BlueZ daemon over the system D-Bus. The CLI
// uses it to make sure the adapter is powered before scanning or connecting;
// the go-ble HCI stack does not power the adapter itself.
package bluez

import (
	"fmt"
	"strings"

	"github.com/godbus/dbus/v5"
)

const (
	busName      = "org.bluez"
	adapterIface = "org.bluez.Adapter1"
	propsIface   = "org.freedesktop.DBus.Properties"
)

// Adapter wraps a system D-Bus connection scoped to one hci adapter.
type Adapter struct {
	conn *dbus.Conn
	path dbus.ObjectPath
}

// NewAdapter connects to the system bus and binds to the named adapter
// ("hci0", or "default" for hci0). Fails when BlueZ is not on the bus.
func NewAdapter(name string) (*Adapter, error) {
	if name == "" || name == "default" {
		name = "hci0"
	}

	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, fmt.Errorf("connect to system bus: %w", err)
	}

	var names []string
	if err := conn.BusObject().Call("org.freedesktop.DBus.ListNames", 0).Store(&names); err != nil {
		conn.Close()
		return nil, fmt.Errorf("list bus names: %w", err)
	}
	found := false
	for _, n := range names {
		if n == busName {
			found = true
			break
		}
	}
	if !found {
		conn.Close()
		return nil, fmt.Errorf("org.bluez not found on system bus — is bluetooth.service running?")
	}

	return &Adapter{
		conn: conn,
		path: dbus.ObjectPath("/org/bluez/" + strings.TrimPrefix(name, "/")),
	}, nil
}

func (a *Adapter) Close() {
	a.conn.Close()
}

// Powered reports the adapter's power state.
func (a *Adapter) Powered() (bool, error) {
	obj := a.conn.Object(busName, a.path)
	var v dbus.Variant
	if err := obj.Call(propsIface+".Get", 0, adapterIface, "Powered").Store(&v); err != nil {
		return false, err
	}
	val, ok := v.Value().(bool)
	if !ok {
		return false, fmt.Errorf("Powered property is not bool")
	}
	return val, nil
}

// SetPowered sets the adapter's power state.
func (a *Adapter) SetPowered(on bool) error {
	obj := a.conn.Object(busName, a.path)
	return obj.Call(propsIface+".Set", 0, adapterIface, "Powered", dbus.MakeVariant(on)).Err
}

// EnsurePowered powers the adapter on when it is off.
func EnsurePowered(name string) error {
	a, err := NewAdapter(name)
	if err != nil {
		return err
	}
	defer a.Close()

	powered, err := a.Powered()
	if err != nil {
		return fmt.Errorf("read adapter power state: %w", err)
	}
	if powered {
		return nil
	}
	if err := a.SetPowered(true); err != nil {
		return fmt.Errorf("power adapter on: %w", err)
	}
	return nil
}
