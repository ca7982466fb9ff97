// Package ble provides the BLE transport layer for talking to a Beurer
// BF 700 body-composition scale. It abstracts scanning, connection and
// characteristic access behind small interfaces so the session logic can
// be tested without hardware.
package ble

import (
	"context"
	"time"
)

// Beurer BF 700 GATT UUIDs (same vendor service as used by openScale).
const (
	ServiceUUID    = "0000fff0-0000-1000-8000-00805f9b34fb"
	WriteCharUUID  = "0000fff1-0000-1000-8000-00805f9b34fb"
	NotifyCharUUID = "0000fff4-0000-1000-8000-00805f9b34fb"
)

// Advertisement is one sighting of a peripheral during a scan. The scale
// only advertises a rich service list while someone is standing on it, so
// ServiceCount and Connectable together signal the connectable window.
type Advertisement struct {
	Address      string
	Name         string
	RSSI         int
	ServiceCount int
	Connectable  bool
	ServiceData  []byte
	SeenAt       time.Time
}

// Characteristic represents a BLE GATT characteristic.
type Characteristic interface {
	// Write sends data to the characteristic. The BF 700 does not
	// reliably ack writes, so callers pass withResponse=false for
	// command bytes.
	Write(data []byte, withResponse bool) error
	// Subscribe registers a callback for notifications on this characteristic.
	Subscribe(callback func(data []byte)) error
	// Unsubscribe removes the notification callback.
	Unsubscribe() error
}

// Connection represents an active BLE connection to a peripheral.
type Connection interface {
	// DiscoverCharacteristic finds a characteristic by UUID within a service.
	DiscoverCharacteristic(serviceUUID, charUUID string) (Characteristic, error)
	// Disconnect terminates the connection.
	Disconnect() error
}

// Adapter abstracts the BLE hardware adapter for testing.
type Adapter interface {
	// Enable powers on the BLE adapter.
	Enable() error
	// Scan reports every advertisement sighting to onAdvert until ctx is
	// cancelled. It blocks for the duration of the scan.
	Scan(ctx context.Context, onAdvert func(Advertisement)) error
	// Connect establishes a connection to the device with the given address.
	// Cancellation of ctx bounds the attempt.
	Connect(ctx context.Context, address string) (Connection, error)
}
