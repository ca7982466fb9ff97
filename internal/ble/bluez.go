package ble

import (
	"context"
	"fmt"
	"time"

	"tinygo.org/x/bluetooth"
)

// BluezAdapter wraps tinygo-org/bluetooth. On Linux this talks to BlueZ
// over D-Bus; the same wrapper builds against the CoreBluetooth and WinRT
// backends, so Address strings may be MACs or platform UUIDs.
type BluezAdapter struct {
	adapter *bluetooth.Adapter
}

// NewBluezAdapter creates a BLE adapter backed by the platform default.
func NewBluezAdapter() *BluezAdapter {
	return &BluezAdapter{adapter: bluetooth.DefaultAdapter}
}

func (a *BluezAdapter) Enable() error {
	return a.adapter.Enable()
}

// Scan reports every sighting, including repeat sightings of the same
// address. The scale's advertisement content changes as it wakes up, so
// deduplicating here would hide exactly the transition we poll for.
func (a *BluezAdapter) Scan(ctx context.Context, onAdvert func(Advertisement)) error {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			a.adapter.StopScan()
		case <-done:
		}
	}()

	err := a.adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
		onAdvert(advertisementFromScanResult(result))
	})
	close(done)

	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("ble: scan: %w", err)
	}
	return nil
}

// advertisementFromScanResult translates a tinygo scan result into our
// Advertisement snapshot. BlueZ does not expose the advertising PDU type,
// so Connectable is inferred from the Flags AD discoverable bits, which
// the BF 700 only sets while it is accepting connections.
func advertisementFromScanResult(result bluetooth.ScanResult) Advertisement {
	sum := parseAdvPayload(result.AdvertisementPayload.Bytes())
	if sum.serviceCount == 0 {
		// Some backends hand out parsed fields instead of raw bytes.
		sum.serviceCount = len(result.ServiceData())
	}
	return Advertisement{
		Address:      result.Address.String(),
		Name:         result.LocalName(),
		RSSI:         int(result.RSSI),
		ServiceCount: sum.serviceCount,
		Connectable:  sum.discoverable,
		ServiceData:  sum.serviceData,
		SeenAt:       time.Now(),
	}
}

func (a *BluezAdapter) Connect(ctx context.Context, address string) (Connection, error) {
	var addr bluetooth.Address
	addr.Set(address)

	// tinygo/bluetooth's Connect blocks internally with its own timeout.
	// We wrap it to also respect our ctx deadline.
	type connectResult struct {
		device bluetooth.Device
		err    error
	}
	ch := make(chan connectResult, 1)
	go func() {
		device, err := a.adapter.Connect(addr, bluetooth.ConnectionParams{})
		ch <- connectResult{device, err}
	}()

	select {
	case <-ctx.Done():
		// The underlying Connect will eventually time out on its own;
		// a late success is disconnected so no handle leaks.
		go func() {
			if result := <-ch; result.err == nil {
				result.device.Disconnect()
			}
		}()
		return nil, fmt.Errorf("ble: connect to %s: %w", address, ctx.Err())
	case result := <-ch:
		if result.err != nil {
			return nil, fmt.Errorf("ble: connect to %s: %w", address, result.err)
		}
		return &bluezConnection{device: &result.device}, nil
	}
}

// Compile-time check that BluezAdapter implements Adapter.
var _ Adapter = (*BluezAdapter)(nil)

type bluezConnection struct {
	device *bluetooth.Device
}

func (c *bluezConnection) DiscoverCharacteristic(serviceUUID, charUUID string) (Characteristic, error) {
	svcUUID, err := bluetooth.ParseUUID(serviceUUID)
	if err != nil {
		return nil, err
	}
	charUUIDParsed, err := bluetooth.ParseUUID(charUUID)
	if err != nil {
		return nil, err
	}

	svcs, err := c.device.DiscoverServices([]bluetooth.UUID{svcUUID})
	if err != nil {
		return nil, fmt.Errorf("ble: discover services: %w", err)
	}
	if len(svcs) == 0 {
		return nil, fmt.Errorf("ble: service %s not found", serviceUUID)
	}

	chars, err := svcs[0].DiscoverCharacteristics([]bluetooth.UUID{charUUIDParsed})
	if err != nil {
		return nil, fmt.Errorf("ble: discover characteristics: %w", err)
	}
	if len(chars) == 0 {
		return nil, fmt.Errorf("ble: characteristic %s not found", charUUID)
	}

	return &bluezCharacteristic{char: &chars[0]}, nil
}

func (c *bluezConnection) Disconnect() error {
	return c.device.Disconnect()
}

type bluezCharacteristic struct {
	char *bluetooth.DeviceCharacteristic
}

func (c *bluezCharacteristic) Write(data []byte, withResponse bool) error {
	if withResponse {
		_, err := c.char.Write(data)
		return err
	}
	_, err := c.char.WriteWithoutResponse(data)
	return err
}

func (c *bluezCharacteristic) Subscribe(cb func([]byte)) error {
	return c.char.EnableNotifications(func(buf []byte) {
		cb(buf)
	})
}

func (c *bluezCharacteristic) Unsubscribe() error {
	return c.char.EnableNotifications(nil)
}
