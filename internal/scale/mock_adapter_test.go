package scale

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/scalebridge/bf700/internal/ble"
)

// mockCharacteristic records writes, allows subscribing, and can push
// notifications back to the subscriber.
type mockCharacteristic struct {
	mu           sync.Mutex
	writes       [][]byte
	withResponse []bool
	callback     func([]byte)
	unsubscribed bool
	writeErr     error
	subscribeErr error
	onWrite      func(data []byte) // invoked after each write, outside the lock
}

func (c *mockCharacteristic) Write(data []byte, withResponse bool) error {
	c.mu.Lock()
	if c.writeErr != nil {
		err := c.writeErr
		c.mu.Unlock()
		return err
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	c.writes = append(c.writes, cp)
	c.withResponse = append(c.withResponse, withResponse)
	hook := c.onWrite
	c.mu.Unlock()
	if hook != nil {
		hook(cp)
	}
	return nil
}

func (c *mockCharacteristic) Subscribe(cb func([]byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.subscribeErr != nil {
		return c.subscribeErr
	}
	c.callback = cb
	return nil
}

func (c *mockCharacteristic) Unsubscribe() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unsubscribed = true
	c.callback = nil
	return nil
}

// SimulateNotification delivers a buffer to the current subscriber.
func (c *mockCharacteristic) SimulateNotification(data []byte) {
	c.mu.Lock()
	cb := c.callback
	c.mu.Unlock()
	if cb != nil {
		cb(data)
	}
}

func (c *mockCharacteristic) writeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.writes)
}

// mockConnection simulates a BLE connection with the scale's write and
// notify characteristics.
type mockConnection struct {
	mu           sync.Mutex
	writeChar    *mockCharacteristic
	notifyChar   *mockCharacteristic
	disconnected bool
	discoverErr  map[string]error
}

func newMockConnection() *mockConnection {
	return &mockConnection{
		writeChar:  &mockCharacteristic{},
		notifyChar: &mockCharacteristic{},
	}
}

func (c *mockConnection) DiscoverCharacteristic(serviceUUID, charUUID string) (ble.Characteristic, error) {
	if err := c.discoverErr[charUUID]; err != nil {
		return nil, err
	}
	switch charUUID {
	case ble.WriteCharUUID:
		return c.writeChar, nil
	case ble.NotifyCharUUID:
		return c.notifyChar, nil
	default:
		return nil, fmt.Errorf("mock: unknown characteristic UUID %q", charUUID)
	}
}

func (c *mockConnection) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnected = true
	return nil
}

func (c *mockConnection) isDisconnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disconnected
}

// mockAdapter simulates the BLE adapter. Each Connect hands out a fresh
// connection and records it for test assertions.
type mockAdapter struct {
	mu          sync.Mutex
	connectErr  error
	connectGate chan struct{} // if set, Connect blocks until closed
	connections []*mockConnection
	prepare     func(*mockConnection) // configure the connection before use
}

func newMockAdapter() *mockAdapter {
	return &mockAdapter{}
}

func (a *mockAdapter) Enable() error { return nil }

func (a *mockAdapter) Scan(ctx context.Context, _ func(ble.Advertisement)) error {
	<-ctx.Done()
	return nil
}

func (a *mockAdapter) Connect(ctx context.Context, _ string) (ble.Connection, error) {
	a.mu.Lock()
	gate := a.connectGate
	a.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.connectErr != nil {
		return nil, a.connectErr
	}
	conn := newMockConnection()
	if a.prepare != nil {
		a.prepare(conn)
	}
	a.connections = append(a.connections, conn)
	return conn, nil
}

func (a *mockAdapter) connectCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.connections)
}

func (a *mockAdapter) latestConnection() *mockConnection {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.connections) == 0 {
		return nil
	}
	return a.connections[len(a.connections)-1]
}

// respondWithFrame makes the connection push frame to the notify
// subscriber whenever the Sync command lands on the write characteristic.
func respondWithFrame(conn *mockConnection, frame []byte) {
	conn.writeChar.onWrite = func(data []byte) {
		if len(data) == 2 && data[0] == opcodeSync {
			conn.notifyChar.SimulateNotification(frame)
		}
	}
}

func TestMockAdapterImplementsInterface(t *testing.T) {
	var _ ble.Adapter = (*mockAdapter)(nil)
}

func TestMockConnectionImplementsInterface(t *testing.T) {
	var _ ble.Connection = (*mockConnection)(nil)
}

func TestMockCharacteristicImplementsInterface(t *testing.T) {
	var _ ble.Characteristic = (*mockCharacteristic)(nil)
}
