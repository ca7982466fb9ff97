// Package publish delivers measurement snapshots to consumers outside the
// process. The MQTT publisher targets Home Assistant style brokers.
package publish

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/scalebridge/bf700/internal/scale"
)

const (
	connectWait      = 10 * time.Second
	disconnectWaitMs = 250 // passed to paho's Disconnect
)

// snapshotPayload is the JSON wire form of one snapshot. Absent fields
// are omitted rather than published as sentinel numbers.
type snapshotPayload struct {
	WeightKg   float64  `json:"weight_kg"`
	BodyFat    *float64 `json:"body_fat_percent,omitempty"`
	BodyWater  *float64 `json:"body_water_percent,omitempty"`
	MuscleMass *float64 `json:"muscle_mass_percent,omitempty"`
	BoneMass   *float64 `json:"bone_mass_percent,omitempty"`
	CapturedAt string   `json:"captured_at"`
}

// MQTTPublisher publishes each snapshot to a single topic, retained so a
// restarting consumer immediately sees the last value.
type MQTTPublisher struct {
	client mqtt.Client
	topic  string
}

// NewMQTTPublisher connects to the broker and returns a ready publisher.
func NewMQTTPublisher(broker, clientID, topic string) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetOrderMatters(false).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectWait) {
		return nil, fmt.Errorf("publish: connect to %s timed out", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("publish: connect to %s: %w", broker, err)
	}

	slog.Info("[mqtt] connected", "broker", broker, "topic", topic)
	return &MQTTPublisher{client: client, topic: topic}, nil
}

// Publish sends one snapshot. Failures are returned for logging but are
// never fatal to the poll loop.
func (p *MQTTPublisher) Publish(snap scale.Snapshot) error {
	data, err := marshalSnapshot(snap)
	if err != nil {
		return fmt.Errorf("publish: encode snapshot: %w", err)
	}

	token := p.client.Publish(p.topic, 0, true, data)
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %s: %w", p.topic, err)
	}
	return nil
}

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() {
	p.client.Disconnect(disconnectWaitMs)
}

func marshalSnapshot(snap scale.Snapshot) ([]byte, error) {
	return json.Marshal(snapshotPayload{
		WeightKg:   snap.Weight,
		BodyFat:    snap.BodyFat,
		BodyWater:  snap.BodyWater,
		MuscleMass: snap.MuscleMass,
		BoneMass:   snap.BoneMass,
		CapturedAt: snap.CapturedAt.UTC().Format(time.RFC3339Nano),
	})
}
