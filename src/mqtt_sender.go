package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTMessage represents an outgoing MQTT message
type MQTTMessage struct {
	Topic   string
	Payload []byte
	QoS     byte
	Retain  bool
}

// MQTTSender wraps a channel for sending MQTT messages with helper methods
type MQTTSender struct {
	ch chan<- MQTTMessage
}

// NewMQTTSender creates a new MQTTSender wrapping the given channel
func NewMQTTSender(ch chan<- MQTTMessage) *MQTTSender {
	return &MQTTSender{ch: ch}
}

// Send sends a raw MQTTMessage
func (s *MQTTSender) Send(msg MQTTMessage) {
	s.ch <- msg
}

// zoneStatePayload is the JSON published on a mapper's state topic
type zoneStatePayload struct {
	Zone      int      `json:"zone"`
	ZoneCount int      `json:"zone_count"`
	Value     float64  `json:"value"`
	Min1h     *float64 `json:"min_1h,omitempty"`
	Max1h     *float64 `json:"max_1h,omitempty"`
	Timestamp string   `json:"timestamp"`
}

// PublishZone publishes the current zone state for a mapper
func (s *MQTTSender) PublishZone(config ZoneMapperConfig, update ZoneUpdate) error {
	payload := zoneStatePayload{
		Zone:      update.Zone,
		ZoneCount: update.ZoneCount,
		Value:     update.Value,
		Timestamp: update.Timestamp.UTC().Format(time.RFC3339),
	}
	if update.HasRange {
		payload.Min1h = &update.Min
		payload.Max1h = &update.Max
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	s.Send(MQTTMessage{
		Topic:   config.StateTopic(),
		Payload: data,
		QoS:     1,
		Retain:  true,
	})
	return nil
}

// CreateZoneEntity creates a Home Assistant zone sensor via MQTT discovery
func (s *MQTTSender) CreateZoneEntity(config ZoneMapperConfig) error {
	type haDeviceConfig struct {
		Identifiers  []string `json:"identifiers"`
		Name         string   `json:"name"`
		Manufacturer string   `json:"manufacturer,omitempty"`
		Model        string   `json:"model,omitempty"`
	}

	type haEntityConfig struct {
		Name                string         `json:"name,omitempty"`
		StateTopic          string         `json:"state_topic"`
		JsonAttributesTopic string         `json:"json_attributes_topic,omitempty"`
		ValueTemplate       string         `json:"value_template"`
		UniqueId            string         `json:"unique_id"`
		ExpireAfter         uint           `json:"expire_after,omitempty"`
		StateClass          string         `json:"state_class,omitempty"`
		Icon                string         `json:"icon,omitempty"`
		Device              haDeviceConfig `json:"device"`
	}

	deviceId := config.DeviceID()

	entity := haEntityConfig{
		Name:                "Zone",
		StateTopic:          config.StateTopic(),
		JsonAttributesTopic: config.StateTopic(),
		ValueTemplate:       "{{ value_json.zone }}",
		UniqueId:            deviceId + "_zone",
		ExpireAfter:         60 * 5, // 5 minutes, heartbeat is every minute
		StateClass:          "measurement",
		Icon:                "mdi:stairs",
		Device: haDeviceConfig{
			Identifiers:  []string{deviceId},
			Name:         config.Name,
			Manufacturer: "zonectl",
			Model:        fmt.Sprintf("%d zones", len(config.Thresholds)+1),
		},
	}

	payload, err := json.Marshal(entity)
	if err != nil {
		return err
	}

	s.Send(MQTTMessage{
		Topic:   "homeassistant/sensor/" + deviceId + "_zone/config",
		Payload: payload,
		QoS:     2,
		Retain:  true,
	})

	return nil
}

// CreatePublishingSwitch creates the switch that pauses zone publishing via MQTT discovery
func (s *MQTTSender) CreatePublishingSwitch() error {
	type haDeviceConfig struct {
		Identifiers  []string `json:"identifiers"`
		Name         string   `json:"name"`
		Manufacturer string   `json:"manufacturer,omitempty"`
	}

	type haSwitchConfig struct {
		Name         string         `json:"name"`
		StateTopic   string         `json:"state_topic"`
		CommandTopic string         `json:"command_topic"`
		UniqueId     string         `json:"unique_id"`
		Icon         string         `json:"icon,omitempty"`
		Device       haDeviceConfig `json:"device"`
	}

	config := haSwitchConfig{
		Name:         "Publishing",
		StateTopic:   TopicPublishingSwitchState,
		CommandTopic: TopicPublishingSwitchCommand,
		UniqueId:     "zonectl_publishing",
		Icon:         "mdi:publish",
		Device: haDeviceConfig{
			Identifiers:  []string{"zonectl"},
			Name:         "Zonectl",
			Manufacturer: "zonectl",
		},
	}

	payload, err := json.Marshal(config)
	if err != nil {
		return err
	}

	s.Send(MQTTMessage{
		Topic:   "homeassistant/switch/zonectl_publishing/config",
		Payload: payload,
		QoS:     2,
		Retain:  true,
	})

	return nil
}

// mqttSenderWorker publishes outgoing MQTT messages, queuing them while disconnected
func mqttSenderWorker(
	ctx context.Context,
	outgoingChan <-chan MQTTMessage,
	clientChan <-chan mqtt.Client,
) {
	log.Println("MQTT sender worker started")

	var client mqtt.Client
	var messageQueue []MQTTMessage

	publish := func(msg MQTTMessage) {
		token := client.Publish(msg.Topic, msg.QoS, msg.Retain, msg.Payload)
		token.Wait()
		if token.Error() != nil {
			log.Printf("Failed to publish to %s: %v\n", msg.Topic, token.Error())
		}
	}

	for {
		select {
		case newClient := <-clientChan:
			log.Println("MQTT sender worker received new client")
			client = newClient

			// Flush anything queued while we had no connection
			if client != nil && client.IsConnected() {
				queuedCount := len(messageQueue)
				for _, msg := range messageQueue {
					publish(msg)
				}
				messageQueue = nil
				if queuedCount > 0 {
					log.Printf("MQTT sender worker processed %d queued messages\n", queuedCount)
				}
			}

		case msg := <-outgoingChan:
			if client != nil && client.IsConnected() {
				publish(msg)
			} else {
				messageQueue = append(messageQueue, msg)
				log.Printf("MQTT sender worker queued message (total queued: %d)\n", len(messageQueue))
			}

		case <-ctx.Done():
			log.Println("MQTT sender worker stopped")
			return
		}
	}
}
