package main

import (
	"context"
	"log"
	"strings"
)

// Topics for the Home Assistant switch that pauses zone publishing
const (
	TopicPublishingSwitchCommand = "homeassistant/switch/zonectl_publishing/set"
	TopicPublishingSwitchState   = "homeassistant/switch/zonectl_publishing/state"
)

// isDiscoveryTopic checks if a topic is an MQTT discovery config topic
func isDiscoveryTopic(topic string) bool {
	return strings.HasSuffix(topic, "/config")
}

// parseSwitchState parses a Home Assistant switch payload
func parseSwitchState(value string) (bool, bool) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "ON":
		return true, true
	case "OFF":
		return false, true
	default:
		return false, false
	}
}

// switchPayload is the state payload Home Assistant expects for a switch
func switchPayload(on bool) []byte {
	if on {
		return []byte("ON")
	}
	return []byte("OFF")
}

// mqttInterceptorWorker gates outgoing zone publishes on the publishing switch.
// Discovery topics are always forwarded so entities exist while paused.
// Each switch command is echoed to the switch state topic.
func mqttInterceptorWorker(
	ctx context.Context,
	inputChan <-chan MQTTMessage,
	outputChan chan<- MQTTMessage,
	enableChan <-chan bool,
	forceEnable bool,
) {
	log.Println("Publishing interceptor started")
	enabled := true // Default to enabled

	forward := func(msg MQTTMessage) bool {
		select {
		case outputChan <- msg:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for {
		select {
		case newEnabled := <-enableChan:
			if newEnabled != enabled {
				log.Printf("Zone publishing enabled: %v\n", newEnabled)
				enabled = newEnabled
			}
			state := MQTTMessage{Topic: TopicPublishingSwitchState, Payload: switchPayload(enabled), QoS: 1, Retain: true}
			if !forward(state) {
				return
			}

		case msg := <-inputChan:
			if !forceEnable && !enabled && !isDiscoveryTopic(msg.Topic) {
				log.Printf("Zone publishing disabled, dropping message to %s\n", msg.Topic)
				continue
			}
			if !forward(msg) {
				return
			}

		case <-ctx.Done():
			log.Println("Publishing interceptor stopped")
			return
		}
	}
}
