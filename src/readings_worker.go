package main

import (
	"context"
	"log"
	"math"
	"strconv"
	"strings"
	"time"
)

// SensorMessage represents a raw sensor message with topic and value
type SensorMessage struct {
	Topic string
	Value string
}

// Reading is a parsed numeric sensor reading
type Reading struct {
	Topic     string
	Value     float64
	Timestamp time.Time
}

// Values published by Home Assistant when a sensor has dropped out
var unavailableValues = map[string]bool{
	"undefined":   true,
	"unavailable": true,
	"unknown":     true,
	"":            true,
}

// parseReading converts a SensorMessage into a Reading.
// Returns false for dropped-out sensors, non-numeric payloads and NaN/Inf.
func parseReading(msg SensorMessage, now time.Time) (Reading, bool) {
	value := strings.TrimSpace(msg.Value)
	if unavailableValues[strings.ToLower(value)] {
		return Reading{}, false
	}

	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		log.Printf("Ignoring non-numeric value on %s: %q\n", msg.Topic, msg.Value)
		return Reading{}, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		log.Printf("Ignoring non-finite value on %s: %q\n", msg.Topic, msg.Value)
		return Reading{}, false
	}

	return Reading{Topic: msg.Topic, Value: f, Timestamp: now}, true
}

// readingsWorker parses raw sensor messages and forwards numeric readings.
// Messages on a topic in switches are parsed as ON/OFF and sent to that channel instead.
func readingsWorker(
	ctx context.Context,
	msgChan <-chan SensorMessage,
	outputChan chan<- Reading,
	switches map[string]chan<- bool,
) {
	log.Println("Readings worker started")

	for {
		select {
		case msg := <-msgChan:
			if switchChan, ok := switches[msg.Topic]; ok {
				on, valid := parseSwitchState(msg.Value)
				if !valid {
					log.Printf("Ignoring switch value on %s: %q\n", msg.Topic, msg.Value)
					continue
				}
				select {
				case switchChan <- on:
				case <-ctx.Done():
					return
				}
				continue
			}

			reading, ok := parseReading(msg, time.Now())
			if !ok {
				continue
			}

			select {
			case outputChan <- reading:
			case <-ctx.Done():
				return
			}

		case <-ctx.Done():
			log.Println("Readings worker stopped")
			return
		}
	}
}
