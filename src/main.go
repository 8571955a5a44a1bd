package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"slices"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/joho/godotenv"
)

// buildTopicsList creates the MQTT subscription list from zone mapper configs
func buildTopicsList(configs []ZoneMapperConfig) []string {
	topics := make([]string, 0, len(configs))
	for _, c := range configs {
		topics = append(topics, c.InputTopic)
	}
	slices.Sort(topics)
	return slices.Compact(topics)
}

// openZoneOutput opens GPIO outputs for a mapper, or returns nil if it has none.
// Failure to open is logged and the worker runs without outputs.
func openZoneOutput(chipName string, config ZoneMapperConfig) ZoneOutput {
	if chipName == "" || len(config.OutputPins) == 0 {
		return nil
	}
	out, err := NewGPIOZoneOutput(chipName, config.OutputPins)
	if err != nil {
		log.Printf("%s: zone outputs disabled: %v\n", config.Name, err)
		return nil
	}
	return out
}

func main() {
	log.Println("Starting zonectl...")

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Error loading .env file: %v\n", err)
	}

	config, err := loadConfig(os.Getenv)
	if err != nil {
		log.Fatal(err)
	}

	// Define zone mapper configurations
	waterTank := ZoneMapperConfig{
		Name:       "Water Tank Level",
		InputTopic: "homeassistant/sensor/water_tank_level/state",
		Unit:       "%",
		Thresholds: []ThresholdConfig{
			{Center: 15, Offset: 3},
			{Center: 50, Offset: 5},
			{Center: 90, Offset: 3},
		},
		OutputPins:   []int{5, 6, 13, 19},
		CompareInput: true,
	}

	houseBattery := ZoneMapperConfig{
		Name:       "House Battery Voltage",
		InputTopic: "homeassistant/sensor/solar_3_battery_voltage/state",
		Unit:       "V",
		Thresholds: []ThresholdConfig{
			{Low: 50.5, Center: 50.75, High: 51.2},
			{Low: 53.3, Center: 53.5, High: 53.6},
		},
	}

	configs := []ZoneMapperConfig{waterTank, houseBattery}

	if err := applyThresholdOverrides(configs, os.Getenv); err != nil {
		log.Fatalf("Invalid threshold override: %v", err)
	}
	for _, c := range configs {
		if _, err := c.Build(); err != nil {
			log.Fatalf("Invalid zone mapper config: %v", err)
		}
	}

	topics := buildTopicsList(configs)
	topics = append(topics, TopicPublishingSwitchCommand)

	// Create context for lifecycle management
	ctx, cancel := context.WithCancel(context.Background())

	// Create channels for communication between workers
	msgChan := make(chan SensorMessage, 10)
	readingChan := make(chan Reading, 10)
	updateChan := make(chan ZoneUpdate, 10)
	publishEnableChan := make(chan bool, 1)
	mqttInterceptChan := make(chan MQTTMessage, 10)
	mqttOutgoingChan := make(chan MQTTMessage, 100) // Larger buffer for queuing
	mqttClientChan := make(chan mqtt.Client, 1)     // Buffered to prevent blocking onConnect

	// Launch MQTT sender worker (receives client updates via channel)
	SafeGo(ctx, cancel, "mqtt-sender-worker", func(ctx context.Context) {
		mqttSenderWorker(ctx, mqttOutgoingChan, mqttClientChan)
	})

	// Zone publishes pass through the interceptor so the HA switch can pause them
	SafeGo(ctx, cancel, "mqtt-interceptor", func(ctx context.Context) {
		mqttInterceptorWorker(ctx, mqttInterceptChan, mqttOutgoingChan, publishEnableChan, config.ForcePublish)
	})

	// Create MQTT sender for workers
	mqttSender := NewMQTTSender(mqttInterceptChan)

	log.Println("Creating Home Assistant entities...")
	if err := mqttSender.CreatePublishingSwitch(); err != nil {
		cancel()
		log.Fatalf("Failed to create publishing switch: %v", err)
	}
	for _, c := range configs {
		if err := mqttSender.CreateZoneEntity(c); err != nil {
			cancel()
			log.Fatalf("Failed to create %s zone entity: %v", c.Name, err)
		}
	}
	log.Println("Home Assistant entities created")

	// Launch readings worker (parses raw messages)
	SafeGo(ctx, cancel, "readings-worker", func(ctx context.Context) {
		readingsWorker(ctx, msgChan, readingChan, map[string]chan<- bool{
			TopicPublishingSwitchCommand: publishEnableChan,
		})
	})

	// Launch zone workers and collect their input channels by topic
	downstreamChans := make(map[string][]chan<- Reading)
	reconfigChans := make(map[string]chan<- []ThresholdConfig)
	var debugUpdates chan<- ZoneUpdate
	if config.Debug {
		debugUpdates = updateChan
	}

	for _, c := range configs {
		zoneChan := make(chan Reading, 10)
		reconfigChan := make(chan []ThresholdConfig, 1)
		downstreamChans[c.InputTopic] = append(downstreamChans[c.InputTopic], zoneChan)
		reconfigChans[c.DeviceID()] = reconfigChan

		SafeGo(ctx, cancel, c.DeviceID()+"-zone", func(ctx context.Context) {
			output := openZoneOutput(config.GPIOChip, c)
			zoneWorker(ctx, zoneChan, reconfigChan, c, mqttSender, output, debugUpdates)
		})
	}

	// Launch broadcast worker (fans out to zone workers)
	SafeGo(ctx, cancel, "broadcast-worker", func(ctx context.Context) {
		broadcastWorker(ctx, readingChan, downstreamChans)
	})
	log.Println("Broadcast worker started")

	if config.SerialPort != "" {
		SafeGo(ctx, cancel, "serial-worker", func(ctx context.Context) {
			serialWorker(ctx, config.SerialPort, config.Serial, msgChan)
		})
	}

	if config.Debug {
		debugState := NewDebugState(configs, msgChan, reconfigChans)
		SafeGo(ctx, cancel, "debug-worker", func(ctx context.Context) {
			debugWorker(ctx, cancel, updateChan, debugState)
		})
	}

	// Launch MQTT worker
	SafeGo(ctx, cancel, "mqtt-worker", func(ctx context.Context) {
		mqttWorker(ctx, config.MQTTBroker, topics,
			config.MQTTUsername, config.MQTTPassword, config.MQTTClientID,
			msgChan, mqttClientChan)
	})
	log.Println("MQTT worker started")

	// Wait for interrupt signal or context cancellation (from panic)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Println("\nShutting down...")
	case <-ctx.Done():
		log.Println("\nShutting down due to error...")
	}
	cancel()
}
