package main

import (
	"errors"
	"fmt"
	"strconv"
)

// Config holds settings read from the environment (.env is loaded first)
type Config struct {
	MQTTBroker   string
	MQTTUsername string
	MQTTPassword string
	MQTTClientID string

	SerialPort string // Empty disables the serial reading source
	Serial     SerialOptions

	GPIOChip string // Empty disables zone outputs
	Debug    bool

	ForcePublish bool // Ignore the publishing switch
}

// loadConfig reads configuration using getenv (os.Getenv outside of tests)
func loadConfig(getenv func(string) string) (Config, error) {
	config := Config{
		MQTTBroker:   getenv("MQTT_BROKER"),
		MQTTUsername: getenv("MQTT_USERNAME"),
		MQTTPassword: getenv("MQTT_PASSWORD"),
		MQTTClientID: getenv("MQTT_CLIENT_ID"),
		SerialPort:   getenv("SERIAL_PORT"),
		GPIOChip:     getenv("GPIO_CHIP"),
		Serial: SerialOptions{
			Parity:       getenv("SERIAL_PARITY"),
			DefaultTopic: getenv("SERIAL_DEFAULT_TOPIC"),
		},
	}

	if config.MQTTUsername == "" || config.MQTTPassword == "" {
		return config, errors.New("MQTT_USERNAME and MQTT_PASSWORD must be set in .env file")
	}
	if config.MQTTBroker == "" {
		config.MQTTBroker = "homeassistant.lan"
	}
	if config.MQTTClientID == "" {
		config.MQTTClientID = "zonectl"
	}

	if v := getenv("SERIAL_BAUD"); v != "" {
		baud, err := strconv.Atoi(v)
		if err != nil {
			return config, fmt.Errorf("SERIAL_BAUD: %w", err)
		}
		config.Serial.BaudRate = baud
	}

	if config.SerialPort != "" {
		opts, err := config.Serial.Normalize()
		if err != nil {
			return config, fmt.Errorf("serial options: %w", err)
		}
		config.Serial = opts
	}

	if v := getenv("ZONECTL_DEBUG"); v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return config, fmt.Errorf("ZONECTL_DEBUG: %w", err)
		}
		config.Debug = debug
	}

	if v := getenv("ZONECTL_FORCE_ENABLE"); v != "" {
		force, err := strconv.ParseBool(v)
		if err != nil {
			return config, fmt.Errorf("ZONECTL_FORCE_ENABLE: %w", err)
		}
		config.ForcePublish = force
	}

	return config, nil
}
