package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"go.bug.st/serial"
)

// SerialOptions describes the serial line a sensor controller prints readings on
type SerialOptions struct {
	BaudRate     int
	DataBits     int
	StopBits     int
	Parity       string
	DefaultTopic string // Topic for lines that carry only a value
}

// Normalize validates the options and applies defaults for any unset values.
func (o SerialOptions) Normalize() (SerialOptions, error) {
	opts := o

	if opts.BaudRate <= 0 {
		opts.BaudRate = 9600
	}

	if opts.DataBits == 0 {
		opts.DataBits = 8
	}
	if opts.DataBits < 5 || opts.DataBits > 8 {
		return opts, fmt.Errorf("invalid data bits %d: must be between 5 and 8", opts.DataBits)
	}

	if opts.StopBits == 0 {
		opts.StopBits = 1
	}
	if opts.StopBits != 1 && opts.StopBits != 2 {
		return opts, fmt.Errorf("invalid stop bits %d: supported values are 1 or 2", opts.StopBits)
	}

	parity := strings.TrimSpace(strings.ToUpper(opts.Parity))
	switch parity {
	case "", "N", "NONE":
		parity = "N"
	case "E", "EVEN":
		parity = "E"
	case "O", "ODD":
		parity = "O"
	default:
		return opts, fmt.Errorf("unsupported parity %q: expected N, E, or O", opts.Parity)
	}
	opts.Parity = parity

	return opts, nil
}

// Mode converts the options into the serial.Mode used to open the port
func (o SerialOptions) Mode() (*serial.Mode, error) {
	opts, err := o.Normalize()
	if err != nil {
		return nil, err
	}

	mode := &serial.Mode{
		BaudRate: opts.BaudRate,
		DataBits: opts.DataBits,
		StopBits: serial.OneStopBit,
		Parity:   serial.NoParity,
	}
	if opts.StopBits == 2 {
		mode.StopBits = serial.TwoStopBits
	}
	switch opts.Parity {
	case "E":
		mode.Parity = serial.EvenParity
	case "O":
		mode.Parity = serial.OddParity
	}

	return mode, nil
}

// parseSerialLine parses one line from the controller.
// Accepted forms: "<topic> <value>", "<topic>=<value>", or "<value>" (uses defaultTopic).
// Blank lines and lines starting with '#' are ignored.
func parseSerialLine(line, defaultTopic string) (SensorMessage, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return SensorMessage{}, false
	}

	if topic, value, found := strings.Cut(line, "="); found {
		topic = strings.TrimSpace(topic)
		if topic == "" {
			return SensorMessage{}, false
		}
		return SensorMessage{Topic: topic, Value: strings.TrimSpace(value)}, true
	}

	fields := strings.Fields(line)
	switch len(fields) {
	case 1:
		if defaultTopic == "" {
			return SensorMessage{}, false
		}
		return SensorMessage{Topic: defaultTopic, Value: fields[0]}, true
	case 2:
		return SensorMessage{Topic: fields[0], Value: fields[1]}, true
	default:
		return SensorMessage{}, false
	}
}

// scanSerialLines reads lines until the reader fails or the context is done
func scanSerialLines(ctx context.Context, r io.Reader, defaultTopic string, msgChan chan<- SensorMessage) error {
	scan := bufio.NewScanner(r)
	for scan.Scan() {
		msg, ok := parseSerialLine(scan.Text(), defaultTopic)
		if !ok {
			continue
		}

		select {
		case msgChan <- msg:
		case <-ctx.Done():
			return nil
		}
	}
	return scan.Err()
}

// serialWorker reads sensor readings from a serial port, reopening it if it drops out
func serialWorker(ctx context.Context, portName string, opts SerialOptions, msgChan chan<- SensorMessage) {
	const retryDelay = 5 * time.Second

	mode, err := opts.Mode()
	if err != nil {
		log.Printf("Serial worker: %v\n", err)
		return
	}

	log.Printf("Serial worker started on %s (%d baud)\n", portName, mode.BaudRate)

	for {
		port, err := serial.Open(portName, mode)
		if err != nil {
			log.Printf("Failed to open serial port %s: %v\n", portName, err)
		} else {
			// Closing the port unblocks the scanner on shutdown
			done := make(chan struct{})
			go func() {
				select {
				case <-ctx.Done():
					_ = port.Close()
				case <-done:
				}
			}()

			err = scanSerialLines(ctx, port, opts.DefaultTopic, msgChan)
			close(done)
			_ = port.Close()

			if ctx.Err() == nil {
				log.Printf("Serial port %s closed: %v\n", portName, err)
			}
		}

		select {
		case <-time.After(retryDelay):
		case <-ctx.Done():
			log.Println("Serial worker stopped")
			return
		}
	}
}
