//go:build linux

package main

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// GPIOZoneOutput drives one GPIO output line per zone using the Linux GPIO character device.
type GPIOZoneOutput struct {
	chip  *gpiocdev.Chip
	lines []*gpiocdev.Line
}

// NewGPIOZoneOutput requests pins on chipName as outputs, all initially inactive.
func NewGPIOZoneOutput(chipName string, pins []int) (*GPIOZoneOutput, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chipName, err)
	}

	out := &GPIOZoneOutput{chip: chip}
	for _, pin := range pins {
		line, err := chip.RequestLine(pin, gpiocdev.AsOutput(0))
		if err != nil {
			_ = out.Close()
			return nil, fmt.Errorf("request output pin %d: %w", pin, err)
		}
		out.lines = append(out.lines, line)
	}

	return out, nil
}

// SetZone drives the line for zone high and every other line low.
func (o *GPIOZoneOutput) SetZone(zone int) error {
	for i, v := range oneHot(zone, len(o.lines)) {
		if err := o.lines[i].SetValue(v); err != nil {
			return fmt.Errorf("set zone line %d: %w", i, err)
		}
	}
	return nil
}

// Close drives all lines low, then returns them to inputs and releases the chip.
func (o *GPIOZoneOutput) Close() error {
	var errs []error

	for i, line := range o.lines {
		if err := line.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("clear zone line %d: %w", i, err))
		}
		if err := line.Reconfigure(gpiocdev.AsInput); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure zone line %d: %w", i, err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close zone line %d: %w", i, err))
		}
	}
	o.lines = nil

	if o.chip != nil {
		if err := o.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
		o.chip = nil
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
