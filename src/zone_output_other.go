//go:build !linux

package main

import "errors"

// GPIOZoneOutput is not available on non-Linux platforms.
type GPIOZoneOutput struct{}

// NewGPIOZoneOutput returns an error on non-Linux platforms.
func NewGPIOZoneOutput(string, []int) (*GPIOZoneOutput, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// SetZone is not implemented on non-Linux platforms.
func (o *GPIOZoneOutput) SetZone(int) error {
	return errors.New("gpio: not supported")
}

// Close is not implemented on non-Linux platforms.
func (o *GPIOZoneOutput) Close() error {
	return nil
}
