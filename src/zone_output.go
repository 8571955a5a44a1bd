package main

// ZoneOutput drives external hardware to reflect the current zone
type ZoneOutput interface {
	// SetZone activates the output for zone and deactivates all others.
	SetZone(zone int) error

	// Close releases the outputs, leaving every line inactive.
	Close() error
}

// oneHot returns line values with only the line for zone active.
// A zone outside [0, count) leaves every line inactive.
func oneHot(zone, count int) []int {
	values := make([]int, count)
	if zone >= 0 && zone < count {
		values[zone] = 1
	}
	return values
}
