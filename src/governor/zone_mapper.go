// Package governor provides signal conditioning algorithms for control loops.
package governor

import (
	"errors"
	"fmt"
)

// Errors returned by ZoneMapper configuration and mapping.
var (
	ErrIndexOutOfRange     = errors.New("threshold index out of range")
	ErrInvalidThreshold    = errors.New("threshold must satisfy low < center < high")
	ErrThresholdUnset      = errors.New("threshold not configured")
	ErrThresholdsUnordered = errors.New("threshold centers must ascend")
	ErrNotInitialized      = errors.New("zone history not initialized")
)

// Threshold is the dead-band around one boundary between two adjacent zones.
type Threshold struct {
	Low    float64
	Center float64
	High   float64
}

// CompareMode selects which sample MapValueToZone compares against thresholds.
type CompareMode int

const (
	// CompareHistory compares the previously accepted value against bounds
	// chosen by the previous zone, so zone changes trail the crossing sample
	// by one call. This is the default.
	CompareHistory CompareMode = iota
	// CompareInput compares the new input, so a zone change is reported on the
	// sample that crosses the boundary.
	CompareInput
)

// ZoneMapper converts a continuous value into one of N+1 zones separated by N
// thresholds, with hysteresis at each boundary:
//
//	          T0.low   T0.high              T1.low   T1.high
//	            |  T0.center|                 |  T1.center|
//	   zone 0   |     |     |     zone 1      |     |     |   zone 2
//	<-----------+-----+-----+-----------------+-----+-----+----------->
//
// Rising values must pass a threshold's High to enter the zone above it.
// Falling values must pass its Low to drop back. Centers are only used by
// InitHistory.
//
// A ZoneMapper is not safe for concurrent use.
type ZoneMapper struct {
	thresholds []Threshold
	configured []bool
	mode       CompareMode

	lastValue   float64
	lastZone    int
	initialized bool
}

// NewZoneMapper creates a mapper with room for count thresholds.
// A count below 1 is raised to 1.
func NewZoneMapper(count int) *ZoneMapper {
	count = max(count, 1)
	return &ZoneMapper{
		thresholds: make([]Threshold, count),
		configured: make([]bool, count),
	}
}

// SetThresholdOffset configures threshold i as center ± offset.
func (m *ZoneMapper) SetThresholdOffset(i int, center, offset float64) error {
	return m.SetThreshold(i, center-offset, center, center+offset)
}

// SetThreshold configures threshold i. Nothing is changed on error.
func (m *ZoneMapper) SetThreshold(i int, low, center, high float64) error {
	if i < 0 || i >= len(m.thresholds) {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, i, len(m.thresholds))
	}
	if !(low < center && center < high) {
		return fmt.Errorf("%w: index %d has %g/%g/%g", ErrInvalidThreshold, i, low, center, high)
	}

	m.thresholds[i] = Threshold{Low: low, Center: center, High: high}
	m.configured[i] = true
	return nil
}

// Threshold returns threshold i, or false if i is out of range.
func (m *ZoneMapper) Threshold(i int) (Threshold, bool) {
	if i < 0 || i >= len(m.thresholds) {
		return Threshold{}, false
	}
	return m.thresholds[i], true
}

// ThresholdCount returns N, the number of thresholds.
func (m *ZoneMapper) ThresholdCount() int {
	return len(m.thresholds)
}

// Validate checks that every threshold is configured and that centers ascend.
func (m *ZoneMapper) Validate() error {
	for i, th := range m.thresholds {
		if !m.configured[i] {
			return fmt.Errorf("%w: index %d", ErrThresholdUnset, i)
		}
		if !(th.Low < th.Center && th.Center < th.High) {
			return fmt.Errorf("%w: index %d", ErrInvalidThreshold, i)
		}
		if i > 0 && !(m.thresholds[i-1].Center < th.Center) {
			return fmt.Errorf("%w: center %d (%g) is not above center %d (%g)",
				ErrThresholdsUnordered, i, th.Center, i-1, m.thresholds[i-1].Center)
		}
	}
	return nil
}

// SetCompareMode selects the sample compared by MapValueToZone.
func (m *ZoneMapper) SetCompareMode(mode CompareMode) {
	m.mode = mode
}

// InitHistory seeds the mapper as if it had no hysteresis: the zone is the
// index of the first threshold whose center lies above value, or N if none does.
func (m *ZoneMapper) InitHistory(value float64) {
	zone := len(m.thresholds)
	for i, th := range m.thresholds {
		if value < th.Center {
			zone = i
			break
		}
	}

	m.lastValue = value
	m.lastZone = zone
	m.initialized = true
}

// Initialized reports whether InitHistory has been called.
func (m *ZoneMapper) Initialized() bool {
	return m.initialized
}

// MapValueToZone maps value to a zone and records it as the latest sample.
// Thresholds below the current zone are compared against their Low bound and
// the rest against their High bound, so a boundary only changes the zone once
// the value has left its dead-band in the direction of travel.
// In the default CompareHistory mode the compared sample is the previous value,
// so the zone returned describes the sample before value.
func (m *ZoneMapper) MapValueToZone(value float64) (int, error) {
	if !m.initialized {
		return 0, ErrNotInitialized
	}

	sample := m.lastValue
	if m.mode == CompareInput {
		sample = value
	}

	zone := len(m.thresholds)
	for i, th := range m.thresholds {
		bound := th.High
		if i < m.lastZone {
			bound = th.Low
		}
		if sample < bound {
			zone = i
			break
		}
	}

	m.lastValue = value
	m.lastZone = zone
	return zone, nil
}

// LastValue returns the most recent value passed to InitHistory or MapValueToZone.
func (m *ZoneMapper) LastValue() float64 {
	return m.lastValue
}

// LastZone returns the zone produced by the most recent InitHistory or MapValueToZone.
func (m *ZoneMapper) LastZone() int {
	return m.lastZone
}

// ZoneCount returns N+1, the number of zones.
func (m *ZoneMapper) ZoneCount() int {
	return len(m.thresholds) + 1
}
