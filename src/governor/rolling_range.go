package governor

import (
	"math"
	"time"
)

// rangeBucket holds the min/max of the values observed during one slot
type rangeBucket struct {
	slot     int64
	min, max float64
	valid    bool
}

// RollingRange tracks the min/max of observed values over a rolling window
// split into fixed-width buckets. It only reports what was seen; it does not
// alter the values.
type RollingRange struct {
	width    time.Duration
	buckets  []rangeBucket
	lastSlot int64
	seen     bool
}

// NewRollingRange creates a tracker covering count buckets of width each.
func NewRollingRange(width time.Duration, count int) *RollingRange {
	return &RollingRange{
		width:   max(width, time.Second),
		buckets: make([]rangeBucket, max(count, 1)),
	}
}

// NewHourlyRange tracks the last hour in one-minute buckets.
func NewHourlyRange() *RollingRange {
	return NewRollingRange(time.Minute, 60)
}

// Observe records value at time at. Observations older than the newest one
// already recorded are folded into their bucket if it is still in the window.
// NaN is ignored.
func (r *RollingRange) Observe(value float64, at time.Time) {
	if math.IsNaN(value) {
		return
	}
	slot := at.UnixNano() / int64(r.width)
	if r.seen && slot <= r.lastSlot-int64(len(r.buckets)) {
		return
	}

	b := &r.buckets[slot%int64(len(r.buckets))]
	if !b.valid || b.slot != slot {
		*b = rangeBucket{slot: slot, min: value, max: value, valid: true}
	} else {
		b.min = min(b.min, value)
		b.max = max(b.max, value)
	}

	if !r.seen || slot > r.lastSlot {
		r.lastSlot = slot
		r.seen = true
	}
}

// Min returns the smallest value in the window, or false if there is none.
func (r *RollingRange) Min() (float64, bool) {
	result := math.Inf(1)
	found := false
	for _, b := range r.buckets {
		if r.live(b) {
			result = min(result, b.min)
			found = true
		}
	}
	return result, found
}

// Max returns the largest value in the window, or false if there is none.
func (r *RollingRange) Max() (float64, bool) {
	result := math.Inf(-1)
	found := false
	for _, b := range r.buckets {
		if r.live(b) {
			result = max(result, b.max)
			found = true
		}
	}
	return result, found
}

// live reports whether b falls inside the window ending at the newest slot
func (r *RollingRange) live(b rangeBucket) bool {
	return b.valid && b.slot > r.lastSlot-int64(len(r.buckets))
}
