package governor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Single boundary at 5 with a dead-band of 4..6
func newSingleThresholdMapper(t *testing.T) *ZoneMapper {
	t.Helper()
	m := NewZoneMapper(1)
	require.NoError(t, m.SetThreshold(0, 4, 5, 6))
	return m
}

// Boundaries at 10 and 20, each ±1
func newTwoThresholdMapper(t *testing.T) *ZoneMapper {
	t.Helper()
	m := NewZoneMapper(2)
	require.NoError(t, m.SetThreshold(0, 9, 10, 11))
	require.NoError(t, m.SetThresholdOffset(1, 20, 1))
	require.NoError(t, m.Validate())
	return m
}

func mapAll(t *testing.T, m *ZoneMapper, values ...float64) []int {
	t.Helper()
	zones := make([]int, 0, len(values))
	for _, v := range values {
		zone, err := m.MapValueToZone(v)
		require.NoError(t, err)
		zones = append(zones, zone)
	}
	return zones
}

func TestNewZoneMapper(t *testing.T) {
	t.Run("zone count is thresholds plus one", func(t *testing.T) {
		m := NewZoneMapper(3)
		assert.Equal(t, 3, m.ThresholdCount())
		assert.Equal(t, 4, m.ZoneCount())
	})

	t.Run("count below one is raised to one", func(t *testing.T) {
		assert.Equal(t, 2, NewZoneMapper(0).ZoneCount())
		assert.Equal(t, 1, NewZoneMapper(-3).ThresholdCount())
	})

	t.Run("starts uninitialized", func(t *testing.T) {
		m := NewZoneMapper(1)
		assert.False(t, m.Initialized())
	})
}

func TestSetThreshold(t *testing.T) {
	t.Run("offset is applied symmetrically", func(t *testing.T) {
		m := NewZoneMapper(1)
		require.NoError(t, m.SetThresholdOffset(0, 20, 1.5))

		th, ok := m.Threshold(0)
		require.True(t, ok)
		assert.Equal(t, Threshold{Low: 18.5, Center: 20, High: 21.5}, th)
	})

	t.Run("index at or past count is rejected without changes", func(t *testing.T) {
		m := newTwoThresholdMapper(t)

		err := m.SetThreshold(2, 29, 30, 31)
		assert.ErrorIs(t, err, ErrIndexOutOfRange)
		err = m.SetThresholdOffset(5, 30, 1)
		assert.ErrorIs(t, err, ErrIndexOutOfRange)
		err = m.SetThreshold(-1, 29, 30, 31)
		assert.ErrorIs(t, err, ErrIndexOutOfRange)

		th0, _ := m.Threshold(0)
		th1, _ := m.Threshold(1)
		assert.Equal(t, Threshold{Low: 9, Center: 10, High: 11}, th0)
		assert.Equal(t, Threshold{Low: 19, Center: 20, High: 21}, th1)
		assert.Equal(t, 3, m.ZoneCount())
	})

	t.Run("misordered triple is rejected without changes", func(t *testing.T) {
		m := newSingleThresholdMapper(t)

		assert.ErrorIs(t, m.SetThreshold(0, 6, 5, 4), ErrInvalidThreshold)
		assert.ErrorIs(t, m.SetThreshold(0, 5, 5, 6), ErrInvalidThreshold)
		assert.ErrorIs(t, m.SetThresholdOffset(0, 5, 0), ErrInvalidThreshold)
		assert.ErrorIs(t, m.SetThresholdOffset(0, 5, -1), ErrInvalidThreshold)

		th, _ := m.Threshold(0)
		assert.Equal(t, Threshold{Low: 4, Center: 5, High: 6}, th)
	})

	t.Run("threshold read-back out of range", func(t *testing.T) {
		m := NewZoneMapper(1)
		_, ok := m.Threshold(1)
		assert.False(t, ok)
	})
}

func TestValidate(t *testing.T) {
	t.Run("unset slot", func(t *testing.T) {
		m := NewZoneMapper(2)
		require.NoError(t, m.SetThreshold(0, 9, 10, 11))
		assert.ErrorIs(t, m.Validate(), ErrThresholdUnset)
	})

	t.Run("descending centers", func(t *testing.T) {
		m := NewZoneMapper(2)
		require.NoError(t, m.SetThreshold(0, 19, 20, 21))
		require.NoError(t, m.SetThreshold(1, 9, 10, 11))
		assert.ErrorIs(t, m.Validate(), ErrThresholdsUnordered)
	})

	t.Run("equal centers", func(t *testing.T) {
		m := NewZoneMapper(2)
		require.NoError(t, m.SetThresholdOffset(0, 10, 1))
		require.NoError(t, m.SetThresholdOffset(1, 10, 2))
		assert.ErrorIs(t, m.Validate(), ErrThresholdsUnordered)
	})

	t.Run("overlapping dead-bands with ascending centers are allowed", func(t *testing.T) {
		m := NewZoneMapper(2)
		require.NoError(t, m.SetThreshold(0, 5, 10, 25))
		require.NoError(t, m.SetThreshold(1, 15, 20, 30))
		assert.NoError(t, m.Validate())
	})
}

func TestInitHistory(t *testing.T) {
	tests := []struct {
		name     string
		value    float64
		expected int
	}{
		{"below all centers", 0, 0},
		{"inside first dead-band below center", 9.5, 0},
		{"exactly on first center", 10, 1},
		{"between thresholds", 15, 1},
		{"just below second center", 19.99, 1},
		{"exactly on last center", 20, 2},
		{"above all centers", 100, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTwoThresholdMapper(t)
			m.InitHistory(tt.value)

			assert.True(t, m.Initialized())
			assert.Equal(t, tt.expected, m.LastZone())
			assert.Equal(t, tt.value, m.LastValue())
		})
	}
}

// mapStep is one input and the zone the mapper must report for it
type mapStep struct {
	value float64
	zone  int
	note  string
}

func runSteps(t *testing.T, m *ZoneMapper, steps []mapStep) {
	t.Helper()
	for i, step := range steps {
		zone, err := m.MapValueToZone(step.value)
		require.NoError(t, err)
		assert.Equal(t, step.zone, zone, "step %d (feed %v): %s", i, step.value, step.note)
		assert.Equal(t, step.value, m.LastValue())
		assert.Equal(t, step.zone, m.LastZone())
	}
}

func TestMapValueToZone(t *testing.T) {
	t.Run("rejected before init", func(t *testing.T) {
		m := newSingleThresholdMapper(t)

		_, err := m.MapValueToZone(10)
		assert.ErrorIs(t, err, ErrNotInitialized)
		assert.Equal(t, 0, m.LastZone())
		assert.Equal(t, 0.0, m.LastValue())
	})

	t.Run("dead-band 4/5/6 from 3", func(t *testing.T) {
		m := newSingleThresholdMapper(t)
		m.InitHistory(3)
		require.Equal(t, 0, m.LastZone())

		runSteps(t, m, []mapStep{
			{4, 0, "previous 3 is below high"},
			{5, 0, "previous 4 is inside the dead-band"},
			{5.9, 0, "previous 5 is inside the dead-band"},
			{4.2, 0, "previous 5.9 is inside the dead-band"},
			{6, 0, "previous 4.2 is inside the dead-band"},
			{5, 1, "previous 6 reached high"},
			{4, 1, "previous 5 is above low"},
			{6, 1, "previous 4 is not below low"},
			{4.01, 1, "previous 6 is above low"},
			{3.99, 1, "previous 4.01 is above low"},
			{5, 0, "previous 3.99 fell below low"},
		})
	})

	t.Run("two thresholds 9/10/11 and 19/20/21 from 0", func(t *testing.T) {
		m := newTwoThresholdMapper(t)
		m.InitHistory(0)
		require.Equal(t, 0, m.LastZone())

		runSteps(t, m, []mapStep{
			{12, 0, "previous 0 is below T0.high"},
			{15, 1, "previous 12 crossed T0.high"},
			{8, 1, "stays zone 1: previous 15 is above T0.low"},
			{22, 0, "previous 8 fell below T0.low"},
			{22, 2, "previous 22 crossed both highs"},
		})
	})

	t.Run("large drop crosses several lows at once", func(t *testing.T) {
		m := newTwoThresholdMapper(t)
		m.InitHistory(30)
		require.Equal(t, 2, m.LastZone())

		assert.Equal(t, []int{2, 2, 1, 1, 0}, mapAll(t, m, 19.5, 18, 9.1, -5, 0))
	})

	t.Run("exact bounds", func(t *testing.T) {
		m := newSingleThresholdMapper(t)
		m.InitHistory(0)

		// Rising needs a sample >= high, falling needs a sample < low
		assert.Equal(t, []int{0, 1, 1, 0}, mapAll(t, m, 6, 4, 3.999, 0))
	})

	t.Run("unset slots behave as zero thresholds", func(t *testing.T) {
		m := NewZoneMapper(2)
		require.NoError(t, m.SetThreshold(0, 9, 10, 11))

		m.InitHistory(5)
		assert.Equal(t, 0, m.LastZone())
		assert.NotPanics(t, func() {
			assert.Equal(t, []int{0, 2}, mapAll(t, m, 15, 15))
		})
	})

	t.Run("reinit reseeds history", func(t *testing.T) {
		m := newTwoThresholdMapper(t)
		m.InitHistory(0)
		mapAll(t, m, 25, 25)
		require.Equal(t, 2, m.LastZone())

		m.InitHistory(15)
		assert.Equal(t, 1, m.LastZone())
		assert.Equal(t, 15.0, m.LastValue())
	})
}

func TestMapValueToZone_CompareInput(t *testing.T) {
	inputMode := func(m *ZoneMapper) *ZoneMapper {
		m.SetCompareMode(CompareInput)
		return m
	}

	t.Run("dead-band holds zone 0 until high is reached", func(t *testing.T) {
		m := inputMode(newSingleThresholdMapper(t))
		m.InitHistory(3)

		assert.Equal(t, []int{0, 0, 0, 0, 0}, mapAll(t, m, 4, 5, 5.9, 4.2, 5.99))
		assert.Equal(t, []int{1}, mapAll(t, m, 6))
	})

	t.Run("dead-band holds zone 1 until value drops below low", func(t *testing.T) {
		m := inputMode(newSingleThresholdMapper(t))
		m.InitHistory(3)
		mapAll(t, m, 7)
		require.Equal(t, 1, m.LastZone())

		assert.Equal(t, []int{1, 1, 1, 1, 1}, mapAll(t, m, 5, 4, 6, 4.5, 4.01))
		assert.Equal(t, []int{0}, mapAll(t, m, 3.99))
	})

	t.Run("two thresholds report on the crossing sample", func(t *testing.T) {
		m := inputMode(newTwoThresholdMapper(t))
		m.InitHistory(0)

		assert.Equal(t, []int{1, 1, 1, 0, 2}, mapAll(t, m, 12, 15, 9.5, 8, 22))
	})

	t.Run("large drop crosses several lows at once", func(t *testing.T) {
		m := inputMode(newTwoThresholdMapper(t))
		m.InitHistory(30)

		assert.Equal(t, []int{2, 1, 1, 0}, mapAll(t, m, 19.5, 18, 9.1, -5))
	})

	t.Run("default mode is history", func(t *testing.T) {
		m := newTwoThresholdMapper(t)
		m.InitHistory(0)
		assert.Equal(t, []int{0}, mapAll(t, m, 12))

		m.SetCompareMode(CompareInput)
		m.InitHistory(0)
		assert.Equal(t, []int{1}, mapAll(t, m, 12))
	})
}

func TestMonotoneZoneOrdering(t *testing.T) {
	for _, mode := range []CompareMode{CompareHistory, CompareInput} {
		m := NewZoneMapper(3)
		require.NoError(t, m.SetThresholdOffset(0, 10, 1))
		require.NoError(t, m.SetThresholdOffset(1, 20, 2))
		require.NoError(t, m.SetThresholdOffset(2, 30, 0.5))
		require.NoError(t, m.Validate())
		m.SetCompareMode(mode)

		m.InitHistory(-10)
		prev := m.LastZone()
		require.Equal(t, 0, prev)

		for v := -9.5; v <= 50; v += 0.5 {
			zone, err := m.MapValueToZone(v)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, zone, prev, "zone decreased at %v", v)
			assert.LessOrEqual(t, zone-prev, 1, "zone skipped at %v", v)
			prev = zone
		}
		assert.Equal(t, 3, prev)
	}
}

func TestAccessorsAreIdempotent(t *testing.T) {
	m := newTwoThresholdMapper(t)
	m.InitHistory(0)
	mapAll(t, m, 12, 12)

	for range 3 {
		assert.Equal(t, 12.0, m.LastValue())
		assert.Equal(t, 1, m.LastZone())
		assert.Equal(t, 3, m.ZoneCount())
	}
}

func TestZoneCountUnaffectedByMapping(t *testing.T) {
	m := newTwoThresholdMapper(t)
	m.InitHistory(0)
	for _, v := range []float64{5, 50, -50, 15} {
		_, err := m.MapValueToZone(v)
		require.NoError(t, err)
		assert.Equal(t, 3, m.ZoneCount())
	}
}
