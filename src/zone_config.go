package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ryansname/zonectl/src/governor"
)

// ThresholdConfig describes one zone boundary, either as {Center, Offset}
// or as explicit {Low, Center, High}. With Offset set, Low and High must be
// left zero or equal Center ∓ Offset.
type ThresholdConfig struct {
	Low    float64
	Center float64
	High   float64
	Offset float64
}

// bounds resolves the threshold to an explicit low/center/high triple
func (th ThresholdConfig) bounds() (low, center, high float64, err error) {
	if th.Offset == 0 {
		if th.Low == 0 && th.High == 0 {
			return 0, 0, 0, fmt.Errorf("%w: center %g has neither offset nor low/high",
				governor.ErrInvalidThreshold, th.Center)
		}
		return th.Low, th.Center, th.High, nil
	}

	low, high = th.Center-th.Offset, th.Center+th.Offset
	explicit := th.Low != 0 || th.High != 0
	if explicit && (th.Low != low || th.High != high) {
		return 0, 0, 0, fmt.Errorf("%w: center %g±%g conflicts with explicit %g/%g",
			governor.ErrInvalidThreshold, th.Center, th.Offset, th.Low, th.High)
	}
	return low, th.Center, high, nil
}

// ZoneMapperConfig holds configuration for a single zone worker
type ZoneMapperConfig struct {
	Name           string
	InputTopic     string
	Unit           string
	Thresholds     []ThresholdConfig
	CompareInput   bool  // Compare the new input instead of the previous sample
	OutputPins     []int // One GPIO line per zone, driven one-hot (empty = no outputs)
}

// DeviceID returns the Home Assistant device identifier for this mapper
func (c ZoneMapperConfig) DeviceID() string {
	return strings.ReplaceAll(strings.ToLower(c.Name), " ", "_")
}

// StateTopic returns the topic zone state is published on
func (c ZoneMapperConfig) StateTopic() string {
	return "homeassistant/sensor/" + c.DeviceID() + "_zone/state"
}

// EnvKey returns the environment variable that overrides this mapper's thresholds
func (c ZoneMapperConfig) EnvKey() string {
	return "ZONECTL_THRESHOLDS_" + strings.ToUpper(c.DeviceID())
}

// Build creates a validated zone mapper from the config
func (c ZoneMapperConfig) Build() (*governor.ZoneMapper, error) {
	if len(c.Thresholds) == 0 {
		return nil, fmt.Errorf("%s: no thresholds configured", c.Name)
	}

	mapper := governor.NewZoneMapper(len(c.Thresholds))
	for i, th := range c.Thresholds {
		low, center, high, err := th.bounds()
		if err != nil {
			return nil, fmt.Errorf("%s: threshold %d: %w", c.Name, i, err)
		}
		if err := mapper.SetThreshold(i, low, center, high); err != nil {
			return nil, fmt.Errorf("%s: %w", c.Name, err)
		}
	}

	if err := mapper.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", c.Name, err)
	}

	if len(c.OutputPins) > 0 && len(c.OutputPins) != mapper.ZoneCount() {
		return nil, fmt.Errorf("%s: %d output pins for %d zones", c.Name, len(c.OutputPins), mapper.ZoneCount())
	}

	if c.CompareInput {
		mapper.SetCompareMode(governor.CompareInput)
	}
	return mapper, nil
}

// applyThresholdOverrides replaces thresholds from ZONECTL_THRESHOLDS_<DEVICE_ID> variables
func applyThresholdOverrides(configs []ZoneMapperConfig, getenv func(string) string) error {
	for i := range configs {
		list := getenv(configs[i].EnvKey())
		if list == "" {
			continue
		}
		thresholds, err := ParseThresholds(list)
		if err != nil {
			return fmt.Errorf("%s: %w", configs[i].EnvKey(), err)
		}
		configs[i].Thresholds = thresholds
	}
	return nil
}

// ParseThresholds parses a comma separated threshold list.
// Each entry is either "low:center:high" or "center±offset" ("center+-offset" also accepted).
func ParseThresholds(list string) ([]ThresholdConfig, error) {
	var thresholds []ThresholdConfig
	for entry := range strings.SplitSeq(list, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		th, err := parseThreshold(entry)
		if err != nil {
			return nil, err
		}
		thresholds = append(thresholds, th)
	}

	if len(thresholds) == 0 {
		return nil, fmt.Errorf("no thresholds in %q", list)
	}
	return thresholds, nil
}

func parseThreshold(entry string) (ThresholdConfig, error) {
	for _, sep := range []string{"±", "+-"} {
		center, offset, found := strings.Cut(entry, sep)
		if !found {
			continue
		}
		c, err := strconv.ParseFloat(strings.TrimSpace(center), 64)
		if err != nil {
			return ThresholdConfig{}, fmt.Errorf("invalid center in %q: %w", entry, err)
		}
		o, err := strconv.ParseFloat(strings.TrimSpace(offset), 64)
		if err != nil {
			return ThresholdConfig{}, fmt.Errorf("invalid offset in %q: %w", entry, err)
		}
		return ThresholdConfig{Low: c - o, Center: c, High: c + o, Offset: o}, nil
	}

	parts := strings.Split(entry, ":")
	if len(parts) != 3 {
		return ThresholdConfig{}, fmt.Errorf("invalid threshold %q: expected low:center:high or center±offset", entry)
	}

	values := make([]float64, 3)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return ThresholdConfig{}, fmt.Errorf("invalid threshold %q: %w", entry, err)
		}
		values[i] = v
	}
	return ThresholdConfig{Low: values[0], Center: values[1], High: values[2]}, nil
}

// FormatThresholds renders thresholds in the form accepted by ParseThresholds
func FormatThresholds(thresholds []governor.Threshold) string {
	parts := make([]string, 0, len(thresholds))
	for _, th := range thresholds {
		parts = append(parts, fmt.Sprintf("%g:%g:%g", th.Low, th.Center, th.High))
	}
	return strings.Join(parts, ",")
}

// mapperThresholds reads back all thresholds from a mapper
func mapperThresholds(mapper *governor.ZoneMapper) []governor.Threshold {
	thresholds := make([]governor.Threshold, 0, mapper.ThresholdCount())
	for i := range mapper.ThresholdCount() {
		th, _ := mapper.Threshold(i)
		thresholds = append(thresholds, th)
	}
	return thresholds
}
