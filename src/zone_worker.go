package main

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/ryansname/zonectl/src/governor"
)

// How often the current zone is republished when it hasn't changed
const zoneHeartbeatInterval = time.Minute

// ZoneUpdate is a snapshot of a zone worker's state after a reading
type ZoneUpdate struct {
	Name       string
	Value      float64
	Zone       int
	ZoneCount  int
	Changed    bool
	HasRange   bool    // Min/Max are valid
	Min, Max   float64 // Input range over the last hour
	Thresholds []governor.Threshold
	Timestamp  time.Time
}

// zoneState holds runtime state for a zone worker
type zoneState struct {
	config ZoneMapperConfig
	mapper *governor.ZoneMapper
	inputs *governor.RollingRange
}

// snapshot builds a ZoneUpdate from the current state
func (s *zoneState) snapshot(changed bool, at time.Time) ZoneUpdate {
	update := ZoneUpdate{
		Name:       s.config.Name,
		Value:      s.mapper.LastValue(),
		Zone:       s.mapper.LastZone(),
		ZoneCount:  s.mapper.ZoneCount(),
		Changed:    changed,
		Thresholds: mapperThresholds(s.mapper),
		Timestamp:  at,
	}
	lo, okMin := s.inputs.Min()
	hi, okMax := s.inputs.Max()
	if okMin && okMax {
		update.HasRange = true
		update.Min = lo
		update.Max = hi
	}
	return update
}

// apply feeds a reading into the mapper. The first reading seeds the history.
// Returns true if the zone changed (or was established).
func (s *zoneState) apply(reading Reading) (bool, error) {
	if math.IsNaN(reading.Value) || math.IsInf(reading.Value, 0) {
		return false, fmt.Errorf("ignoring non-finite reading %v", reading.Value)
	}

	s.inputs.Observe(reading.Value, reading.Timestamp)

	if !s.mapper.Initialized() {
		s.mapper.InitHistory(reading.Value)
		log.Printf("%s: initialized in zone %d/%d at %.2f%s\n",
			s.config.Name, s.mapper.LastZone(), s.mapper.ZoneCount()-1, reading.Value, s.config.Unit)
		return true, nil
	}

	prevZone := s.mapper.LastZone()
	zone, err := s.mapper.MapValueToZone(reading.Value)
	if err != nil {
		return false, err
	}
	if zone != prevZone {
		log.Printf("%s: zone %d -> %d at %.2f%s\n",
			s.config.Name, prevZone, zone, reading.Value, s.config.Unit)
		return true, nil
	}
	return false, nil
}

// reconfigure swaps in new thresholds, reseeding history from the last value.
// The existing mapper is kept if the new thresholds are invalid.
func (s *zoneState) reconfigure(thresholds []ThresholdConfig) error {
	config := s.config
	config.Thresholds = thresholds

	mapper, err := config.Build()
	if err != nil {
		return err
	}

	if s.mapper.Initialized() {
		mapper.InitHistory(s.mapper.LastValue())
	}
	s.config = config
	s.mapper = mapper
	log.Printf("%s: thresholds set to %s\n", config.Name, FormatThresholds(mapperThresholds(mapper)))
	return nil
}

// zoneWorker owns a single zone mapper. It maps readings for its input topic,
// publishes the zone when it changes (and on a heartbeat), and drives the
// optional zone outputs.
func zoneWorker(
	ctx context.Context,
	readingChan <-chan Reading,
	reconfigChan <-chan []ThresholdConfig,
	config ZoneMapperConfig,
	sender *MQTTSender,
	output ZoneOutput,
	updateChan chan<- ZoneUpdate,
) {
	mapper, err := config.Build()
	if err != nil {
		// Configs are validated at startup, so this is a programming error
		panic(err)
	}

	state := &zoneState{
		config: config,
		mapper: mapper,
		inputs: governor.NewHourlyRange(),
	}

	log.Printf("%s zone worker started (%d zones, thresholds %s)\n",
		config.Name, mapper.ZoneCount(), FormatThresholds(mapperThresholds(mapper)))

	heartbeat := time.NewTicker(zoneHeartbeatInterval)
	defer heartbeat.Stop()

	if output != nil {
		defer func() {
			if err := output.Close(); err != nil {
				log.Printf("%s: failed to close zone output: %v\n", state.config.Name, err)
			}
		}()
	}

	publish := func(update ZoneUpdate) {
		if err := sender.PublishZone(state.config, update); err != nil {
			log.Printf("%s: failed to publish zone: %v\n", state.config.Name, err)
		}
	}

	emit := func(update ZoneUpdate) {
		if update.Changed {
			if output != nil {
				if err := output.SetZone(update.Zone); err != nil {
					log.Printf("%s: failed to set zone output: %v\n", state.config.Name, err)
				}
			}
			publish(update)
		}

		if updateChan == nil {
			return
		}
		select {
		case updateChan <- update:
		default:
		}
	}

	for {
		select {
		case reading := <-readingChan:
			if reading.Topic != state.config.InputTopic {
				continue
			}

			changed, err := state.apply(reading)
			if err != nil {
				log.Printf("%s: %v\n", state.config.Name, err)
				continue
			}
			emit(state.snapshot(changed, reading.Timestamp))

		case thresholds := <-reconfigChan:
			if err := state.reconfigure(thresholds); err != nil {
				log.Printf("%s: rejected new thresholds: %v\n", state.config.Name, err)
				continue
			}
			if state.mapper.Initialized() {
				emit(state.snapshot(true, time.Now()))
			}

		case <-heartbeat.C:
			if state.mapper.Initialized() {
				publish(state.snapshot(false, time.Now()))
			}

		case <-ctx.Done():
			log.Printf("%s zone worker stopped\n", state.config.Name)
			return
		}
	}
}
