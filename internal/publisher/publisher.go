package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/openwx/ecowitt-core/internal/ecowitt"
	"github.com/openwx/ecowitt-core/internal/history"
	"github.com/openwx/ecowitt-core/internal/infrastructure/config"
	"github.com/openwx/ecowitt-core/internal/infrastructure/logging"
	"github.com/openwx/ecowitt-core/internal/infrastructure/mqtt"
	"github.com/openwx/ecowitt-core/internal/metrics"
)

// storeTimeout bounds counter persistence so a locked database cannot
// stall the poll loop.
const storeTimeout = 5 * time.Second

// MessageSink is the MQTT surface the publisher needs.
type MessageSink interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// MeasurementSink is the time-series surface the publisher needs.
type MeasurementSink interface {
	WriteObservationSet(fields map[string]interface{}, timestamp time.Time)
	WriteSensorStatus(sensor string, battery *float64, signal int)
	IsConnected() bool
}

// CounterStore persists the last-seen cumulative counters so deltas
// survive a driver restart. *history.Store satisfies it.
type CounterStore interface {
	LastCounter(ctx context.Context, name string) (float64, time.Time, error)
	SetCounter(ctx context.Context, name string, value float64, at time.Time) error
}

// Publisher turns parsed gateway payloads into published records: field
// renames, per-interval deltas for cumulative counters, then emission to
// MQTT and InfluxDB. It implements the collector's Consumer interface.
//
// All handling runs on the collector's poll goroutine, so internal state
// only needs guarding against concurrent readers (the API server).
type Publisher struct {
	fieldMap     map[string]string
	passUnmapped bool
	perField     bool
	qos          byte

	store  CounterStore
	msgs   MessageSink
	points MeasurementSink

	log     *logging.Logger
	metrics *metrics.Collector
	topics  mqtt.Topics

	mu           sync.RWMutex
	lastCounters map[string]float64
	lastRecord   map[string]any
	lastAt       time.Time
}

// New builds a Publisher from the driver configuration. Any of store,
// msgs and points may be nil; the corresponding output is skipped.
func New(cfg *config.Config, store CounterStore, msgs MessageSink, points MeasurementSink, log *logging.Logger, m *metrics.Collector) *Publisher {
	return &Publisher{
		fieldMap:     mergeFieldMap(cfg.FieldMap),
		passUnmapped: cfg.Publisher.PassUnmapped,
		perField:     cfg.Publisher.PerFieldTopics,
		qos:          byte(cfg.MQTT.QoS),
		store:        store,
		msgs:         msgs,
		points:       points,
		log:          log.With("component", "publisher"),
		metrics:      m,
		lastCounters: make(map[string]float64),
	}
}

// HandleLivedata maps a parsed live-data payload to a flat record,
// derives counter deltas and emits the record to the configured sinks.
func (p *Publisher) HandleLivedata(ld *ecowitt.Livedata) {
	now := time.Now().UTC()
	record := p.buildRecord(ld)
	p.applyDeltas(record, now)

	p.mu.Lock()
	p.lastRecord = record
	p.lastAt = now
	p.mu.Unlock()

	p.emitRecord(record, now)
}

// HandleSensors publishes a sensor registry snapshot.
func (p *Publisher) HandleSensors(sensors []ecowitt.SensorSnapshot) {
	p.emitSensors(toReadings(sensors))
}

// buildRecord flattens the parsed values into a field-to-magnitude map,
// applying the rename table. Unmapped fields pass through under their
// dotted gateway name, minus the ".val" suffix, unless configured away.
func (p *Publisher) buildRecord(ld *ecowitt.Livedata) map[string]any {
	record := make(map[string]any, len(ld.Values))
	for key, v := range ld.Values {
		name, mapped := p.fieldMap[key]
		if !mapped {
			if !p.passUnmapped {
				continue
			}
			name = strings.TrimSuffix(key, ".val")
		}
		record[name] = v.Magnitude
	}
	return record
}

// applyDeltas converts the cumulative counters present in record into
// per-interval delta fields.
//
// The first sighting of a counter produces no delta: there is nothing to
// diff against, and inventing a zero would be indistinguishable from a
// dry interval. A counter that moved backwards is treated as a device
// reset and the new reading becomes the delta.
func (p *Publisher) applyDeltas(record map[string]any, now time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	for _, spec := range counterSpecs {
		cur, ok := record[spec.Source].(float64)
		if !ok {
			continue
		}

		last, known := p.lastCounter(ctx, spec.Source)
		if known {
			delta := cur - last
			if delta < 0 {
				delta = cur
			}
			record[spec.Delta] = delta
		}

		p.mu.Lock()
		p.lastCounters[spec.Source] = cur
		p.mu.Unlock()

		if p.store != nil {
			if err := p.store.SetCounter(ctx, spec.Source, cur, now); err != nil {
				p.log.Warn("persisting counter failed", "counter", spec.Source, "error", err)
			}
		}
	}
}

// lastCounter returns the previous reading for a counter, falling back
// to the persistent store on the first packet after a restart.
func (p *Publisher) lastCounter(ctx context.Context, name string) (float64, bool) {
	p.mu.RLock()
	last, ok := p.lastCounters[name]
	p.mu.RUnlock()
	if ok {
		return last, true
	}
	if p.store == nil {
		return 0, false
	}
	v, _, err := p.store.LastCounter(ctx, name)
	if err != nil {
		if !errors.Is(err, history.ErrNotFound) {
			p.log.Warn("loading counter failed", "counter", name, "error", err)
		}
		return 0, false
	}
	return v, true
}

// emitRecord publishes the record to MQTT and InfluxDB.
func (p *Publisher) emitRecord(record map[string]any, now time.Time) {
	if p.msgs != nil && p.msgs.IsConnected() {
		payload := make(map[string]any, len(record)+1)
		for name, value := range record {
			payload[name] = value
		}
		payload["dateTime"] = now.Unix()

		if data, err := json.Marshal(payload); err == nil {
			if err := p.msgs.Publish(p.topics.Observations(), data, p.qos, true); err != nil {
				p.metrics.RecordPublishError("mqtt")
				p.log.Warn("publishing observations failed", "error", err)
			}
		}

		if p.perField {
			p.emitFields(record)
		}
	}

	if p.points != nil && p.points.IsConnected() {
		fields := make(map[string]interface{}, len(record))
		for name, value := range record {
			fields[name] = value
		}
		p.points.WriteObservationSet(fields, now)
	}
}

// emitFields publishes each record field to its own retained topic so
// consumers can subscribe to single observations.
func (p *Publisher) emitFields(record map[string]any) {
	for name, value := range record {
		data, err := json.Marshal(value)
		if err != nil {
			continue
		}
		if err := p.msgs.Publish(p.topics.Observation(name), data, p.qos, true); err != nil {
			p.metrics.RecordPublishError("mqtt")
			p.log.Warn("publishing observation failed", "field", name, "error", err)
			return
		}
	}
}

// SensorReading is the published view of one registered sensor slot.
type SensorReading struct {
	Name         string   `json:"name"`
	ID           string   `json:"id"`
	Battery      *float64 `json:"battery"`
	BatteryState string   `json:"battery_state"`
	Signal       int      `json:"signal"`
	Enabled      bool     `json:"enabled"`
	Connected    bool     `json:"connected"`
}

// toReadings shapes a registry snapshot into publishable readings.
func toReadings(sensors []ecowitt.SensorSnapshot) []SensorReading {
	readings := make([]SensorReading, 0, len(sensors))
	for _, rec := range sensors {
		readings = append(readings, SensorReading{
			Name:         rec.Name,
			ID:           rec.ID,
			Battery:      rec.Battery,
			BatteryState: ecowitt.BatteryStateDescription(rec.Name, rec.Battery),
			Signal:       rec.Signal,
			Enabled:      rec.Enabled,
			Connected:    rec.Enabled && rec.Signal > 0,
		})
	}
	return readings
}

// emitSensors publishes the registry snapshot to MQTT and InfluxDB.
func (p *Publisher) emitSensors(readings []SensorReading) {
	if p.msgs != nil && p.msgs.IsConnected() {
		if data, err := json.Marshal(readings); err == nil {
			if err := p.msgs.Publish(p.topics.Sensors(), data, p.qos, true); err != nil {
				p.metrics.RecordPublishError("mqtt")
				p.log.Warn("publishing sensors failed", "error", err)
			}
		}
		if p.perField {
			for _, r := range readings {
				data, err := json.Marshal(r)
				if err != nil {
					continue
				}
				if err := p.msgs.Publish(p.topics.Sensor(r.Name), data, p.qos, true); err != nil {
					p.metrics.RecordPublishError("mqtt")
					p.log.Warn("publishing sensor failed", "sensor", r.Name, "error", err)
					break
				}
			}
		}
	}

	if p.points != nil && p.points.IsConnected() {
		for _, r := range readings {
			if !r.Connected {
				continue
			}
			p.points.WriteSensorStatus(r.Name, r.Battery, r.Signal)
		}
	}
}

// PublishDeviceInfo publishes the gateway's identity and station settings
// as a retained document. Upload-service keys are masked before leaving
// the process.
func (p *Publisher) PublishDeviceInfo(version *ecowitt.VersionInfo, settings *ecowitt.StationSettings) {
	if p.msgs == nil || !p.msgs.IsConnected() {
		return
	}
	doc := struct {
		Version  *ecowitt.VersionInfo     `json:"version,omitempty"`
		Settings *ecowitt.StationSettings `json:"settings,omitempty"`
	}{
		Version:  version,
		Settings: settings.Masked(),
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return
	}
	if err := p.msgs.Publish(p.topics.DeviceInfo(), data, p.qos, true); err != nil {
		p.metrics.RecordPublishError("mqtt")
		p.log.Warn("publishing device info failed", "error", err)
	}
}

// LastRecord returns the most recently published record and its
// timestamp. The returned map is a copy.
func (p *Publisher) LastRecord() (map[string]any, time.Time) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.lastRecord == nil {
		return nil, time.Time{}
	}
	record := make(map[string]any, len(p.lastRecord))
	for name, value := range p.lastRecord {
		record[name] = value
	}
	return record, p.lastAt
}
