package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/openwx/ecowitt-core/internal/ecowitt"
	"github.com/openwx/ecowitt-core/internal/history"
	"github.com/openwx/ecowitt-core/internal/infrastructure/config"
	"github.com/openwx/ecowitt-core/internal/infrastructure/logging"
	"github.com/openwx/ecowitt-core/internal/metrics"
)

// Prometheus instruments register globally, so the package shares one
// collector across tests.
var testMetrics = metrics.NewCollector("ecowitt_publisher_test")

type publishedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

type fakeMessageSink struct {
	connected bool
	err       error
	published []publishedMsg
}

func (f *fakeMessageSink) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, publishedMsg{topic, payload, qos, retained})
	return nil
}

func (f *fakeMessageSink) IsConnected() bool { return f.connected }

func (f *fakeMessageSink) byTopic(topic string) (publishedMsg, bool) {
	for _, m := range f.published {
		if m.topic == topic {
			return m, true
		}
	}
	return publishedMsg{}, false
}

type sensorWrite struct {
	sensor  string
	battery *float64
	signal  int
}

type fakeMeasurementSink struct {
	connected bool
	sets      []map[string]interface{}
	sensors   []sensorWrite
}

func (f *fakeMeasurementSink) WriteObservationSet(fields map[string]interface{}, _ time.Time) {
	f.sets = append(f.sets, fields)
}

func (f *fakeMeasurementSink) WriteSensorStatus(sensor string, battery *float64, signal int) {
	f.sensors = append(f.sensors, sensorWrite{sensor, battery, signal})
}

func (f *fakeMeasurementSink) IsConnected() bool { return f.connected }

type fakeCounterStore struct {
	counters map[string]float64
	setErr   error
}

func newFakeCounterStore() *fakeCounterStore {
	return &fakeCounterStore{counters: make(map[string]float64)}
}

func (f *fakeCounterStore) LastCounter(_ context.Context, name string) (float64, time.Time, error) {
	v, ok := f.counters[name]
	if !ok {
		return 0, time.Time{}, history.ErrNotFound
	}
	return v, time.Now(), nil
}

func (f *fakeCounterStore) SetCounter(_ context.Context, name string, value float64, _ time.Time) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.counters[name] = value
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		Publisher: config.PublisherConfig{
			PassUnmapped:   true,
			PerFieldTopics: true,
		},
		MQTT: config.MQTTConfig{QoS: 1},
	}
}

func livedataWith(values map[string]ecowitt.Value) *ecowitt.Livedata {
	return &ecowitt.Livedata{Values: values, Raw: map[string]any{}}
}

func TestPublisher_RenamesMappedFields(t *testing.T) {
	pub := New(testConfig(), nil, nil, nil, logging.Default(), testMetrics)

	pub.HandleLivedata(livedataWith(map[string]ecowitt.Value{
		"common_list.0x02.val": {Magnitude: 21.4, Unit: ecowitt.UnitDegreeC, Group: ecowitt.GroupTemperature},
		"wh25.rel":             {Magnitude: 1013.2, Unit: "hPa", Group: ecowitt.GroupPressure},
	}))

	record, at := pub.LastRecord()
	if at.IsZero() {
		t.Fatal("LastRecord() timestamp is zero after HandleLivedata")
	}
	if got := record["outTemp"]; got != 21.4 {
		t.Errorf("record[outTemp] = %v, want 21.4", got)
	}
	if got := record["barometer"]; got != 1013.2 {
		t.Errorf("record[barometer] = %v, want 1013.2", got)
	}
	if _, ok := record["common_list.0x02"]; ok {
		t.Error("mapped field also present under its gateway name")
	}
}

func TestPublisher_UnmappedFields(t *testing.T) {
	values := map[string]ecowitt.Value{
		"ch_soil.1.humidity": {Magnitude: 41, Unit: ecowitt.UnitPercent, Group: ecowitt.GroupHumidity},
	}

	t.Run("pass through", func(t *testing.T) {
		pub := New(testConfig(), nil, nil, nil, logging.Default(), testMetrics)
		pub.HandleLivedata(livedataWith(values))

		record, _ := pub.LastRecord()
		if got := record["ch_soil.1.humidity"]; got != 41.0 {
			t.Errorf("record[ch_soil.1.humidity] = %v, want 41", got)
		}
	})

	t.Run("dropped", func(t *testing.T) {
		cfg := testConfig()
		cfg.Publisher.PassUnmapped = false
		pub := New(cfg, nil, nil, nil, logging.Default(), testMetrics)
		pub.HandleLivedata(livedataWith(values))

		record, _ := pub.LastRecord()
		if len(record) != 0 {
			t.Errorf("record = %v, want empty", record)
		}
	})
}

func TestPublisher_FieldMapOverrides(t *testing.T) {
	cfg := testConfig()
	cfg.FieldMap = map[string]string{
		"common_list.0x02.val": "temperature_out",
		"wh25.rel":             "",
	}
	cfg.Publisher.PassUnmapped = false
	pub := New(cfg, nil, nil, nil, logging.Default(), testMetrics)

	pub.HandleLivedata(livedataWith(map[string]ecowitt.Value{
		"common_list.0x02.val": {Magnitude: 21.4, Unit: ecowitt.UnitDegreeC},
		"wh25.rel":             {Magnitude: 1013.2, Unit: "hPa"},
	}))

	record, _ := pub.LastRecord()
	if got := record["temperature_out"]; got != 21.4 {
		t.Errorf("record[temperature_out] = %v, want 21.4", got)
	}
	if _, ok := record["outTemp"]; ok {
		t.Error("default name survived a rename override")
	}
	if _, ok := record["barometer"]; ok {
		t.Error("field dropped by empty override still present")
	}
}

func TestPublisher_RainDelta(t *testing.T) {
	store := newFakeCounterStore()
	pub := New(testConfig(), store, nil, nil, logging.Default(), testMetrics)

	rain := func(total float64) *ecowitt.Livedata {
		return livedataWith(map[string]ecowitt.Value{
			"rain.0x13.val": {Magnitude: total, Unit: "mm", Group: ecowitt.GroupRain},
		})
	}

	pub.HandleLivedata(rain(100.0))
	record, _ := pub.LastRecord()
	if _, ok := record["rain"]; ok {
		t.Errorf("first packet produced a delta: %v", record["rain"])
	}

	pub.HandleLivedata(rain(102.5))
	record, _ = pub.LastRecord()
	if got := record["rain"]; got != 2.5 {
		t.Errorf("record[rain] = %v, want 2.5", got)
	}

	if store.counters["yearRain"] != 102.5 {
		t.Errorf("persisted counter = %v, want 102.5", store.counters["yearRain"])
	}
}

func TestPublisher_RainDelta_CounterReset(t *testing.T) {
	pub := New(testConfig(), nil, nil, nil, logging.Default(), testMetrics)

	ld := func(total float64) *ecowitt.Livedata {
		return livedataWith(map[string]ecowitt.Value{
			"piezoRain.0x13.val": {Magnitude: total, Unit: "mm", Group: ecowitt.GroupRain},
		})
	}

	pub.HandleLivedata(ld(845.3))
	pub.HandleLivedata(ld(0.4))

	record, _ := pub.LastRecord()
	if got := record["p_rain"]; got != 0.4 {
		t.Errorf("record[p_rain] = %v, want 0.4 after counter reset", got)
	}
}

func TestPublisher_DeltaRestoredFromStore(t *testing.T) {
	store := newFakeCounterStore()
	store.counters["yearRain"] = 100.0
	pub := New(testConfig(), store, nil, nil, logging.Default(), testMetrics)

	pub.HandleLivedata(livedataWith(map[string]ecowitt.Value{
		"rain.0x13.val": {Magnitude: 101.0, Unit: "mm", Group: ecowitt.GroupRain},
	}))

	record, _ := pub.LastRecord()
	if got := record["rain"]; got != 1.0 {
		t.Errorf("record[rain] = %v, want 1.0 from persisted counter", got)
	}
}

func TestPublisher_LightningDelta(t *testing.T) {
	pub := New(testConfig(), nil, nil, nil, logging.Default(), testMetrics)

	ld := func(count float64) *ecowitt.Livedata {
		return livedataWith(map[string]ecowitt.Value{
			"lightning.count": {Magnitude: count, Unit: "count", Group: ecowitt.GroupCount},
		})
	}

	pub.HandleLivedata(ld(12))
	pub.HandleLivedata(ld(15))

	record, _ := pub.LastRecord()
	if got := record["lightningStrikes"]; got != 3.0 {
		t.Errorf("record[lightningStrikes] = %v, want 3", got)
	}
}

func TestPublisher_EmitMQTT(t *testing.T) {
	msgs := &fakeMessageSink{connected: true}
	pub := New(testConfig(), nil, msgs, nil, logging.Default(), testMetrics)

	pub.HandleLivedata(livedataWith(map[string]ecowitt.Value{
		"common_list.0x02.val": {Magnitude: 21.4, Unit: ecowitt.UnitDegreeC},
	}))

	doc, ok := msgs.byTopic("weather/ecowitt/observations")
	if !ok {
		t.Fatal("no message on the observations topic")
	}
	if !doc.retained || doc.qos != 1 {
		t.Errorf("observations message retained=%v qos=%d, want retained qos 1", doc.retained, doc.qos)
	}
	var payload map[string]any
	if err := json.Unmarshal(doc.payload, &payload); err != nil {
		t.Fatalf("observations payload is not JSON: %v", err)
	}
	if got := payload["outTemp"]; got != 21.4 {
		t.Errorf("payload[outTemp] = %v, want 21.4", got)
	}
	if _, ok := payload["dateTime"]; !ok {
		t.Error("payload missing dateTime")
	}

	field, ok := msgs.byTopic("weather/ecowitt/observations/outTemp")
	if !ok {
		t.Fatal("no per-field message for outTemp")
	}
	if string(field.payload) != "21.4" {
		t.Errorf("per-field payload = %s, want 21.4", field.payload)
	}
}

func TestPublisher_PerFieldTopicsDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Publisher.PerFieldTopics = false
	msgs := &fakeMessageSink{connected: true}
	pub := New(cfg, nil, msgs, nil, logging.Default(), testMetrics)

	pub.HandleLivedata(livedataWith(map[string]ecowitt.Value{
		"common_list.0x02.val": {Magnitude: 21.4, Unit: ecowitt.UnitDegreeC},
	}))

	if len(msgs.published) != 1 {
		t.Errorf("published %d messages, want only the observations document", len(msgs.published))
	}
}

func TestPublisher_SkipsDisconnectedSinks(t *testing.T) {
	msgs := &fakeMessageSink{connected: false}
	points := &fakeMeasurementSink{connected: false}
	pub := New(testConfig(), nil, msgs, points, logging.Default(), testMetrics)

	pub.HandleLivedata(livedataWith(map[string]ecowitt.Value{
		"common_list.0x02.val": {Magnitude: 21.4, Unit: ecowitt.UnitDegreeC},
	}))

	if len(msgs.published) != 0 {
		t.Errorf("published %d MQTT messages while disconnected", len(msgs.published))
	}
	if len(points.sets) != 0 {
		t.Errorf("wrote %d observation sets while disconnected", len(points.sets))
	}
	if record, _ := pub.LastRecord(); record["outTemp"] != 21.4 {
		t.Error("record not retained for the API while sinks are down")
	}
}

func TestPublisher_EmitInflux(t *testing.T) {
	points := &fakeMeasurementSink{connected: true}
	pub := New(testConfig(), nil, nil, points, logging.Default(), testMetrics)

	pub.HandleLivedata(livedataWith(map[string]ecowitt.Value{
		"common_list.0x02.val": {Magnitude: 21.4, Unit: ecowitt.UnitDegreeC},
		"common_list.0x07.val": {Magnitude: 63, Unit: ecowitt.UnitPercent},
	}))

	if len(points.sets) != 1 {
		t.Fatalf("wrote %d observation sets, want 1", len(points.sets))
	}
	set := points.sets[0]
	if set["outTemp"] != 21.4 || set["outHumidity"] != 63.0 {
		t.Errorf("observation set = %v", set)
	}
}

func TestPublisher_HandleSensors(t *testing.T) {
	registry := ecowitt.NewSensors(ecowitt.SensorsConfig{})
	err := registry.ParseGetSensorsInfo([]any{
		map[string]any{"img": "wh41", "type": "22", "name": "PM2.5", "id": "C497", "batt": "2", "signal": "4"},
		map[string]any{"img": "wh45", "type": "39", "name": "CO2", "id": "FFFFFFFF", "batt": "9", "signal": "0"},
	})
	if err != nil {
		t.Fatalf("ParseGetSensorsInfo() error = %v", err)
	}

	msgs := &fakeMessageSink{connected: true}
	points := &fakeMeasurementSink{connected: true}
	pub := New(testConfig(), nil, msgs, points, logging.Default(), testMetrics)

	pub.HandleSensors(registry.Snapshot())

	doc, ok := msgs.byTopic("weather/ecowitt/sensors")
	if !ok {
		t.Fatal("no message on the sensors topic")
	}
	var readings []SensorReading
	if err := json.Unmarshal(doc.payload, &readings); err != nil {
		t.Fatalf("sensors payload is not JSON: %v", err)
	}
	var wh41 *SensorReading
	for i := range readings {
		if strings.HasPrefix(readings[i].Name, "wh41") {
			wh41 = &readings[i]
		}
	}
	if wh41 == nil {
		t.Fatal("wh41 missing from sensors payload")
	}
	if !wh41.Connected || wh41.Battery == nil || *wh41.Battery != 2 {
		t.Errorf("wh41 reading = %+v, want connected with battery 2", wh41)
	}

	// Only connected sensors produce time-series points.
	if len(points.sensors) != 1 {
		t.Fatalf("wrote %d sensor points, want 1", len(points.sensors))
	}
	if !strings.HasPrefix(points.sensors[0].sensor, "wh41") {
		t.Errorf("sensor point for %q, want wh41", points.sensors[0].sensor)
	}
}

func TestPublisher_PublishDeviceInfo_MasksKeys(t *testing.T) {
	msgs := &fakeMessageSink{connected: true}
	pub := New(testConfig(), nil, msgs, nil, logging.Default(), testMetrics)

	version := "Version: GW2000A_V3.1.2"
	key := "abcdef12345"
	settings := &ecowitt.StationSettings{WUKey: &key}

	pub.PublishDeviceInfo(&ecowitt.VersionInfo{Version: &version}, settings)

	doc, ok := msgs.byTopic("weather/ecowitt/device")
	if !ok {
		t.Fatal("no message on the device topic")
	}
	if strings.Contains(string(doc.payload), key) {
		t.Error("device payload leaks the upload-service key")
	}
	if !strings.Contains(string(doc.payload), "*") {
		t.Error("device payload carries no masked key")
	}

	// Masking must not touch the caller's settings.
	if *settings.WUKey != key {
		t.Error("PublishDeviceInfo mutated the caller's settings")
	}
}

func TestPublisher_PublishErrorTolerated(t *testing.T) {
	msgs := &fakeMessageSink{connected: true, err: errPublish}
	points := &fakeMeasurementSink{connected: true}
	pub := New(testConfig(), nil, msgs, points, logging.Default(), testMetrics)

	pub.HandleLivedata(livedataWith(map[string]ecowitt.Value{
		"common_list.0x02.val": {Magnitude: 21.4, Unit: ecowitt.UnitDegreeC},
	}))

	// A failing broker must not stop the time-series write.
	if len(points.sets) != 1 {
		t.Errorf("wrote %d observation sets, want 1", len(points.sets))
	}
}

var errPublish = errors.New("broker unavailable")
