package ecowitt

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Registration sentinel IDs. A sensor slot reporting one of these is not
// paired with physical hardware: ffffffff means the slot is learning
// (registering), fffffffe means the slot has been disabled by the user.
const (
	IDLearning = "ffffffff"
	IDDisabled = "fffffffe"
)

// Battery decode classes. A sensor model appears in exactly one of the
// binary/int/volt groups; noLowModels additionally marks voltage-reporting
// models with no defined low threshold.
var (
	noLowModels      = []string{"ws80", "ws85", "ws90"}
	battBinaryModels = []string{"wh65", "wh25", "wh26", "wn31", "wn32"}
	battIntModels    = []string{"wh40", "wh41", "wh43", "wh45", "wh55", "wh57"}
	battVoltModels   = []string{"wh68", "wh51", "wh54", "wn34", "wn35", "ws80", "ws85", "ws90"}
)

// voltageKeys maps flattened live-data keys carrying a battery voltage to
// the address of the sensor the voltage belongs to. These sensors report a
// coarse integer battery state in the sensor table; the live-data voltage
// is the better figure and supersedes it.
var voltageKeys = map[string]int{
	"piezoRain.0x13.voltage": 48,
	"ch_soil.1.voltage":      14,
	"ch_soil.2.voltage":      15,
	"ch_soil.3.voltage":      16,
	"ch_soil.4.voltage":      17,
	"ch_soil.5.voltage":      18,
	"ch_soil.6.voltage":      19,
	"ch_soil.7.voltage":      20,
	"ch_soil.8.voltage":      21,
	"ch_soil.9.voltage":      58,
	"ch_soil.10.voltage":     59,
	"ch_soil.11.voltage":     60,
	"ch_soil.12.voltage":     61,
	"ch_soil.13.voltage":     62,
	"ch_soil.14.voltage":     63,
	"ch_soil.15.voltage":     64,
	"ch_soil.16.voltage":     65,
	"ch_temp.1.voltage":      31,
	"ch_temp.2.voltage":      32,
	"ch_temp.3.voltage":      33,
	"ch_temp.4.voltage":      34,
	"ch_temp.5.voltage":      35,
	"ch_temp.6.voltage":      36,
	"ch_temp.7.voltage":      37,
	"ch_temp.8.voltage":      38,
	"ch_lds.1.voltage":       66,
	"ch_lds.2.voltage":       67,
	"ch_lds.3.voltage":       68,
	"ch_lds.4.voltage":       69,
}

// sensorAddresses maps the device's sensor-table address to the composite
// sensor name: the model, with a channel suffix for channelised models.
// Addresses 50-57 are unassigned by the device.
var sensorAddresses = map[int]string{
	0:  "ws69",
	1:  "wh68",
	2:  "ws80",
	3:  "wh40",
	4:  "wh25",
	5:  "wh26",
	6:  "wn31_ch1",
	7:  "wn31_ch2",
	8:  "wn31_ch3",
	9:  "wn31_ch4",
	10: "wn31_ch5",
	11: "wn31_ch6",
	12: "wn31_ch7",
	13: "wn31_ch8",
	14: "wh51_ch1",
	15: "wh51_ch2",
	16: "wh51_ch3",
	17: "wh51_ch4",
	18: "wh51_ch5",
	19: "wh51_ch6",
	20: "wh51_ch7",
	21: "wh51_ch8",
	22: "wh41_ch1",
	23: "wh41_ch2",
	24: "wh41_ch3",
	25: "wh41_ch4",
	26: "wh57",
	27: "wh55_ch1",
	28: "wh55_ch2",
	29: "wh55_ch3",
	30: "wh55_ch4",
	31: "wn34_ch1",
	32: "wn34_ch2",
	33: "wn34_ch3",
	34: "wn34_ch4",
	35: "wn34_ch5",
	36: "wn34_ch6",
	37: "wn34_ch7",
	38: "wn34_ch8",
	39: "wh45",
	40: "wn35_ch1",
	41: "wn35_ch2",
	42: "wn35_ch3",
	43: "wn35_ch4",
	44: "wn35_ch5",
	45: "wn35_ch6",
	46: "wn35_ch7",
	47: "wn35_ch8",
	48: "ws90",
	49: "ws85",
	58: "wh51_ch9",
	59: "wh51_ch10",
	60: "wh51_ch11",
	61: "wh51_ch12",
	62: "wh51_ch13",
	63: "wh51_ch14",
	64: "wh51_ch15",
	65: "wh51_ch16",
	66: "wh54_ch1",
	67: "wh54_ch2",
	68: "wh54_ch3",
	69: "wh54_ch4",
}

// SensorAddressName resolves a sensor-table address to its composite name.
func SensorAddressName(address int) (string, bool) {
	name, ok := sensorAddresses[address]
	return name, ok
}

// SensorRecord is the decoded state of one sensor-table slot.
type SensorRecord struct {
	// Address is the slot's sensor-table address, 0-69.
	Address int `json:"address"`

	// ID is the paired sensor's hex ID as reported, or a registration
	// sentinel for an unpaired slot.
	ID string `json:"id"`

	// Battery is the decoded battery state: binary flag, integer level or
	// volts depending on the model's decode class. Nil when the slot is
	// not enabled or the raw value could not be decoded.
	Battery *float64 `json:"battery"`

	// Signal is the reception quality, 0-4. Zero means no data received.
	Signal int `json:"signal"`

	// Enabled reports whether the slot is paired with real hardware,
	// i.e. the ID is not a registration sentinel.
	Enabled bool `json:"enabled"`

	// Version is the sensor's firmware version where the device reports
	// one, nil otherwise.
	Version *string `json:"version"`
}

// SensorsConfig controls battery decoding behaviour.
type SensorsConfig struct {
	// WH40LegacyThreshold is the raw battery value below which a WH40 is
	// treated as the legacy hardware revision that reports no usable
	// battery data.
	WH40LegacyThreshold int

	// IgnoreWH40Legacy discards legacy WH40 battery values instead of
	// decoding them as tenth-volts.
	IgnoreWH40Legacy bool
}

// DefaultSensorsConfig returns the decoding defaults.
func DefaultSensorsConfig() SensorsConfig {
	return SensorsConfig{
		WH40LegacyThreshold: 20,
		IgnoreWH40Legacy:    true,
	}
}

// Sensors holds the most recently parsed sensor-table snapshot, keyed by
// model then channel (channel 0 for single-instance models).
//
// A Sensors is not safe for concurrent mutation; the poller owns it and
// rebuilds it from each sensor-table response.
type Sensors struct {
	cfg  SensorsConfig
	data map[string]map[int]*SensorRecord
}

// NewSensors returns an empty registry using the given decode config.
func NewSensors(cfg SensorsConfig) *Sensors {
	return &Sensors{
		cfg:  cfg,
		data: make(map[string]map[int]*SensorRecord),
	}
}

// compositeName joins a model and channel into the composite sensor name.
func compositeName(model string, channel int) string {
	if channel == 0 {
		return model
	}
	return fmt.Sprintf("%s_ch%d", model, channel)
}

// splitComposite is the inverse of compositeName.
func splitComposite(name string) (model string, channel int) {
	if idx := strings.LastIndex(name, "_ch"); idx >= 0 {
		if ch, err := strconv.Atoi(name[idx+3:]); err == nil {
			return name[:idx], ch
		}
	}
	return name, 0
}

// Set replaces the record for the given composite sensor name.
func (s *Sensors) Set(name string, rec *SensorRecord) {
	model, channel := splitComposite(name)
	if s.data[model] == nil {
		s.data[model] = make(map[int]*SensorRecord)
	}
	s.data[model][channel] = rec
}

// Get returns the record for the given composite sensor name.
func (s *Sensors) Get(name string) (*SensorRecord, bool) {
	model, channel := splitComposite(name)
	rec, ok := s.data[model][channel]
	return rec, ok
}

// AllModels returns the sorted model names present in the registry,
// ignoring channels.
func (s *Sensors) AllModels() []string {
	models := make([]string, 0, len(s.data))
	for model := range s.data {
		models = append(models, model)
	}
	sort.Strings(models)
	return models
}

// All returns the sorted composite names of every slot in the registry.
func (s *Sensors) All() []string {
	return s.selectNames(func(*SensorRecord) bool { return true })
}

// Enabled returns the sorted composite names of slots paired with hardware.
func (s *Sensors) Enabled() []string {
	return s.selectNames(func(r *SensorRecord) bool { return r.Enabled })
}

// Disabled returns the sorted composite names of slots not paired with
// hardware, whether disabled by the user or still learning.
func (s *Sensors) Disabled() []string {
	return s.selectNames(func(r *SensorRecord) bool { return !r.Enabled })
}

// Learning returns the sorted composite names of slots currently
// registering.
func (s *Sensors) Learning() []string {
	return s.selectNames(func(r *SensorRecord) bool {
		return strings.EqualFold(r.ID, IDLearning)
	})
}

// Connected returns the sorted composite names of enabled slots that have
// received data, i.e. with a non-zero signal level.
func (s *Sensors) Connected() []string {
	return s.selectNames(func(r *SensorRecord) bool {
		return r.Enabled && r.Signal > 0
	})
}

func (s *Sensors) selectNames(keep func(*SensorRecord) bool) []string {
	var names []string
	for model, channels := range s.data {
		for channel, rec := range channels {
			if keep(rec) {
				names = append(names, compositeName(model, channel))
			}
		}
	}
	sort.Strings(names)
	return names
}

// SensorSnapshot is a value copy of one registered slot, safe to hand to
// other goroutines while the poller keeps mutating the registry.
type SensorSnapshot struct {
	Name string `json:"name"`
	SensorRecord
}

// Snapshot returns value copies of every slot, sorted by composite name.
// Battery and version values are copied, so later live-data voltage
// updates do not show through into a snapshot already handed out.
func (s *Sensors) Snapshot() []SensorSnapshot {
	names := s.All()
	snapshot := make([]SensorSnapshot, 0, len(names))
	for _, name := range names {
		rec, ok := s.Get(name)
		if !ok {
			continue
		}
		snap := SensorSnapshot{Name: name, SensorRecord: *rec}
		if rec.Battery != nil {
			v := *rec.Battery
			snap.Battery = &v
		}
		if rec.Version != nil {
			v := *rec.Version
			snap.Version = &v
		}
		snapshot = append(snapshot, snap)
	}
	return snapshot
}

// ParseGetSensorsInfo rebuilds the registry from a decoded get_sensors_info
// response: an array of slot objects each carrying type (the sensor-table
// address), id, batt and signal fields. Entries with an unknown address are
// skipped. Returns ErrInvalidResponse when response is not an array.
func (s *Sensors) ParseGetSensorsInfo(response any) error {
	entries, ok := response.([]any)
	if !ok {
		return fmt.Errorf("%w: get_sensors_info response is not an array", ErrInvalidResponse)
	}
	s.data = make(map[string]map[int]*SensorRecord)
	for _, entry := range entries {
		obj, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		addrPtr := coerceInt(obj["type"])
		if addrPtr == nil {
			continue
		}
		name, known := sensorAddresses[*addrPtr]
		if !known {
			continue
		}
		rec := &SensorRecord{
			Address: *addrPtr,
			ID:      stringify(obj["id"]),
		}
		if sig := coerceInt(obj["signal"]); sig != nil {
			rec.Signal = *sig
		}
		rec.Enabled = !isSentinel(rec.ID)
		// a slot with no reception has no usable battery data
		if rec.Enabled && rec.Signal > 0 {
			if raw := coerceInt(obj["batt"]); raw != nil {
				model, _ := splitComposite(name)
				rec.Battery = s.decodeBattery(model, *raw)
			}
		}
		if v, ok := obj["version"]; ok {
			rec.Version = coerceString(v)
		}
		s.Set(name, rec)
	}
	return nil
}

// ApplyLivedataVoltages overrides coarse sensor-table battery states with
// the precise voltages present in flattened live data. Unknown keys and
// slots absent from the registry are ignored.
func (s *Sensors) ApplyLivedataVoltages(flat map[string]any) {
	for key, address := range voltageKeys {
		raw, ok := flat[key]
		if !ok {
			continue
		}
		name, known := sensorAddresses[address]
		if !known {
			continue
		}
		rec, ok := s.Get(name)
		if !ok || !rec.Enabled {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(stringify(raw)), 64)
		if err != nil {
			continue
		}
		rec.Battery = &v
	}
}

func isSentinel(id string) bool {
	lower := strings.ToLower(id)
	return lower == IDLearning || lower == IDDisabled
}

// decodeBattery decodes a raw sensor-table battery value per the model's
// decode class. Unknown models yield nil.
func (s *Sensors) decodeBattery(model string, raw int) *float64 {
	switch {
	case inModels(model, battBinaryModels):
		v := float64(BattBinary(raw))
		return &v
	case model == "wh40":
		return s.WH40BattVolt(raw)
	case inModels(model, battIntModels):
		v := float64(BattInt(raw))
		return &v
	case inModels(model, battVoltModels):
		v := BattVolt(raw)
		return &v
	default:
		return nil
	}
}

func inModels(model string, models []string) bool {
	for _, m := range models {
		if m == model {
			return true
		}
	}
	return false
}

// BattBinary decodes a binary battery flag: 0xFF reads low, everything
// else reads OK.
func BattBinary(raw int) int {
	if raw == 0xFF {
		return 1
	}
	return 0
}

// BattInt passes an integer battery level (0-6) through unchanged.
func BattInt(raw int) int {
	return raw
}

// BattVolt decodes a raw battery value reported in two-hundredths of a
// volt (raw 101 is 2.02 V).
func BattVolt(raw int) float64 {
	return float64(raw*2) / 100
}

// BattVoltTenth decodes a raw battery value reported in tenths of a volt.
func BattVoltTenth(raw int) float64 {
	return float64(raw) / 10
}

// WH40BattVolt decodes a WH40 battery value. Raw values below the legacy
// threshold come from the original hardware revision, which reports
// tenth-volts or, more often, nothing meaningful: those are discarded when
// IgnoreWH40Legacy is set. Contemporary WH40s report hundredths of a volt.
func (s *Sensors) WH40BattVolt(raw int) *float64 {
	if raw < s.cfg.WH40LegacyThreshold {
		if s.cfg.IgnoreWH40Legacy {
			return nil
		}
		v := BattVoltTenth(raw)
		return &v
	}
	v := float64(raw) / 100
	return &v
}

// BatteryStateDescription renders a decoded battery state as a display
// string for the given composite sensor name.
//
// Binary models: 0 is OK, 1 is low. Integer models: 0-1 low, 2-5 OK, 6
// externally powered (DC). Voltage models: at or below 1.2 V is low,
// except models with no defined low threshold, which always read OK.
// A nil state, or a value outside the class's range, is Unknown.
func BatteryStateDescription(name string, state *float64) string {
	if state == nil {
		return "Unknown"
	}
	model, _ := splitComposite(name)
	v := *state
	switch {
	case inModels(model, battBinaryModels):
		switch v {
		case 0:
			return "OK"
		case 1:
			return "low"
		default:
			return "Unknown"
		}
	case inModels(model, battIntModels):
		switch {
		case v == 6:
			return "DC"
		case v >= 2 && v <= 5:
			return "OK"
		case v == 0 || v == 1:
			return "low"
		default:
			return "Unknown"
		}
	case inModels(model, battVoltModels):
		if inModels(model, noLowModels) {
			return "OK"
		}
		if v <= 1.2 {
			return "low"
		}
		return "OK"
	default:
		return "Unknown"
	}
}
