package ecowitt

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Gateway models known to this driver. The GW1000 is recognised but
// unsupported: it predates the local HTTP API this parser consumes.
var (
	SupportedDevices = []string{
		"GW1100", "GW1200", "GW2000",
		"GW3000", "WH2650", "WH2680",
		"WN1900", "WS3900", "WS3910",
	}
	UnsupportedDevices = []string{"GW1000"}
)

// KnownDevices returns every model the driver recognises, supported first.
func KnownDevices() []string {
	known := make([]string, 0, len(SupportedDevices)+len(UnsupportedDevices))
	known = append(known, SupportedDevices...)
	known = append(known, UnsupportedDevices...)
	return known
}

// IsSupported reports whether the given model name (as reported by the
// device, e.g. "GW2000") is supported by the local HTTP API.
func IsSupported(model string) bool {
	for _, m := range SupportedDevices {
		if strings.EqualFold(m, model) {
			return true
		}
	}
	return false
}

// ObservationKind identifies the semantic processor for an observation.
// The device reports a type code per field ("0x01".."0x19", "srain_piezo");
// each code resolves to exactly one kind, and each kind binds ParseObsValue
// to the correct unit group. Unknown codes are ErrUnknownObservation.
type ObservationKind int

// Observation kinds, one per processing strategy.
const (
	KindTemperature ObservationKind = iota
	KindPressure
	KindHumidity
	KindDirection
	KindSpeed
	KindRainfall
	KindRainRate
	KindLight
	KindUVRadiation
	KindUVIndex
	KindBoolean
	KindCount
	KindDistance
	KindDateTime
	KindLeak
	KindBattery
	KindNoop
)

// String returns the kind's processor name, mostly for diagnostics.
func (k ObservationKind) String() string {
	names := map[ObservationKind]string{
		KindTemperature: "temperature",
		KindPressure:    "pressure",
		KindHumidity:    "humidity",
		KindDirection:   "direction",
		KindSpeed:       "speed",
		KindRainfall:    "rainfall",
		KindRainRate:    "rainrate",
		KindLight:       "light",
		KindUVRadiation: "uv_radiation",
		KindUVIndex:     "uv_index",
		KindBoolean:     "boolean",
		KindCount:       "count",
		KindDistance:    "distance",
		KindDateTime:    "datetime",
		KindLeak:        "leak",
		KindBattery:     "battery",
		KindNoop:        "noop",
	}
	if n, ok := names[k]; ok {
		return n
	}
	return fmt.Sprintf("ObservationKind(%d)", int(k))
}

// observationKinds maps the device's common_list type codes to processors.
// Devices are inconsistent about code formatting: most are "0xNN" hex
// strings but some firmware emits bare decimal ("3", "4", "5").
var observationKinds = map[string]ObservationKind{
	"0x01":        KindTemperature,
	"0x02":        KindTemperature,
	"0x03":        KindTemperature,
	"3":           KindTemperature,
	"0x04":        KindTemperature,
	"4":           KindTemperature,
	"0x05":        KindTemperature,
	"5":           KindPressure, // VPD; pressure-group handling suspected from observed payloads
	"0x07":        KindHumidity,
	"0x08":        KindNoop,
	"0x09":        KindNoop,
	"0x0A":        KindDirection,
	"0x0B":        KindSpeed,
	"0x0C":        KindSpeed,
	"0x0D":        KindRainfall,
	"0x0E":        KindRainRate,
	"0x0F":        KindRainfall,
	"0x10":        KindRainfall,
	"0x11":        KindRainfall,
	"0x12":        KindRainfall,
	"0x13":        KindRainfall,
	"0x14":        KindRainfall,
	"0x15":        KindLight,
	"0x16":        KindUVRadiation,
	"0x17":        KindUVIndex,
	"0x18":        KindNoop,
	"0x19":        KindSpeed,
	"srain_piezo": KindBoolean,
}

// numericRe extracts a leading numeric substring (optional sign, digits,
// decimal points/commas) and whatever trails it. A match is not yet a valid
// number: ",.," matches but fails float conversion, which is its own
// ParseError distinct from "no numeric substring at all" (e.g. "test").
var numericRe = regexp.MustCompile(`^\s*([-+]?[0-9.,]+)\s*(.*?)\s*$`)

// Parser converts raw gateway responses into unit-tagged observations.
//
// A Parser is immutable after construction; one instance may be shared by
// concurrent pollers, or each device may have its own.
type Parser struct {
	units map[string]string
	kinds map[string]ObservationKind
}

// NewParser returns a Parser with the static unit-lookup and
// processor-dispatch tables bound.
func NewParser() *Parser {
	return &Parser{
		units: unitLookup,
		kinds: observationKinds,
	}
}

// KindForCode resolves a device type code to its observation kind.
func (p *Parser) KindForCode(code string) (ObservationKind, error) {
	if k, ok := p.kinds[code]; ok {
		return k, nil
	}
	return 0, fmt.Errorf("%w: code %q", ErrUnknownObservation, code)
}

// ParseObsValue extracts key's value from obj and normalises it into a
// unit-tagged Value.
//
// Unit resolution precedence, strictly in this order:
//  1. a unit token embedded in the value string itself ("4.20 km/h"),
//     longest-match, case-insensitive;
//  2. an explicit sibling "unit" key in obj;
//  3. deviceUnits[unitGroup], the device's configured default for the group.
//
// A "%"-suffixed value is always humidity as far as the device is concerned:
// the result is forced to percent/group_humidity regardless of unitGroup.
//
// Failures are classified: ErrMissingField when key is absent; otherwise a
// *ParseError (no numeric substring, failed conversion, unknown unit token,
// or nil/incomplete deviceUnits when no explicit unit was present).
func (p *Parser) ParseObsValue(key string, obj map[string]any, unitGroup string, deviceUnits DeviceUnits) (Value, error) {
	rawAny, ok := obj[key]
	if !ok {
		return Value{}, fmt.Errorf("%w: %q", ErrMissingField, key)
	}
	raw := stringify(rawAny)

	m := numericRe.FindStringSubmatch(raw)
	if m == nil {
		return Value{}, newParseError(key, raw, unitGroup, "no numeric value found")
	}
	magnitude, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return Value{}, newParseError(key, raw, unitGroup, "numeric conversion failed")
	}

	// 1. unit token embedded in the value string
	if token := m[2]; token != "" {
		canonical, ok := p.units[strings.ToLower(token)]
		if !ok {
			return Value{}, newParseError(key, raw, unitGroup, fmt.Sprintf("unrecognised unit %q", token))
		}
		if canonical == UnitPercent {
			return Value{Magnitude: magnitude, Unit: UnitPercent, Group: GroupHumidity}, nil
		}
		return Value{Magnitude: magnitude, Unit: canonical, Group: unitGroup}, nil
	}

	// 2. explicit sibling "unit" key
	if unitAny, ok := obj["unit"]; ok {
		token := stringify(unitAny)
		canonical, ok := p.units[strings.ToLower(token)]
		if !ok {
			return Value{}, newParseError(key, raw, unitGroup, fmt.Sprintf("unrecognised unit %q", token))
		}
		if canonical == UnitPercent {
			return Value{Magnitude: magnitude, Unit: UnitPercent, Group: GroupHumidity}, nil
		}
		return Value{Magnitude: magnitude, Unit: canonical, Group: unitGroup}, nil
	}

	// 3. device-configured default for the unit group
	if deviceUnits == nil {
		return Value{}, newParseError(key, raw, unitGroup, "no unit in payload and no device units supplied")
	}
	canonical, ok := deviceUnits[unitGroup]
	if !ok {
		return Value{}, newParseError(key, raw, unitGroup, "no unit in payload and unit group missing from device units")
	}
	return Value{Magnitude: magnitude, Unit: canonical, Group: unitGroup}, nil
}

// ProcessTemperature parses key from obj as a temperature observation.
func (p *Parser) ProcessTemperature(key string, obj map[string]any, deviceUnits DeviceUnits) (Value, error) {
	return p.ParseObsValue(key, obj, GroupTemperature, deviceUnits)
}

// ProcessPressure parses key from obj as a pressure observation.
func (p *Parser) ProcessPressure(key string, obj map[string]any, deviceUnits DeviceUnits) (Value, error) {
	return p.ParseObsValue(key, obj, GroupPressure, deviceUnits)
}

// ProcessHumidity parses key from obj as a humidity observation. The device
// always reports humidity percent-suffixed, so the percent override in
// ParseObsValue does the heavy lifting here.
func (p *Parser) ProcessHumidity(key string, obj map[string]any, deviceUnits DeviceUnits) (Value, error) {
	return p.ParseObsValue(key, obj, GroupHumidity, deviceUnits)
}

// ProcessDirection parses key from obj as a compass direction.
func (p *Parser) ProcessDirection(key string, obj map[string]any, deviceUnits DeviceUnits) (Value, error) {
	return p.ParseObsValue(key, obj, GroupDirection, deviceUnits)
}

// ProcessSpeed parses key from obj as a wind speed observation.
func (p *Parser) ProcessSpeed(key string, obj map[string]any, deviceUnits DeviceUnits) (Value, error) {
	return p.ParseObsValue(key, obj, GroupSpeed, deviceUnits)
}

// ProcessRainfall parses key from obj as a cumulative rainfall observation.
func (p *Parser) ProcessRainfall(key string, obj map[string]any, deviceUnits DeviceUnits) (Value, error) {
	return p.ParseObsValue(key, obj, GroupRain, deviceUnits)
}

// ProcessRainRate parses key from obj as a rain-rate observation.
func (p *Parser) ProcessRainRate(key string, obj map[string]any, deviceUnits DeviceUnits) (Value, error) {
	return p.ParseObsValue(key, obj, GroupRainRate, deviceUnits)
}

// ProcessLight parses key from obj as an illuminance/irradiance observation.
func (p *Parser) ProcessLight(key string, obj map[string]any, deviceUnits DeviceUnits) (Value, error) {
	return p.ParseObsValue(key, obj, GroupIlluminance, deviceUnits)
}

// ProcessUVRadiation parses key from obj as a UV irradiance observation.
func (p *Parser) ProcessUVRadiation(key string, obj map[string]any, deviceUnits DeviceUnits) (Value, error) {
	return p.ParseObsValue(key, obj, GroupRadiation, deviceUnits)
}

// ProcessIndex parses key from obj as a UV index. The device reports a bare
// small integer with no unit; the result is always uv_index/group_uv.
func (p *Parser) ProcessIndex(key string, obj map[string]any) (Value, error) {
	v, err := p.parseBare(key, obj, GroupUV)
	if err != nil {
		return Value{}, err
	}
	return Value{Magnitude: v, Unit: UnitUVIndex, Group: GroupUV}, nil
}

// ProcessBoolean parses key from obj as a flag: any non-zero numeric is
// true (magnitude 1).
func (p *Parser) ProcessBoolean(key string, obj map[string]any) (Value, error) {
	v, err := p.parseBare(key, obj, GroupBoolean)
	if err != nil {
		return Value{}, err
	}
	mag := 0.0
	if v != 0 {
		mag = 1.0
	}
	return Value{Magnitude: mag, Unit: UnitBoolean, Group: GroupBoolean}, nil
}

// ProcessCount parses key from obj as an event count (e.g. lightning
// strikes, CO2 ppm).
func (p *Parser) ProcessCount(key string, obj map[string]any) (Value, error) {
	v, err := p.parseBare(key, obj, GroupCount)
	if err != nil {
		return Value{}, err
	}
	return Value{Magnitude: v, Unit: UnitCount, Group: GroupCount}, nil
}

// ProcessDistance parses key from obj as a distance observation (lightning).
func (p *Parser) ProcessDistance(key string, obj map[string]any, deviceUnits DeviceUnits) (Value, error) {
	return p.ParseObsValue(key, obj, GroupDistance, deviceUnits)
}

// ProcessDateTime parses key from obj as a unix epoch timestamp.
func (p *Parser) ProcessDateTime(key string, obj map[string]any) (Value, error) {
	v, err := p.parseBare(key, obj, GroupTime)
	if err != nil {
		return Value{}, err
	}
	return Value{Magnitude: v, Unit: UnitUnixEpoch, Group: GroupTime}, nil
}

// ProcessLeak parses key from obj as a leak flag. The device reports the
// state as a word ("Normal"/"Leaking") on some firmware and a numeric flag
// on others.
func (p *Parser) ProcessLeak(key string, obj map[string]any) (Value, error) {
	rawAny, ok := obj[key]
	if !ok {
		return Value{}, fmt.Errorf("%w: %q", ErrMissingField, key)
	}
	switch strings.ToLower(strings.TrimSpace(stringify(rawAny))) {
	case "normal", "off", "0":
		return Value{Magnitude: 0, Unit: UnitBoolean, Group: GroupBoolean}, nil
	case "", "--", "---":
		return Value{}, newParseError(key, stringify(rawAny), GroupBoolean, "no leak state reported")
	default:
		return Value{Magnitude: 1, Unit: UnitBoolean, Group: GroupBoolean}, nil
	}
}

// ProcessBattery parses key from obj as a battery voltage.
func (p *Parser) ProcessBattery(key string, obj map[string]any) (Value, error) {
	v, err := p.parseBare(key, obj, GroupVolt)
	if err != nil {
		return Value{}, err
	}
	return Value{Magnitude: v, Unit: UnitVolt, Group: GroupVolt}, nil
}

// ProcessNoop passes the raw value through untouched, for fields that need
// no normalisation (free-text firmware strings, heap stats and the like).
func (p *Parser) ProcessNoop(key string, obj map[string]any) (any, error) {
	rawAny, ok := obj[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMissingField, key)
	}
	return rawAny, nil
}

// Process dispatches key in obj to the processor for the given kind.
// For KindNoop the returned value is the raw payload value; for every other
// kind it is a Value.
func (p *Parser) Process(kind ObservationKind, key string, obj map[string]any, deviceUnits DeviceUnits) (any, error) {
	switch kind {
	case KindTemperature:
		return p.ProcessTemperature(key, obj, deviceUnits)
	case KindPressure:
		return p.ProcessPressure(key, obj, deviceUnits)
	case KindHumidity:
		return p.ProcessHumidity(key, obj, deviceUnits)
	case KindDirection:
		return p.ProcessDirection(key, obj, deviceUnits)
	case KindSpeed:
		return p.ProcessSpeed(key, obj, deviceUnits)
	case KindRainfall:
		return p.ProcessRainfall(key, obj, deviceUnits)
	case KindRainRate:
		return p.ProcessRainRate(key, obj, deviceUnits)
	case KindLight:
		return p.ProcessLight(key, obj, deviceUnits)
	case KindUVRadiation:
		return p.ProcessUVRadiation(key, obj, deviceUnits)
	case KindUVIndex:
		return p.ProcessIndex(key, obj)
	case KindBoolean:
		return p.ProcessBoolean(key, obj)
	case KindCount:
		return p.ProcessCount(key, obj)
	case KindDistance:
		return p.ProcessDistance(key, obj, deviceUnits)
	case KindDateTime:
		return p.ProcessDateTime(key, obj)
	case KindLeak:
		return p.ProcessLeak(key, obj)
	case KindBattery:
		return p.ProcessBattery(key, obj)
	case KindNoop:
		return p.ProcessNoop(key, obj)
	default:
		return nil, fmt.Errorf("%w: kind %d", ErrUnknownObservation, int(kind))
	}
}

// parseBare extracts a unitless numeric value for key from obj, bypassing
// unit resolution entirely.
func (p *Parser) parseBare(key string, obj map[string]any, group string) (float64, error) {
	rawAny, ok := obj[key]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrMissingField, key)
	}
	raw := stringify(rawAny)
	m := numericRe.FindStringSubmatch(raw)
	if m == nil {
		return 0, newParseError(key, raw, group, "no numeric value found")
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return 0, newParseError(key, raw, group, "numeric conversion failed")
	}
	return v, nil
}

// stringify renders an arbitrary JSON scalar as the string the device would
// have sent. Floats that are whole numbers render without a trailing ".0" so
// embedded-unit splitting behaves identically for "272" and 272.0.
func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}
