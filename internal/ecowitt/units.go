package ecowitt

import "fmt"

// Value is a single parsed observation: a finite numeric magnitude tagged
// with its canonical unit and unit group. Values are constructed once per
// parsed field per poll cycle and never mutated.
type Value struct {
	Magnitude float64 `json:"magnitude"`
	Unit      string  `json:"unit"`
	Group     string  `json:"group"`
}

// Unit groups. A group names the physical quantity an observation measures
// and constrains which canonical units are valid for it.
const (
	GroupTemperature = "group_temperature"
	GroupPressure    = "group_pressure"
	GroupHumidity    = "group_humidity"
	GroupDirection   = "group_direction"
	GroupSpeed       = "group_speed"
	GroupRain        = "group_rain"
	GroupRainRate    = "group_rainrate"
	GroupIlluminance = "group_illuminance"
	GroupRadiation   = "group_radiation"
	GroupUV          = "group_uv"
	GroupBoolean     = "group_boolean"
	GroupCount       = "group_count"
	GroupDistance    = "group_distance"
	GroupTime        = "group_time"
	GroupVolt        = "group_volt"
	GroupFraction    = "group_fraction"
)

// Canonical unit names. These are the only units a Value may carry.
const (
	UnitDegreeC       = "degree_C"
	UnitDegreeF       = "degree_F"
	UnitKm            = "km"
	UnitMile          = "mile"
	UnitNauticalMile  = "nautical_mile"
	UnitHPa           = "hPa"
	UnitKPa           = "kPa"
	UnitInHg          = "inHg"
	UnitMmHg          = "mmHg"
	UnitKfc           = "kfc"
	UnitKlux          = "klux"
	UnitLux           = "lux"
	UnitMm            = "mm"
	UnitCm            = "cm"
	UnitInch          = "inch"
	UnitFoot          = "foot"
	UnitMmPerHour     = "mm_per_hour"
	UnitInchPerHour   = "inch_per_hour"
	UnitKmPerHour     = "km_per_hour"
	UnitMeterPerSec   = "meter_per_second"
	UnitMilePerHour   = "mile_per_hour"
	UnitKnot          = "knot"
	UnitPercent       = "percent"
	UnitWattPerM2     = "watt_per_meter_squared"
	UnitDegreeCompass = "degree_compass"
	UnitUVIndex       = "uv_index"
	UnitBoolean       = "boolean"
	UnitCount         = "count"
	UnitUnixEpoch     = "unix_epoch"
	UnitVolt          = "volt"
)

// unitLookup maps every unit abbreviation the device can emit (embedded in a
// value string or as a sibling "unit" key, matched case-insensitively) to the
// canonical unit name. Every token a device can emit MUST have an entry;
// unresolved tokens are a ParseError, never a silent passthrough.
var unitLookup = map[string]string{
	"c":     UnitDegreeC,
	"f":     UnitDegreeF,
	"km":    UnitKm,
	"mi":    UnitMile,
	"nmi":   UnitNauticalMile,
	"hpa":   UnitHPa,
	"kfc":   UnitKfc,
	"klux":  UnitKlux,
	"kpa":   UnitKPa,
	"inhg":  UnitInHg,
	"mmhg":  UnitMmHg,
	"mm":    UnitMm,
	"in":    UnitInch,
	"ft":    UnitFoot,
	"mm/hr": UnitMmPerHour,
	"in/hr": UnitInchPerHour,
	"km/h":  UnitKmPerHour,
	"m/s":   UnitMeterPerSec,
	"mph":   UnitMilePerHour,
	"knots": UnitKnot,
	"%":     UnitPercent,
	"w/m2":  UnitWattPerM2,
}

// DeviceUnits maps a unit-group name to the canonical unit the device is
// configured to use for that group. It is consulted only when a field's
// payload carries no explicit unit. A nil map, or a missing group key, is a
// ParseError at that point -- never a silent default.
type DeviceUnits map[string]string

// DefaultUnits returns the device-unit mapping for one of the three unit
// profiles a gateway can be configured with: "metric", "metric_wx" or "us".
func DefaultUnits(profile string) (DeviceUnits, error) {
	switch profile {
	case "metric":
		return DeviceUnits{
			GroupTemperature: UnitDegreeC,
			GroupPressure:    UnitHPa,
			GroupSpeed:       UnitKmPerHour,
			GroupRain:        UnitCm,
			GroupRainRate:    UnitMmPerHour,
			GroupIlluminance: UnitLux,
			GroupDirection:   UnitDegreeCompass,
			GroupDistance:    UnitKm,
		}, nil
	case "metric_wx":
		return DeviceUnits{
			GroupTemperature: UnitDegreeC,
			GroupPressure:    UnitHPa,
			GroupSpeed:       UnitMeterPerSec,
			GroupRain:        UnitMm,
			GroupRainRate:    UnitMmPerHour,
			GroupIlluminance: UnitLux,
			GroupDirection:   UnitDegreeCompass,
			GroupDistance:    UnitKm,
		}, nil
	case "us":
		return DeviceUnits{
			GroupTemperature: UnitDegreeF,
			GroupPressure:    UnitInHg,
			GroupSpeed:       UnitMilePerHour,
			GroupRain:        UnitInch,
			GroupRainRate:    UnitInchPerHour,
			GroupIlluminance: UnitLux,
			GroupDirection:   UnitDegreeCompass,
			GroupDistance:    UnitMile,
		}, nil
	default:
		return nil, fmt.Errorf("ecowitt: unknown unit profile %q", profile)
	}
}
