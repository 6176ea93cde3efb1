// Package ecowitt provides the response-parsing core for Ecowitt gateway
// devices (GW1100/GW1200/GW2000/GW3000, WH2650/WH2680, WN1900, WS3900/WS3910).
//
// The local HTTP API on these devices returns loosely-typed JSON: numeric
// values embedded in strings ("26.5", "4.20 km/h", "56%"), units that are
// sometimes embedded in the value, sometimes a sibling "unit" key, and
// sometimes implied by the device's configured unit profile, plus per-sensor
// battery and signal data whose encoding varies by sensor model. This package
// turns those responses into typed, unit-tagged observations without ever
// letting a malformed field take down a poll cycle.
//
// # Key Types
//
//   - Value: a parsed observation (magnitude + canonical unit + unit group)
//   - Parser: stateless response parser; ParseObsValue, ParseGetLivedata,
//     ParseGetVersion, ParseGetWSSettings
//   - ObservationKind: tagged-variant dispatch for the device's per-field
//     type codes (0x01..0x19, srain_piezo)
//   - Sensors: registry mapping the device's fixed sensor address space
//     (0-69) to composite sensor IDs, with per-model battery decoding
//
// # Usage
//
//	parser := ecowitt.NewParser()
//	units, _ := ecowitt.DefaultUnits("metric_wx")
//
//	obs, fieldErrs, err := parser.ParseGetLivedata(response, units)
//	if err != nil {
//	    // whole response was unusable (not a JSON object)
//	}
//	for key, perr := range fieldErrs {
//	    log.Warn("observation skipped", "key", key, "error", perr)
//	}
//
//	sensors := ecowitt.NewSensors(ecowitt.SensorsConfig{})
//	if err := sensors.ParseGetSensorsInfo(sensorResponse); err == nil {
//	    connected := sensors.Connected()
//	}
//
// # Error Handling
//
// Failures are classified, never silent: ErrMissingField for an absent
// required key, ErrParse (carried by *ParseError with the field key, raw
// value and unit group) for a present-but-unparseable value, and
// ErrUnknownObservation for an unrecognised device type code. Endpoint-level
// parses degrade per field; only a non-object response is a hard error.
//
// # Thread Safety
//
// Parser is immutable after construction and safe for concurrent use.
// Sensors is a per-device snapshot rebuilt from each sensor-table response
// and is not safe for concurrent mutation; give each device its own instance.
package ecowitt
