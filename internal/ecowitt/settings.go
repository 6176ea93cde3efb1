package ecowitt

import (
	"fmt"
	"strconv"
	"strings"
)

// VersionInfo is the parsed get_version response. Fields are pointers
// because each degrades independently: a missing or malformed source field
// nils that one field without failing the parse.
type VersionInfo struct {
	// Version is the raw version string as reported, e.g.
	// "Version: GW2000C_V3.1.2". Nil when the device omitted it.
	Version *string `json:"version,omitempty"`

	// FirmwareVersion is the firmware portion of Version, the text after
	// the final underscore ("V3.1.2"). Nil when Version is absent or
	// carries no underscore.
	FirmwareVersion *string `json:"firmware_version,omitempty"`

	// NewVersion is non-zero when the device reports a firmware update is
	// available. Nil when absent or not numeric.
	NewVersion *int `json:"new_version,omitempty"`

	// Platform is the device platform identifier, typically "ecowitt".
	Platform *string `json:"platform,omitempty"`
}

// StationSettings is the parsed get_ws_settings response: the device's
// network identity and its upload-service configuration. As with
// VersionInfo every field degrades independently to nil.
//
// Nil fields are omitted when serialised, so a source field that failed
// coercion (e.g. a non-numeric port) is indistinguishable from one the
// device never sent. The distinction only exists at parse time; consumers
// of the serialised form should treat both as "not known".
type StationSettings struct {
	Platform *string `json:"platform,omitempty"`
	MAC      *string `json:"mac,omitempty"`

	// Interval is the device's upload interval in minutes (ost_interval).
	Interval *int `json:"interval,omitempty"`

	// Hosted upload services: WeatherUnderground, Weathercloud, WOW.
	WUID   *string `json:"wu_id,omitempty"`
	WUKey  *string `json:"wu_key,omitempty"`
	WCLID  *string `json:"wcl_id,omitempty"`
	WCLKey *string `json:"wcl_key,omitempty"`
	WOWID  *string `json:"wow_id,omitempty"`
	WOWKey *string `json:"wow_key,omitempty"`

	// Customised upload target. CustomEnabled is derived from the
	// "Customized" field: any string other than "disable" enables it;
	// a non-string value nils the field.
	CustomEnabled  *bool   `json:"custom_enabled,omitempty"`
	CustomProtocol *string `json:"custom_protocol,omitempty"`

	// Ecowitt-protocol custom upload target.
	EcowittServer   *string `json:"ecowitt_server,omitempty"`
	EcowittPath     *string `json:"ecowitt_path,omitempty"`
	EcowittPort     *int    `json:"ecowitt_port,omitempty"`
	EcowittInterval *int    `json:"ecowitt_interval,omitempty"`

	// WU-protocol custom upload target.
	WUServer   *string `json:"wu_server,omitempty"`
	WUPath     *string `json:"wu_path,omitempty"`
	WUUserID   *string `json:"wu_user_id,omitempty"`
	WUUserKey  *string `json:"wu_user_key,omitempty"`
	WUPort     *int    `json:"wu_port,omitempty"`
	WUInterval *int    `json:"wu_interval,omitempty"`
}

// Masked returns a copy of the settings with upload-service credentials
// obfuscated, safe to publish or serve outside the process.
func (s *StationSettings) Masked() *StationSettings {
	if s == nil {
		return nil
	}
	masked := *s
	for _, key := range []**string{&masked.WUKey, &masked.WCLKey, &masked.WOWKey, &masked.WUUserKey} {
		if *key == nil {
			continue
		}
		obf := Obfuscate(**key, "*")
		*key = &obf
	}
	return &masked
}

// ParseGetVersion parses a decoded get_version response body.
//
// Returns ErrInvalidResponse when response is not a JSON object. All other
// failures degrade per-field: Version may be any scalar and is rendered to
// a string, FirmwareVersion is derived only when Version contains an
// underscore, and a non-numeric NewVersion yields nil.
func (p *Parser) ParseGetVersion(response any) (*VersionInfo, error) {
	obj, ok := response.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: get_version response is not an object", ErrInvalidResponse)
	}
	info := &VersionInfo{}
	if raw, ok := obj["version"]; ok {
		s := stringify(raw)
		info.Version = &s
		if idx := strings.LastIndex(s, "_"); idx >= 0 {
			fw := s[idx+1:]
			info.FirmwareVersion = &fw
		}
	}
	if raw, ok := obj["newVersion"]; ok {
		info.NewVersion = coerceInt(raw)
	}
	if raw, ok := obj["platform"]; ok {
		info.Platform = coerceString(raw)
	}
	return info, nil
}

// ParseGetWSSettings parses a decoded get_ws_settings response body.
//
// Returns ErrInvalidResponse when response is not a JSON object. Source
// fields are coerced per kind: ports and intervals to int (nil on failure,
// floats truncated), the Customized flag to a bool (anything other than
// "disable" enables it), identifiers and keys passed through as strings.
func (p *Parser) ParseGetWSSettings(response any) (*StationSettings, error) {
	obj, ok := response.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: get_ws_settings response is not an object", ErrInvalidResponse)
	}
	s := &StationSettings{}
	if raw, ok := obj["platform"]; ok {
		s.Platform = coerceString(raw)
	}
	if raw, ok := obj["sta_mac"]; ok {
		s.MAC = coerceString(raw)
	}
	if raw, ok := obj["ost_interval"]; ok {
		s.Interval = coerceInt(raw)
	}
	if raw, ok := obj["wu_id"]; ok {
		s.WUID = coerceString(raw)
	}
	if raw, ok := obj["wu_key"]; ok {
		s.WUKey = coerceString(raw)
	}
	if raw, ok := obj["wcl_id"]; ok {
		s.WCLID = coerceString(raw)
	}
	if raw, ok := obj["wcl_key"]; ok {
		s.WCLKey = coerceString(raw)
	}
	if raw, ok := obj["wow_id"]; ok {
		s.WOWID = coerceString(raw)
	}
	if raw, ok := obj["wow_key"]; ok {
		s.WOWKey = coerceString(raw)
	}
	if raw, ok := obj["Customized"]; ok {
		if str, isStr := raw.(string); isStr {
			enabled := !strings.EqualFold(strings.TrimSpace(str), "disable")
			s.CustomEnabled = &enabled
		}
	}
	if raw, ok := obj["Protocol"]; ok {
		s.CustomProtocol = coerceString(raw)
	}
	if raw, ok := obj["ecowitt_ip"]; ok {
		s.EcowittServer = coerceString(raw)
	}
	if raw, ok := obj["ecowitt_path"]; ok {
		s.EcowittPath = coerceString(raw)
	}
	if raw, ok := obj["ecowitt_port"]; ok {
		s.EcowittPort = coerceInt(raw)
	}
	if raw, ok := obj["ecowitt_upload"]; ok {
		s.EcowittInterval = coerceInt(raw)
	}
	if raw, ok := obj["usr_wu_ip"]; ok {
		s.WUServer = coerceString(raw)
	}
	if raw, ok := obj["usr_wu_path"]; ok {
		s.WUPath = coerceString(raw)
	}
	if raw, ok := obj["usr_wu_id"]; ok {
		s.WUUserID = coerceString(raw)
	}
	if raw, ok := obj["usr_wu_key"]; ok {
		s.WUUserKey = coerceString(raw)
	}
	if raw, ok := obj["usr_wu_port"]; ok {
		s.WUPort = coerceInt(raw)
	}
	if raw, ok := obj["usr_wu_upload"]; ok {
		s.WUInterval = coerceInt(raw)
	}
	return s, nil
}

// coerceInt converts a JSON scalar to an int, truncating floats. Strings
// must be plain base-10 integers; anything else yields nil.
func coerceInt(v any) *int {
	switch t := v.(type) {
	case float64:
		n := int(t)
		return &n
	case int:
		n := t
		return &n
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return nil
		}
		return &n
	default:
		return nil
	}
}

// coerceString passes a string through unchanged; non-strings yield nil.
func coerceString(v any) *string {
	if s, ok := v.(string); ok {
		return &s
	}
	return nil
}
