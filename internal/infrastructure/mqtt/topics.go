package mqtt

import "fmt"

// Topic prefixes for the driver's MQTT surface.
//
// The driver serves a single gateway per process, so topics are fixed
// rather than parameterised by station:
//
//	weather/ecowitt/{category}[/{name}]
const (
	// TopicPrefix is the base for all driver topics.
	TopicPrefix = "weather/ecowitt"

	// TopicPrefixCommand is the base for inbound command topics.
	TopicPrefixCommand = "weather/ecowitt/command"
)

// Topics provides builders for the driver's MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	obsTopic := topics.Observation("outTemp")
//	// Returns: "weather/ecowitt/observations/outTemp"
type Topics struct{}

// SystemStatus returns the driver status topic. The LWT and graceful
// shutdown messages are published here, retained.
//
// Example: weather/ecowitt/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefix)
}

// Observations returns the topic carrying the full observation packet as
// a single retained JSON document.
//
// Example: weather/ecowitt/observations
func (Topics) Observations() string {
	return fmt.Sprintf("%s/observations", TopicPrefix)
}

// Observation returns the per-field observation topic.
//
// Example: weather/ecowitt/observations/outTemp
func (Topics) Observation(field string) string {
	return fmt.Sprintf("%s/observations/%s", TopicPrefix, field)
}

// Sensors returns the topic carrying the full sensor registry snapshot.
//
// Example: weather/ecowitt/sensors
func (Topics) Sensors() string {
	return fmt.Sprintf("%s/sensors", TopicPrefix)
}

// Sensor returns the per-sensor status topic.
//
// Example: weather/ecowitt/sensors/wh51_ch2
func (Topics) Sensor(name string) string {
	return fmt.Sprintf("%s/sensors/%s", TopicPrefix, name)
}

// DeviceInfo returns the topic carrying gateway identity: model, firmware
// version and station settings (credentials masked).
//
// Example: weather/ecowitt/device
func (Topics) DeviceInfo() string {
	return fmt.Sprintf("%s/device", TopicPrefix)
}

// Command returns the topic for a named inbound command.
//
// Example: weather/ecowitt/command/poll
func (Topics) Command(name string) string {
	return fmt.Sprintf("%s/%s", TopicPrefixCommand, name)
}

// AllCommands returns a pattern matching all inbound commands.
//
// Pattern: weather/ecowitt/command/+
func (Topics) AllCommands() string {
	return fmt.Sprintf("%s/+", TopicPrefixCommand)
}

// AllObservations returns a pattern matching all per-field observation
// topics.
//
// Pattern: weather/ecowitt/observations/+
func (Topics) AllObservations() string {
	return fmt.Sprintf("%s/observations/+", TopicPrefix)
}

// AllSensors returns a pattern matching all per-sensor status topics.
//
// Pattern: weather/ecowitt/sensors/+
func (Topics) AllSensors() string {
	return fmt.Sprintf("%s/sensors/+", TopicPrefix)
}

// AllTopics returns a pattern matching the driver's whole topic tree.
// Use with caution - this receives ALL traffic.
//
// Pattern: weather/ecowitt/#
func (Topics) AllTopics() string {
	return fmt.Sprintf("%s/#", TopicPrefix)
}
