package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteObservation writes a single weather observation to InfluxDB.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - field: Observation name (e.g., "outTemp", "windSpeed")
//   - unit: Unit the value is expressed in (e.g., "degree_C")
//   - value: The numeric value to record
//
// Example:
//
//	client.WriteObservation("outTemp", "degree_C", 21.4)
//	client.WriteObservation("windSpeed", "km_per_hour", 3.2)
func (c *Client) WriteObservation(field string, unit string, value float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"observations",
		map[string]string{
			"field": field,
			"unit":  unit,
		},
		map[string]interface{}{
			"value": value,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteObservationSet writes a full poll cycle's observations as a single
// point. Field names become InfluxDB field keys so one poll produces one
// row per timestamp rather than one per observation.
//
// Parameters:
//   - fields: Observation name to numeric value
//   - timestamp: The poll time for this data set
func (c *Client) WriteObservationSet(fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() || len(fields) == 0 {
		return
	}

	point := write.NewPoint(
		"weather",
		nil,
		fields,
		timestamp,
	)

	c.writeAPI.WritePoint(point)
}

// WriteSensorStatus writes battery and signal telemetry for a sensor slot.
//
// Battery may be nil when the slot has no decodable battery state
// (sentinel ID or no reception); only signal is recorded in that case.
//
// Parameters:
//   - sensor: Composite sensor name (e.g., "wh51_ch2")
//   - battery: Decoded battery level, or nil if unavailable
//   - signal: Reception quality 0-4
func (c *Client) WriteSensorStatus(sensor string, battery *float64, signal int) {
	if !c.IsConnected() {
		return
	}

	fields := map[string]interface{}{
		"signal": signal,
	}
	if battery != nil {
		fields["battery"] = *battery
	}

	point := write.NewPoint(
		"sensors",
		map[string]string{
			"sensor": sensor,
		},
		fields,
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for custom measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
//
// Example:
//
//	client.WritePoint("gateway_stats",
//	    map[string]string{"model": "GW2000A"},
//	    map[string]interface{}{"poll_ms": 45.2, "fields_parsed": 31})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the timestamp is not "now" (e.g., delayed data).
//
// Parameters:
//   - measurement: The measurement name
//   - tags: Key-value pairs for indexing
//   - fields: Key-value pairs for the data
//   - timestamp: The exact time for this data point
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
