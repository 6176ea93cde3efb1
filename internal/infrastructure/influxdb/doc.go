// Package influxdb provides InfluxDB connectivity for the Ecowitt driver.
//
// It wraps the official influxdb-client-go v2 library with driver-specific
// patterns for connection management, observation writing, and health
// monitoring.
//
// # Purpose
//
// This package handles time-series data storage for:
//   - Weather observations (one point per poll cycle)
//   - Sensor battery and signal telemetry
//   - Gateway statistics
//
// # Usage
//
//	cfg := config.InfluxDBConfig{
//	    URL:    "http://localhost:8086",
//	    Token:  "your-token",
//	    Org:    "weather",
//	    Bucket: "ecowitt",
//	}
//
//	client, err := influxdb.Connect(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Write observations
//	client.WriteObservation("outTemp", "degree_C", 21.4)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are logged via a callback.
// Connection and health check errors are returned directly.
//
// # Performance
//
// Writes are batched according to config.yaml settings (batch_size, flush_interval).
// A 20-second poll interval produces far less traffic than one batch, so the
// flush interval dominates delivery latency.
package influxdb
