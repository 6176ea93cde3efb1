// Package metrics provides Prometheus instrumentation for the driver.
//
// A single Collector owns every instrument: poll counts and durations,
// parse problems, publish failures, sensor registry gauges and the
// gateway circuit breaker state. Instruments register on the default
// Prometheus registry, which the diagnostics API serves at /metrics.
//
// # Usage
//
//	m := metrics.NewCollector("ecowitt")
//
//	timer := m.NewTimer(m.PollDuration.WithLabelValues("get_livedata_info"))
//	// ... poll ...
//	timer.ObserveDuration()
//	m.RecordPoll("get_livedata_info")
package metrics
