// Package publisher shapes parsed gateway payloads into published
// records and emits them.
//
// The collector hands it every successful live-data poll and sensor
// refresh. Live-data values are renamed through a configurable field map
// (dotted gateway keys to conventional record names), the cumulative
// rain and lightning counters the device reports are converted to
// per-interval deltas, and the resulting flat record is published as a
// retained MQTT document, optionally fanned out to per-field topics, and
// written to InfluxDB.
//
// # Counter Deltas
//
// The device only reports running totals for rainfall and lightning
// strikes. Consumers want "how much since the last record", so the
// publisher diffs each total against its previous reading. The first
// packet after startup produces no delta; the last-seen readings are
// persisted through a CounterStore so that restarts do not open a gap. A
// total that moves backwards is treated as a device-side reset and the
// new reading becomes the delta.
//
// All handlers run on the collector's poll goroutine. LastRecord is safe
// to call from other goroutines and backs the diagnostics API.
package publisher
