// Package collector polls an Ecowitt gateway's local HTTP API.
//
// Two pieces make up the package:
//
//   - Device: an HTTP client bound to one gateway, covering the
//     get_version, get_ws_settings, get_livedata_info and
//     get_sensors_info endpoints. Requests run through a circuit
//     breaker so a dead gateway degrades fast.
//   - Collector: owns the poll cadence (live data on the poll interval,
//     sensor table on a slower interval), parses each response and fans
//     results out to registered consumers.
//
// # Poll Cycle
//
//  1. get_livedata_info every poll_interval seconds
//  2. get_sensors_info every sensor_interval seconds
//  3. get_version / get_ws_settings once at startup (Identify)
//
// Live-data payloads also carry supercap voltages for some sensors;
// these are folded back into the sensor registry on every poll.
//
// # Error Handling
//
// A failed poll is logged and skipped; the next tick retries. The
// circuit breaker opens after repeated consecutive failures and probes
// again after the configured cooldown. Per-field parse problems inside
// an otherwise good payload never abort the cycle.
//
// # Usage
//
//	device := collector.NewDevice(cfg.Gateway)
//	coll, err := collector.New(cfg, device, log, m)
//	if err != nil {
//	    return err
//	}
//	coll.Subscribe(pub)
//	go coll.Run(ctx)
package collector
