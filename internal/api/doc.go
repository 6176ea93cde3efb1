// Package api provides the read-only diagnostics HTTP server.
//
// It exposes the driver's health, Prometheus metrics and the latest
// polled state over a small chi router:
//
//	GET /healthz           liveness and connection state
//	GET /metrics           Prometheus metrics
//	GET /v1/observations   the most recently published record
//	GET /v1/sensors        the registered sensor table
//	GET /v1/sensors/{name} one sensor slot by name
//	GET /v1/device         gateway identity and station settings
//
// The server never writes to the gateway; commands travel over MQTT.
// Station settings are served with upload-service credentials masked.
//
// The server follows the same lifecycle pattern as the other
// infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api
