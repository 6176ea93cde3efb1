package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sony/gobreaker"
)

// handleHealth reports the driver's liveness and connection state.
//
// The status degrades to "degraded" while the gateway circuit breaker is
// open; the endpoint itself still answers 200 so orchestrators do not
// restart a driver that is merely waiting out a gateway outage.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	breaker := s.collector.BreakerState()

	status := "ok"
	if breaker == gobreaker.StateOpen {
		status = "degraded"
	}

	payload := map[string]any{
		"status":  status,
		"version": s.version,
		"gateway": map[string]any{
			"breaker": breaker.String(),
		},
	}
	if s.mqtt != nil {
		payload["mqtt_connected"] = s.mqtt.IsConnected()
	}
	if s.influx != nil {
		payload["influxdb_connected"] = s.influx.IsConnected()
	}

	writeJSON(w, http.StatusOK, payload)
}

// handleObservations returns the most recently published record.
func (s *Server) handleObservations(w http.ResponseWriter, _ *http.Request) {
	if s.publisher == nil {
		writeNotFound(w, "no observations yet")
		return
	}
	record, at := s.publisher.LastRecord()
	if record == nil {
		writeNotFound(w, "no observations yet")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"observed_at": at,
		"record":      record,
	})
}

// handleSensors returns the registered sensor table.
func (s *Server) handleSensors(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"sensors": s.collector.SensorStatuses(),
	})
}

// handleSensor returns a single sensor slot by name, e.g. "wh41_ch1".
func (s *Server) handleSensor(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	for _, status := range s.collector.SensorStatuses() {
		if status.Name == name {
			writeJSON(w, http.StatusOK, status)
			return
		}
	}
	writeNotFound(w, "unknown sensor")
}

// handleDevice returns the gateway's identity and station settings.
// Upload-service credentials are masked.
func (s *Server) handleDevice(w http.ResponseWriter, _ *http.Request) {
	version := s.collector.Version()
	settings := s.collector.Settings()
	if version == nil && settings == nil {
		writeNotFound(w, "gateway not identified yet")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"version":  version,
		"settings": settings.Masked(),
	})
}
