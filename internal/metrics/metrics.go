package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds the driver's Prometheus instruments.
//
// All instruments are registered on the default registry via promauto,
// so /metrics serves them without further wiring.
type Collector struct {
	// Poll loop
	PollsTotal      *prometheus.CounterVec
	PollErrorsTotal *prometheus.CounterVec
	PollDuration    *prometheus.HistogramVec

	// Parsing
	ParseProblemsTotal *prometheus.CounterVec
	ObservationsParsed prometheus.Gauge

	// Sensor registry
	SensorsConnected prometheus.Gauge
	SensorsLearning  prometheus.Gauge

	// Publishing
	PublishErrorsTotal *prometheus.CounterVec

	// Gateway circuit breaker: 0 closed, 1 half-open, 2 open.
	BreakerState prometheus.Gauge
}

// NewCollector creates the driver's metric instruments under the given
// namespace (typically "ecowitt").
func NewCollector(namespace string) *Collector {
	return &Collector{
		PollsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "polls_total",
				Help:      "Total gateway poll attempts by endpoint",
			},
			[]string{"endpoint"},
		),

		PollErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "poll_errors_total",
				Help:      "Total failed gateway polls by endpoint",
			},
			[]string{"endpoint"},
		),

		PollDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "poll_duration_seconds",
				Help:      "Gateway poll round-trip duration in seconds",
				Buckets:   []float64{0.01, 0.02, 0.05, 0.1, 0.2, 0.5, 1.0, 2.0, 5.0, 10.0},
			},
			[]string{"endpoint"},
		),

		ParseProblemsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "parse_problems_total",
				Help:      "Fields skipped during parsing by payload block",
			},
			[]string{"block"},
		),

		ObservationsParsed: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "observations_parsed",
				Help:      "Observations extracted from the most recent poll",
			},
		),

		SensorsConnected: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "sensors_connected",
				Help:      "Sensor slots registered and currently receiving",
			},
		),

		SensorsLearning: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "sensors_learning",
				Help:      "Sensor slots in the learning/registering state",
			},
		),

		PublishErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "publish_errors_total",
				Help:      "Failed record publishes by sink",
			},
			[]string{"sink"},
		),

		BreakerState: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "gateway_breaker_state",
				Help:      "Gateway circuit breaker state (0 closed, 1 half-open, 2 open)",
			},
		),
	}
}

// Timer measures the duration of one operation.
type Timer struct {
	start    time.Time
	observer prometheus.Observer
}

// NewTimer starts a timer that reports to the given histogram.
func (c *Collector) NewTimer(observer prometheus.Observer) *Timer {
	return &Timer{
		start:    time.Now(),
		observer: observer,
	}
}

// ObserveDuration records the elapsed time since timer creation.
func (t *Timer) ObserveDuration() time.Duration {
	duration := time.Since(t.start)
	if t.observer != nil {
		t.observer.Observe(duration.Seconds())
	}
	return duration
}

// RecordPoll increments the poll counter for an endpoint.
func (c *Collector) RecordPoll(endpoint string) {
	c.PollsTotal.WithLabelValues(endpoint).Inc()
}

// RecordPollError increments the poll error counter for an endpoint.
func (c *Collector) RecordPollError(endpoint string) {
	c.PollErrorsTotal.WithLabelValues(endpoint).Inc()
}

// RecordParseProblems adds skipped-field counts for a payload block.
func (c *Collector) RecordParseProblems(block string, n int) {
	if n <= 0 {
		return
	}
	c.ParseProblemsTotal.WithLabelValues(block).Add(float64(n))
}

// RecordPublishError increments the publish error counter for a sink
// ("mqtt" or "influxdb").
func (c *Collector) RecordPublishError(sink string) {
	c.PublishErrorsTotal.WithLabelValues(sink).Inc()
}
