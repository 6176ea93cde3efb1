package collector

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/sony/gobreaker"

	"github.com/openwx/ecowitt-core/internal/ecowitt"
	"github.com/openwx/ecowitt-core/internal/infrastructure/config"
	"github.com/openwx/ecowitt-core/internal/infrastructure/logging"
	"github.com/openwx/ecowitt-core/internal/metrics"
)

// Consumer receives parsed results as polls complete.
//
// Handlers are invoked synchronously from the poll loop and should not
// block for extended periods.
type Consumer interface {
	// HandleLivedata is called after each successful live-data poll.
	HandleLivedata(ld *ecowitt.Livedata)

	// HandleSensors is called after each successful sensor-table refresh
	// with a value snapshot of the registry. The live registry stays with
	// the poll loop, which keeps mutating it between refreshes.
	HandleSensors(sensors []ecowitt.SensorSnapshot)
}

// Collector owns the poll cadence against one gateway.
//
// It schedules live-data polls and sensor-table refreshes on separate
// intervals, parses each response and fans the results out to registered
// consumers. The most recent parsed state is retained for the
// diagnostics API.
type Collector struct {
	cfg     config.GatewayConfig
	device  *Device
	parser  *ecowitt.Parser
	sensors *ecowitt.Sensors
	units   ecowitt.DeviceUnits
	log     *logging.Logger
	metrics *metrics.Collector

	scheduler *gocron.Scheduler

	mu        sync.RWMutex
	consumers []Consumer
	livedata  *ecowitt.Livedata
	version   *ecowitt.VersionInfo
	settings  *ecowitt.StationSettings
}

// New creates a Collector wired to the given gateway client.
//
// Parameters:
//   - cfg: Full driver configuration (gateway cadence, unit profile, sensor decoding)
//   - device: Gateway HTTP client
//   - log: Structured logger
//   - m: Metrics collector
//
// Returns:
//   - *Collector: Ready to Run
//   - error: If the configured unit profile is not recognised
func New(cfg *config.Config, device *Device, log *logging.Logger, m *metrics.Collector) (*Collector, error) {
	units, err := ecowitt.DefaultUnits(cfg.Gateway.UnitProfile)
	if err != nil {
		return nil, fmt.Errorf("collector: %w", err)
	}

	sensors := ecowitt.NewSensors(ecowitt.SensorsConfig{
		WH40LegacyThreshold: cfg.Sensors.WH40LegacyThreshold,
		IgnoreWH40Legacy:    cfg.Sensors.IgnoreWH40Legacy,
	})

	return &Collector{
		cfg:       cfg.Gateway,
		device:    device,
		parser:    ecowitt.NewParser(),
		sensors:   sensors,
		units:     units,
		log:       log.With("component", "collector"),
		metrics:   m,
		scheduler: gocron.NewScheduler(time.UTC),
	}, nil
}

// Subscribe registers a consumer for parsed poll results.
// Must be called before Run.
func (c *Collector) Subscribe(consumer Consumer) {
	c.mu.Lock()
	c.consumers = append(c.consumers, consumer)
	c.mu.Unlock()
}

// Run identifies the gateway, performs an initial poll of every endpoint
// and then polls on the configured cadence until the context is cancelled.
//
// Parameters:
//   - ctx: Cancellation context; Run blocks until it is done
//
// Returns:
//   - error: If the poll jobs cannot be scheduled
func (c *Collector) Run(ctx context.Context) error {
	if c.Version() == nil {
		if err := c.Identify(ctx); err != nil {
			c.log.Warn("gateway identification failed", "error", err)
		}
	}

	// Prime state so consumers and the API have data before the first tick.
	if err := c.PollSensors(ctx); err != nil {
		c.log.Warn("initial sensor poll failed", "error", err)
	}
	if err := c.PollLivedata(ctx); err != nil {
		c.log.Warn("initial live-data poll failed", "error", err)
	}

	if _, err := c.scheduler.Every(c.cfg.PollInterval).Seconds().Do(func() {
		if err := c.PollLivedata(ctx); err != nil {
			c.log.Error("live-data poll failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("collector: scheduling live-data poll: %w", err)
	}

	if _, err := c.scheduler.Every(c.cfg.SensorInterval).Seconds().Do(func() {
		if err := c.PollSensors(ctx); err != nil {
			c.log.Error("sensor poll failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("collector: scheduling sensor poll: %w", err)
	}

	c.scheduler.StartAsync()
	c.log.Info("poll loop started",
		"poll_interval", c.cfg.PollInterval,
		"sensor_interval", c.cfg.SensorInterval,
	)

	<-ctx.Done()

	c.scheduler.Stop()
	c.log.Info("poll loop stopped")
	return nil
}

// Identify fetches the gateway's version and station settings.
//
// An unsupported model is logged but not fatal: the GW1000 lacks this
// HTTP API entirely, so anything that answered is worth polling.
func (c *Collector) Identify(ctx context.Context) error {
	c.metrics.RecordPoll(EndpointVersion)
	raw, err := c.device.GetVersion(ctx)
	if err != nil {
		c.metrics.RecordPollError(EndpointVersion)
		return err
	}
	version, err := c.parser.ParseGetVersion(raw)
	if err != nil {
		c.metrics.RecordPollError(EndpointVersion)
		return err
	}

	c.metrics.RecordPoll(EndpointWSSettings)
	raw, err = c.device.GetWSSettings(ctx)
	if err != nil {
		c.metrics.RecordPollError(EndpointWSSettings)
		return err
	}
	settings, err := c.parser.ParseGetWSSettings(raw)
	if err != nil {
		c.metrics.RecordPollError(EndpointWSSettings)
		return err
	}

	c.mu.Lock()
	c.version = version
	c.settings = settings
	c.mu.Unlock()

	model := ""
	if version.Version != nil {
		model = modelFromVersion(*version.Version)
	}
	if model != "" && !ecowitt.IsSupported(model) {
		c.log.Warn("gateway model not recognised as supported", "model", model)
	} else {
		c.log.Info("gateway identified",
			"model", model,
			"firmware", deref(version.FirmwareVersion),
		)
	}
	return nil
}

// PollLivedata fetches and parses one live-data payload, updates sensor
// voltages from it and notifies consumers.
func (c *Collector) PollLivedata(ctx context.Context) error {
	c.metrics.RecordPoll(EndpointLivedata)
	timer := c.metrics.NewTimer(c.metrics.PollDuration.WithLabelValues(EndpointLivedata))
	raw, err := c.device.GetLivedata(ctx)
	timer.ObserveDuration()
	c.observeBreaker()
	if err != nil {
		c.metrics.RecordPollError(EndpointLivedata)
		return err
	}

	ld, err := c.parser.ParseGetLivedata(raw, c.units)
	if err != nil {
		c.metrics.RecordPollError(EndpointLivedata)
		return err
	}

	c.mu.Lock()
	c.sensors.ApplyLivedataVoltages(ld.Raw)
	c.mu.Unlock()

	c.metrics.ObservationsParsed.Set(float64(len(ld.Values)))
	for block, n := range problemsByBlock(ld.Problems) {
		c.metrics.RecordParseProblems(block, n)
	}
	for _, problem := range ld.Problems {
		c.log.Warn("field skipped", "key", problem.Key, "error", problem.Err)
	}

	c.mu.Lock()
	c.livedata = ld
	consumers := c.consumers
	c.mu.Unlock()

	for _, consumer := range consumers {
		consumer.HandleLivedata(ld)
	}
	return nil
}

// PollSensors fetches and parses the sensor registration table and
// notifies consumers.
func (c *Collector) PollSensors(ctx context.Context) error {
	c.metrics.RecordPoll(EndpointSensors)
	timer := c.metrics.NewTimer(c.metrics.PollDuration.WithLabelValues(EndpointSensors))
	raw, err := c.device.GetSensorsInfo(ctx)
	timer.ObserveDuration()
	c.observeBreaker()
	if err != nil {
		c.metrics.RecordPollError(EndpointSensors)
		return err
	}

	// Snapshot under the lock: the live-data job updates registry
	// voltages concurrently, so consumers only ever see value copies.
	c.mu.Lock()
	err = c.sensors.ParseGetSensorsInfo(raw)
	snapshot := c.sensors.Snapshot()
	connected := len(c.sensors.Connected())
	learning := len(c.sensors.Learning())
	consumers := c.consumers
	c.mu.Unlock()
	if err != nil {
		c.metrics.RecordPollError(EndpointSensors)
		return err
	}

	c.metrics.SensorsConnected.Set(float64(connected))
	c.metrics.SensorsLearning.Set(float64(learning))

	for _, consumer := range consumers {
		consumer.HandleSensors(snapshot)
	}
	return nil
}

// Livedata returns the most recent parsed observation payload, or nil
// before the first successful poll.
func (c *Collector) Livedata() *ecowitt.Livedata {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.livedata
}

// Version returns the parsed gateway version block, or nil before
// identification.
func (c *Collector) Version() *ecowitt.VersionInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// Settings returns the parsed station settings, or nil before
// identification.
func (c *Collector) Settings() *ecowitt.StationSettings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.settings
}

// SensorStatus is a point-in-time view of one registered sensor slot.
type SensorStatus struct {
	Name        string   `json:"name"`
	ID          string   `json:"id"`
	Battery     *float64 `json:"battery,omitempty"`
	BatteryDesc string   `json:"battery_desc"`
	Signal      int      `json:"signal"`
	Enabled     bool     `json:"enabled"`
	Connected   bool     `json:"connected"`
}

// SensorStatuses returns a snapshot of every registered sensor slot,
// with battery levels translated to descriptions. Safe to call from
// any goroutine.
func (c *Collector) SensorStatuses() []SensorStatus {
	c.mu.RLock()
	snapshot := c.sensors.Snapshot()
	c.mu.RUnlock()

	statuses := make([]SensorStatus, 0, len(snapshot))
	for _, rec := range snapshot {
		statuses = append(statuses, SensorStatus{
			Name:        rec.Name,
			ID:          rec.ID,
			Battery:     rec.Battery,
			BatteryDesc: ecowitt.BatteryStateDescription(rec.Name, rec.Battery),
			Signal:      rec.Signal,
			Enabled:     rec.Enabled,
			Connected:   rec.Enabled && rec.Signal > 0,
		})
	}
	return statuses
}

// Units returns the device unit defaults derived from the configured
// profile.
func (c *Collector) Units() ecowitt.DeviceUnits {
	return c.units
}

// BreakerState reports the gateway circuit breaker's current state.
func (c *Collector) BreakerState() gobreaker.State {
	return c.device.BreakerState()
}

// observeBreaker mirrors the breaker state into its gauge.
func (c *Collector) observeBreaker() {
	switch c.device.BreakerState() {
	case gobreaker.StateClosed:
		c.metrics.BreakerState.Set(0)
	case gobreaker.StateHalfOpen:
		c.metrics.BreakerState.Set(1)
	case gobreaker.StateOpen:
		c.metrics.BreakerState.Set(2)
	}
}

// problemsByBlock buckets skipped fields by their payload block prefix.
func problemsByBlock(problems []ecowitt.FieldProblem) map[string]int {
	if len(problems) == 0 {
		return nil
	}
	byBlock := make(map[string]int)
	for _, p := range problems {
		block := p.Key
		if i := strings.Index(block, "."); i >= 0 {
			block = block[:i]
		}
		byBlock[block]++
	}
	return byBlock
}

// modelFromVersion extracts the model name from a version string such
// as "GW2000A_V3.1.2" or "Version: GW1100B_V2.0.4".
func modelFromVersion(version string) string {
	s := version
	if i := strings.LastIndex(s, " "); i >= 0 {
		s = s[i+1:]
	}
	if i := strings.Index(s, "_"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimRight(s, "ABCDE")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
