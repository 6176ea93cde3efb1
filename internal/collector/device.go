package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/openwx/ecowitt-core/internal/infrastructure/config"
)

// Gateway local API endpoints.
const (
	EndpointVersion    = "get_version"
	EndpointWSSettings = "get_ws_settings"
	EndpointLivedata   = "get_livedata_info"
	EndpointSensors    = "get_sensors_info"
)

// sensorPages is how many pages the sensor table spans on current firmware.
const sensorPages = 2

// Device is an HTTP client bound to one gateway's local API.
//
// Requests run through a circuit breaker so a dead gateway fails fast
// instead of stacking up timeouts across poll cycles. Responses are
// decoded JSON handed to the parser untouched.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Device struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

// NewDevice creates a gateway client from config.
//
// Parameters:
//   - cfg: Gateway configuration (host, port, timeout, breaker settings)
//
// Returns:
//   - *Device: Client ready for use; no connection is attempted here
func NewDevice(cfg config.GatewayConfig) *Device {
	maxFailures := cfg.Breaker.MaxFailures
	if maxFailures <= 0 {
		maxFailures = 5
	}
	cooldown := cfg.Breaker.CooldownSeconds
	if cooldown <= 0 {
		cooldown = 60
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "gateway",
		MaxRequests: 1,
		Timeout:     time.Duration(cooldown) * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(maxFailures)
		},
	})

	return &Device{
		baseURL: fmt.Sprintf("http://%s:%d", cfg.Host, cfg.Port),
		client:  &http.Client{Timeout: time.Duration(timeout) * time.Second},
		breaker: breaker,
	}
}

// GetVersion fetches the gateway's firmware version block.
func (d *Device) GetVersion(ctx context.Context) (any, error) {
	return d.get(ctx, EndpointVersion)
}

// GetWSSettings fetches the gateway's station settings (upload services,
// custom server, intervals).
func (d *Device) GetWSSettings(ctx context.Context) (any, error) {
	return d.get(ctx, EndpointWSSettings)
}

// GetLivedata fetches the current observation payload.
func (d *Device) GetLivedata(ctx context.Context) (any, error) {
	return d.get(ctx, EndpointLivedata)
}

// GetSensorsInfo fetches the sensor registration table.
//
// The table spans multiple pages on current firmware; pages are fetched
// in order and their slot arrays concatenated.
func (d *Device) GetSensorsInfo(ctx context.Context) (any, error) {
	var slots []any
	for page := 1; page <= sensorPages; page++ {
		resp, err := d.get(ctx, fmt.Sprintf("%s?page=%d", EndpointSensors, page))
		if err != nil {
			return nil, err
		}
		arr, ok := resp.([]any)
		if !ok {
			return nil, fmt.Errorf("%w: %s page %d is not an array", ErrUnexpectedPayload, EndpointSensors, page)
		}
		slots = append(slots, arr...)
	}
	return slots, nil
}

// BreakerState reports the circuit breaker's current state.
func (d *Device) BreakerState() gobreaker.State {
	return d.breaker.State()
}

// get performs one GET through the circuit breaker and decodes the JSON body.
func (d *Device) get(ctx context.Context, path string) (any, error) {
	result, err := d.breaker.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/%s", d.baseURL, path), nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
		}

		resp, err := d.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("%w: %s returned %d", ErrUnexpectedStatus, path, resp.StatusCode)
		}

		var decoded any
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrUnexpectedPayload, path, err)
		}
		return decoded, nil
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %w", ErrBreakerOpen, err)
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}
