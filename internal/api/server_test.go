package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/openwx/ecowitt-core/internal/collector"
	"github.com/openwx/ecowitt-core/internal/infrastructure/config"
	"github.com/openwx/ecowitt-core/internal/infrastructure/logging"
	"github.com/openwx/ecowitt-core/internal/metrics"
	"github.com/openwx/ecowitt-core/internal/publisher"
)

// Prometheus instruments register globally, so the package shares one
// collector across tests.
var testMetrics = metrics.NewCollector("ecowitt_api_test")

const testWUKey = "abcdef12345"

// fakeGateway serves canned responses for every polled endpoint.
func fakeGateway(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/get_version", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"version":"Version: GW2000A_V3.1.2","newVersion":"0","platform":"ecowitt"}`))
	})
	mux.HandleFunc("/get_ws_settings", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"sta_mac":"DC:DA:0C:31:35:6A","ost_interval":60,"Customized":"Disable","wu_key":"` + testWUKey + `"}`))
	})
	mux.HandleFunc("/get_livedata_info", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"common_list":[{"id":"0x02","val":"21.4C"},{"id":"0x07","val":"63%"}]}`))
	})
	mux.HandleFunc("/get_sensors_info", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`[{"img":"wh41","type":"22","name":"PM2.5","id":"C497","batt":"2","signal":"4"}]`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testDriverConfig(t *testing.T, gatewayURL string) *config.Config {
	t.Helper()
	u, err := url.Parse(gatewayURL)
	if err != nil {
		t.Fatalf("parsing gateway URL: %v", err)
	}
	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		t.Fatalf("splitting gateway host: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("parsing gateway port: %v", err)
	}

	cfg := &config.Config{}
	cfg.Gateway = config.GatewayConfig{
		Host:           host,
		Port:           port,
		PollInterval:   20,
		SensorInterval: 300,
		Timeout:        5,
		UnitProfile:    "metric",
		Breaker:        config.BreakerConfig{MaxFailures: 5, CooldownSeconds: 60},
	}
	cfg.Publisher = config.PublisherConfig{PassUnmapped: true}
	return cfg
}

// newTestServer builds a server backed by a collector wired to the fake
// gateway. Tests trigger the polls they need.
func newTestServer(t *testing.T) (*Server, *publisher.Publisher, *collector.Collector) {
	t.Helper()
	cfg := testDriverConfig(t, fakeGateway(t).URL)
	log := logging.Default()

	coll, err := collector.New(cfg, collector.NewDevice(cfg.Gateway), log, testMetrics)
	if err != nil {
		t.Fatalf("collector.New() error = %v", err)
	}
	pub := publisher.New(cfg, nil, nil, nil, log, testMetrics)
	coll.Subscribe(pub)

	srv, err := New(Deps{
		Config:    config.APIConfig{Host: "127.0.0.1", Port: 0},
		Logger:    log,
		Collector: coll,
		Publisher: pub,
		Version:   "test",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return srv, pub, coll
}

func get(t *testing.T, handler http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	return payload
}

func TestNew_MissingDeps(t *testing.T) {
	if _, err := New(Deps{Logger: logging.Default()}); err == nil {
		t.Error("New() without a collector should fail")
	}
	if _, err := New(Deps{}); err == nil {
		t.Error("New() without a logger should fail")
	}
}

func TestHandleHealth(t *testing.T) {
	srv, _, _ := newTestServer(t)
	router := srv.buildRouter()

	rec := get(t, router, "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /healthz = %d, want 200", rec.Code)
	}
	payload := decode(t, rec)
	if payload["status"] != "ok" {
		t.Errorf("status = %v, want ok", payload["status"])
	}
	if payload["version"] != "test" {
		t.Errorf("version = %v, want test", payload["version"])
	}
	gateway, ok := payload["gateway"].(map[string]any)
	if !ok || gateway["breaker"] != "closed" {
		t.Errorf("gateway = %v, want closed breaker", payload["gateway"])
	}
}

func TestHandleObservations(t *testing.T) {
	srv, _, coll := newTestServer(t)
	router := srv.buildRouter()

	// Nothing polled yet.
	if rec := get(t, router, "/v1/observations"); rec.Code != http.StatusNotFound {
		t.Errorf("GET /v1/observations before polling = %d, want 404", rec.Code)
	}

	if err := coll.PollLivedata(context.Background()); err != nil {
		t.Fatalf("PollLivedata() error = %v", err)
	}

	rec := get(t, router, "/v1/observations")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /v1/observations = %d, want 200", rec.Code)
	}
	payload := decode(t, rec)
	record, ok := payload["record"].(map[string]any)
	if !ok {
		t.Fatalf("payload has no record: %v", payload)
	}
	if record["outTemp"] != 21.4 {
		t.Errorf("record[outTemp] = %v, want 21.4", record["outTemp"])
	}
	if payload["observed_at"] == nil {
		t.Error("payload missing observed_at")
	}
}

func TestHandleSensors(t *testing.T) {
	srv, _, coll := newTestServer(t)
	router := srv.buildRouter()

	if err := coll.PollSensors(context.Background()); err != nil {
		t.Fatalf("PollSensors() error = %v", err)
	}

	rec := get(t, router, "/v1/sensors")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /v1/sensors = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "wh41_ch1") {
		t.Errorf("sensors payload missing wh41_ch1: %s", rec.Body.String())
	}

	t.Run("by name", func(t *testing.T) {
		rec := get(t, router, "/v1/sensors/wh41_ch1")
		if rec.Code != http.StatusOK {
			t.Fatalf("GET /v1/sensors/wh41_ch1 = %d, want 200", rec.Code)
		}
		payload := decode(t, rec)
		if payload["connected"] != true {
			t.Errorf("wh41_ch1 connected = %v, want true", payload["connected"])
		}
	})

	t.Run("unknown", func(t *testing.T) {
		if rec := get(t, router, "/v1/sensors/wh99_ch9"); rec.Code != http.StatusNotFound {
			t.Errorf("GET /v1/sensors/wh99_ch9 = %d, want 404", rec.Code)
		}
	})
}

func TestHandleDevice(t *testing.T) {
	srv, _, coll := newTestServer(t)
	router := srv.buildRouter()

	// Not identified yet.
	if rec := get(t, router, "/v1/device"); rec.Code != http.StatusNotFound {
		t.Errorf("GET /v1/device before identify = %d, want 404", rec.Code)
	}

	if err := coll.Identify(context.Background()); err != nil {
		t.Fatalf("Identify() error = %v", err)
	}

	rec := get(t, router, "/v1/device")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /v1/device = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "GW2000A_V3.1.2") {
		t.Errorf("device payload missing version: %s", body)
	}
	if strings.Contains(body, testWUKey) {
		t.Error("device payload leaks the upload-service key")
	}
}

func TestHandleMetrics(t *testing.T) {
	srv, _, _ := newTestServer(t)
	router := srv.buildRouter()

	rec := get(t, router, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /metrics = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ecowitt_api_test") {
		t.Error("metrics output missing driver metrics")
	}
}

func TestRequestID(t *testing.T) {
	srv, _, _ := newTestServer(t)
	router := srv.buildRouter()

	rec := get(t, router, "/healthz")
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("response missing X-Request-ID header")
	}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "caller-supplied")
	echo := httptest.NewRecorder()
	router.ServeHTTP(echo, req)
	if got := echo.Header().Get("X-Request-ID"); got != "caller-supplied" {
		t.Errorf("X-Request-ID = %q, want caller-supplied", got)
	}
}

func TestServerLifecycle(t *testing.T) {
	srv, _, _ := newTestServer(t)

	if err := srv.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() before Start() should fail")
	}
	if err := srv.Close(); err != nil {
		t.Errorf("Close() before Start() error = %v", err)
	}

	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := srv.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() after Start() error = %v", err)
	}
	if err := srv.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
