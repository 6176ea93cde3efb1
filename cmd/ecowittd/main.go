// ecowittd - Ecowitt gateway driver
//
// ecowittd polls an Ecowitt weather station gateway (GW1100, GW2000,
// WS39xx console and similar) over its local HTTP API, decodes the
// responses into normalised observations and publishes them to MQTT and
// InfluxDB. A small read-only HTTP server exposes health, Prometheus
// metrics and the latest polled state.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	_ "github.com/openwx/ecowitt-core/migrations"

	"github.com/openwx/ecowitt-core/internal/api"
	"github.com/openwx/ecowitt-core/internal/collector"
	"github.com/openwx/ecowitt-core/internal/history"
	"github.com/openwx/ecowitt-core/internal/infrastructure/config"
	"github.com/openwx/ecowitt-core/internal/infrastructure/influxdb"
	"github.com/openwx/ecowitt-core/internal/infrastructure/logging"
	"github.com/openwx/ecowitt-core/internal/infrastructure/mqtt"
	"github.com/openwx/ecowitt-core/internal/metrics"
	"github.com/openwx/ecowitt-core/internal/publisher"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting ecowittd",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	m := metrics.NewCollector("ecowitt")

	// Open the counter history store
	store, err := history.Open(cfg.History)
	if err != nil {
		return fmt.Errorf("opening history store: %w", err)
	}
	defer func() {
		log.Info("closing history store")
		if closeErr := store.Close(); closeErr != nil {
			log.Error("error closing history store", "error", closeErr)
		}
	}()
	log.Info("history store opened", "path", cfg.History.Path)

	if pruneErr := store.Prune(ctx); pruneErr != nil {
		log.Warn("pruning counter snapshots failed", "error", pruneErr)
	}

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// Build the poll pipeline: device -> collector -> publisher -> sinks
	device := collector.NewDevice(cfg.Gateway)
	coll, err := collector.New(cfg, device, log, m)
	if err != nil {
		return fmt.Errorf("creating collector: %w", err)
	}

	// nil interface values must stay nil, not wrap a nil pointer
	var msgs publisher.MessageSink
	if mqttClient != nil {
		msgs = mqttClient
	}
	var points publisher.MeasurementSink
	if influxClient != nil {
		points = influxClient
	}
	pub := publisher.New(cfg, store, msgs, points, log, m)
	coll.Subscribe(pub)

	// Identify the gateway up front so the retained device document is
	// published before the first observation.
	if err := coll.Identify(ctx); err != nil {
		log.Warn("gateway identification failed", "error", err)
	} else {
		pub.PublishDeviceInfo(coll.Version(), coll.Settings())
	}

	// MQTT command surface
	if mqttClient != nil {
		if err := subscribeCommands(ctx, mqttClient, cfg, coll, log); err != nil {
			log.Warn("subscribing to commands failed", "error", err)
		}
	}

	// Start the diagnostics API (optional)
	if cfg.API.Enabled {
		apiServer, err := api.New(api.Deps{
			Config:    cfg.API,
			Logger:    log,
			Collector: coll,
			Publisher: pub,
			MQTT:      mqttClient,
			InfluxDB:  influxClient,
			Version:   version,
		})
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		if err := apiServer.Start(ctx); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
		defer func() {
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API server disabled")
	}

	log.Info("initialisation complete, polling gateway",
		"gateway", fmt.Sprintf("%s:%d", cfg.Gateway.Host, cfg.Gateway.Port),
		"poll_interval", cfg.Gateway.PollInterval,
	)

	// Blocks until the context is cancelled.
	if err := coll.Run(ctx); err != nil {
		return fmt.Errorf("poll loop: %w", err)
	}

	log.Info("ecowittd stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses ECOWITT_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("ECOWITT_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// subscribeCommands wires the MQTT command topics to collector actions.
// Unknown commands are logged and ignored.
func subscribeCommands(ctx context.Context, client *mqtt.Client, cfg *config.Config, coll *collector.Collector, log *logging.Logger) error {
	topics := mqtt.Topics{}
	return client.Subscribe(topics.AllCommands(), byte(cfg.MQTT.QoS), func(topic string, _ []byte) error {
		command := topic[strings.LastIndex(topic, "/")+1:]
		log.Info("command received", "command", command)

		switch command {
		case "poll":
			return coll.PollLivedata(ctx)
		case "poll_sensors":
			return coll.PollSensors(ctx)
		case "identify":
			return coll.Identify(ctx)
		default:
			log.Warn("unknown command ignored", "command", command)
			return nil
		}
	})
}
