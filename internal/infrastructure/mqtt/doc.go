// Package mqtt provides MQTT client connectivity for the Ecowitt driver.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// The driver publishes parsed gateway data to MQTT so downstream
// consumers (dashboards, automations, archivers) never talk to the
// station directly. The broker decouples the single polling loop from
// any number of subscribers.
//
//	Ecowitt Gateway ↔ Driver ↔ MQTT Broker ↔ Consumers
//
// # Security Considerations
//
//   - TLS is recommended when the broker is off-host (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Message payloads are not encrypted beyond TLS transport
//
// # Performance Characteristics
//
//   - Connection: <1 second to local broker
//   - Publish latency: <10ms for QoS 1 to local broker
//   - Reconnect: Exponential backoff 1s-60s with jitter
//   - Message throughput: Broker-limited (far above one poll cycle's worth)
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Subscribe to driver commands
//	err = client.Subscribe(mqtt.Topics{}.AllCommands(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	// Publish an observation
//	topic := mqtt.Topics{}.Observation("outTemp")
//	client.Publish(topic, []byte(`{"value":21.4,"unit":"degree_C"}`), 1, true)
package mqtt
