// Package mqtt provides MQTT client connectivity for Templegate Capacity
// Core.
//
// This package manages:
//   - Connection to Mosquitto broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// Templegate uses MQTT as the feed bus connecting the Core to on-site
// sensors: occupancy counters at the gates and the weather station. The
// broker (Mosquitto) decouples Core from the sensor hardware, and Core
// publishes its evaluated capacity state back onto the bus for display
// boards and the booking frontend.
//
//	Occupancy counters ─┐
//	Weather station    ─┼─▶ MQTT Broker ◀─▶ Capacity Core
//	Display boards    ◀─┘
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Message payloads are not encrypted beyond TLS transport
//
// # Performance Characteristics
//
//   - Connection: <1 second to local broker
//   - Publish latency: <10ms for QoS 1 to local broker
//   - Reconnect: Exponential backoff 1s-60s with jitter
//   - Message throughput: Broker-limited (typically 10K+ msg/sec)
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Subscribe to the site's occupancy feed
//	err = client.Subscribe(mqtt.Topics{}.Occupancy("temple-001"), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	// Publish evaluated state (retained)
//	topic := mqtt.Topics{}.CapacityState("temple-001")
//	client.Publish(topic, stateJSON, 1, true)
package mqtt
