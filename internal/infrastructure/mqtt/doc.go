// Package mqtt provides MQTT client connectivity for Machine Core.
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
// Machine Core uses MQTT as the control bus connecting the core to the
// hardware gateways that front the physical machine. The broker decouples
// the core from gateway-specific implementations.
//
//	Machine Core ↔ MQTT Broker ↔ Hardware Gateways
//
// Readback values arrive on retained state topics; setpoints are published
// to set topics. See the Topics builder for the exact scheme.
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Subscribe to all point state updates
//	err = client.Subscribe(client.Topics().AllPointStates(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	// Publish a setpoint
//	topic := client.Topics().PointSet("magnet", "QUAD-01", "current_sp")
//	client.Publish(topic, []byte(`{"value":4.2}`), 1, false)
package mqtt
