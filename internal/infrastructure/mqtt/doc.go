// Package mqtt provides MQTT client connectivity for Slate.
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
// Slate uses MQTT as the content-event bus. Every content mutation is
// published to slate/content/{action}/{collection}; the realtime
// gateway subscribes to the wildcard form and pushes matching events to
// websocket subscribers. External consumers (search indexers, cache
// invalidators, sibling Slate instances) attach to the same broker, so
// a mutation performed on one instance reaches clients connected to
// another.
//
//	Slate API ↔ MQTT Broker ↔ Realtime Gateways / External Consumers
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Message payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Receive every content mutation
//	err = client.Subscribe(mqtt.Topics{}.AllContentEvents(),
//	    func(topic string, payload []byte) error {
//	        log.Printf("event: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	// Announce a content change
//	topic := mqtt.Topics{}.ContentEvent(mqtt.ActionUpdate, "articles")
//	client.Publish(topic, []byte(`{"keys":["42"]}`))
package mqtt
