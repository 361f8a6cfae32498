// Package mqtt publishes shopgate's audit events to an MQTT broker.
//
// The client wraps paho.mqtt.golang and manages:
//   - Connection with auto-reconnect and exponential backoff
//   - A retained online/offline status topic with Last Will and Testament
//   - Publishing with QoS and payload size checks
//   - Subscriptions that are restored after a reconnect
//
// # Topics
//
// All topics live under the configured prefix (default "shopgate"):
//
//	shopgate/system/status          retained online/offline status
//	shopgate/events/auth/{action}   one message per audit event
//
// # Security Considerations
//
//   - Enable TLS (cfg.Broker.TLS=true) outside local development
//   - Event payloads carry usernames and client IPs; restrict the
//     events/auth subtree with broker ACLs
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topics := mqtt.NewTopics(cfg.MQTT.TopicPrefix)
//	err = client.Publish(topics.AuthEvent("login.failed"), payload, 1, false)
package mqtt
