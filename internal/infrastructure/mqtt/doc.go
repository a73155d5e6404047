// Package mqtt provides MQTT connectivity for punchcore's event fan-out.
//
// punchcore publishes accepted punches, reader state, and its own
// liveness to an MQTT broker so dashboards and downstream consumers can
// follow the system without polling the REST API. The package wraps
// paho.mqtt.golang with:
//
//   - Connection management with auto-reconnect and exponential backoff
//   - Last Will and Testament on punchcore/system/status for crash detection
//   - A Publisher that maps domain events onto the punchcore/... topic tree
//
// The broker is strictly an observer: publish failures are logged and
// never affect punch processing. MQTT is optional and controlled by the
// mqtt.enabled config flag.
//
// Usage:
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	pub := mqtt.NewPublisher(client)
//	pub.SetLogger(log)
//	processor.SetPublisher(pub)
package mqtt
