// Package mqtt connects the relay to an MQTT broker.
//
// The broker is optional. When enabled, the relay:
//   - keeps a retained status on remorelay/system/status, with a last will
//     that flips it to offline if the process dies
//   - accepts send requests on remorelay/command/send/{name}
//   - publishes every send outcome to remorelay/event/sent/{name}
//
// The client reconnects on its own with backoff between the configured
// delays and restores its subscriptions after each reconnect. Handler
// panics are recovered and logged.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if errors.Is(err, mqtt.ErrDisabled) {
//	    // run without a broker
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllSendCommands(), 1, handler)
//
// Unit tests need no broker. Tests tagged "integration" expect one on
// 127.0.0.1:1883.
package mqtt
