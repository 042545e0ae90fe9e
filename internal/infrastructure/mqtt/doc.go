// Package mqtt provides the broker connection shared by the Dynalite
// bridges, their gateway clients and the host platforms.
//
// The service talks MQTT in two directions:
//
//	host (graylogic/*) ↔ broker ↔ dynalite-bridge ↔ broker ↔ Dynalite gateway
//
// Client adds auto-reconnect with subscription restore, a retained
// online/offline status with a Last Will on graylogic/system/status, and
// panic recovery around message handlers. *Client satisfies
// dynalite.MQTTClient directly.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe("graylogic/command/dynalite/home/+", 1,
//	    func(topic string, payload []byte) error {
//	        return platform.HandleCommand(topic, payload)
//	    })
//
// TLS (mqtt.broker.tls) should be enabled whenever the broker is not on
// localhost.
package mqtt
