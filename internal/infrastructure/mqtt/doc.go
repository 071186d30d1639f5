// Package mqtt publishes PowerTag readings and events to an MQTT broker
// using paho.mqtt.golang.
//
// # Topics
//
//	powertag/state/<tag>      latest row, retained
//	powertag/alert/<tag>      threshold alerts
//	powertag/event/<kind>     startup, shutdown and error events
//	powertag/system/status    online/offline, retained, also the will
//
// Names are made safe for a single topic level by Topics: "/", "+" and
// "#" become "_".
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.PublishJSON(mqtt.Topics{}.State(row.Tag), row, true)
//
// Enable broker.tls whenever the broker is not on the same host.
package mqtt
