// Package influxdb writes PowerTag readings and alert annotations to an
// InfluxDB v2 bucket through influxdb-client-go.
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteReading("Feeder 1", "main", "3", fields, ts)
//
// Points go to powertag_readings (tags: tag, gateway, device_id) and
// powertag_alerts (tags: kind, severity, tag). The library batches them;
// a failed batch is reported to SetOnError and not retried here.
package influxdb
