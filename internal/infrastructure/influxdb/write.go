package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurements written by the client.
const (
	ReadingsMeasurement = "powertag_readings"
	AlertsMeasurement   = "powertag_alerts"
)

// WriteReading queues one sampled row as a ReadingsMeasurement point
// tagged with tag, gateway and device_id. A row with no usable fields is
// skipped.
//
// Example:
//
//	client.WriteReading("Feeder 1", "main", "3",
//	    map[string]interface{}{"voltage": 231.4, "current": 12.02}, ts)
func (c *Client) WriteReading(tag, gateway, deviceID string, fields map[string]interface{}, ts time.Time) {
	if len(fields) == 0 {
		return
	}
	c.writePoint(ReadingsMeasurement, map[string]string{
		"tag":       tag,
		"gateway":   gateway,
		"device_id": deviceID,
	}, fields, ts)
}

// WriteAlert queues an alert annotation so dashboards can overlay alerts
// on the readings they were raised from.
func (c *Client) WriteAlert(tag, kind, severity, description string, ts time.Time) {
	tags := map[string]string{"kind": kind, "severity": severity}
	if tag != "" {
		tags["tag"] = tag
	}
	c.writePoint(AlertsMeasurement, tags, map[string]interface{}{"description": description}, ts)
}

func (c *Client) writePoint(measurement string, tags map[string]string, fields map[string]interface{}, ts time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, ts))
}
