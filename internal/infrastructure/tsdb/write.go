package tsdb

import (
	"strings"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// ReadingsMeasurement is the measurement PowerTag rows are written to.
// VictoriaMetrics exposes each field as powertag_readings_<field>.
const ReadingsMeasurement = "powertag_readings"

// WriteReading queues one sampled row. Rows without fields are dropped.
//
// Parameters:
//   - tag: PowerTag name
//   - gateway: gateway name the tag was read through
//   - deviceID: Modbus unit id, as a label value
//   - fields: decoded values (float64 or string)
//   - ts: sample timestamp
func (c *Client) WriteReading(tag, gateway, deviceID string, fields map[string]interface{}, ts time.Time) {
	if len(fields) == 0 {
		return
	}
	c.WritePointWithTime(ReadingsMeasurement, map[string]string{
		"tag":       tag,
		"gateway":   gateway,
		"device_id": deviceID,
	}, fields, ts)
}

// WritePointWithTime queues a custom point with a specific timestamp.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	c.addLine(formatLineProtocol(measurement, tags, fields, timestamp))
}

// formatLineProtocol renders a point as one line of InfluxDB line protocol
// with nanosecond timestamps. Tag and field keys come out sorted.
func formatLineProtocol(measurement string, tags map[string]string, fields map[string]interface{}, t time.Time) string {
	line := write.PointToLineProtocol(write.NewPoint(measurement, tags, fields, t), time.Nanosecond)
	return strings.TrimRight(line, "\n")
}
