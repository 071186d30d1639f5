package sink

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/nerrad567/powertag-monitor/internal/powertag"
)

// ReadingWriter is implemented by influxdb.Client and tsdb.Client.
type ReadingWriter interface {
	WriteReading(tag, gateway, deviceID string, fields map[string]interface{}, ts time.Time)
	Close() error
}

// SeriesSink writes rows to a time-series backend. Writes are batched by
// the backend client, so Append never fails; backend errors arrive through
// the client's SetOnError callback.
type SeriesSink struct {
	name       string
	w          ReadingWriter
	textFields bool
}

// NewInfluxSink writes numeric and text values as fields.
func NewInfluxSink(w ReadingWriter) *SeriesSink {
	return &SeriesSink{name: "influxdb", w: w, textFields: true}
}

// NewTSDBSink writes numeric values only; VictoriaMetrics drops string
// fields.
func NewTSDBSink(w ReadingWriter) *SeriesSink {
	return &SeriesSink{name: "tsdb", w: w}
}

// Name implements Sink.
func (s *SeriesSink) Name() string { return s.name }

// Append implements Sink.
func (s *SeriesSink) Append(_ context.Context, row powertag.Row) error {
	s.w.WriteReading(row.Tag, row.Gateway, strconv.Itoa(int(row.DeviceID)), s.fields(row), row.Timestamp)
	return nil
}

// fields maps a row to point fields. Null, Unknown, NaN and Inf values
// are skipped.
func (s *SeriesSink) fields(row powertag.Row) map[string]interface{} {
	fields := make(map[string]interface{}, len(row.Keys))
	for i, key := range row.Keys {
		v := row.Values[i]
		switch v.Kind() {
		case powertag.KindFloat:
			f, _ := v.Float64()
			if math.IsNaN(f) || math.IsInf(f, 0) {
				continue
			}
			fields[key] = f
		case powertag.KindText:
			if s.textFields {
				fields[key] = v.String()
			}
		}
	}
	return fields
}

// Close implements Sink and closes the backend client.
func (s *SeriesSink) Close() error {
	return s.w.Close()
}
