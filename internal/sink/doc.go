// Package sink records sampled rows.
//
// Implementations:
//   - CSVSink: the default append-only log file
//   - SQLiteSink: readings history and the alert log, with retention
//   - SeriesSink: InfluxDB v2 or VictoriaMetrics via their batching clients
//   - MQTTSink: retained latest-row topics
//   - Multi: fans out to all of the above
//
// The sampler treats an Append error as fatal. Only sinks that write
// synchronously (CSV, SQLite) return errors; the network-backed sinks
// report failures out of band.
package sink
