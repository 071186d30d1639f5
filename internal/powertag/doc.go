// Package powertag defines the monitored-device domain types shared by the
// sampler, sinks, alerting and the HTTP API.
//
// A Row is the unit of work: one device, one cycle, one Value per schema
// register. Value distinguishes four cases:
//
//   - Null: the read failed this cycle
//   - Float: a decoded reading
//   - Text: decoded text (possibly empty)
//   - Unknown: text that has never been decoded, rendered as "Unknown"
package powertag
