// Package sampler drives the PowerTag sampling loop.
//
// A Scheduler owns one session per Modbus gateway and, every poll
// interval, reads each register of each configured PowerTag in schema
// order. Float registers are read every cycle through register.Reader;
// text registers go through register.TextCache and are only re-read once
// their cached value is older than the refresh interval.
//
// A cycle ends in this order:
//
//  1. the complete set of rows is published to the snapshot store
//  2. each row is appended to the sink
//  3. each row is evaluated by the alert engine and any event is queued
//     on the dispatcher
//
// Lifecycle:
//
//	idle -> connecting -> running -> stopped
//	            |            |
//	            +-> failed <-+
//
// A sink failure or a panic inside a cycle is fatal: Run returns
// ErrCycleFailed and the process exits. Failed register reads are never
// fatal; they become null values.
//
// Metrics holds the Prometheus registry served at /metrics.
package sampler
