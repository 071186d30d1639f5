// Package snapshot holds the latest complete cycle of readings for the
// HTTP API. Publication is an atomic pointer swap, so a reader sees either
// the previous cycle or the new one in full.
package snapshot
