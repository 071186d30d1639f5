package tsdb

import "errors"

// Errors returned by Connect and HealthCheck, or delivered to the
// SetOnError callback after a failed flush.
var (
	// ErrDisabled is returned by Connect when tsdb.enabled is false.
	ErrDisabled = errors.New("tsdb: disabled in configuration")

	// ErrConnectionFailed means /health did not answer 200 at startup.
	ErrConnectionFailed = errors.New("tsdb: connection failed")

	// ErrNotConnected is returned after Close.
	ErrNotConnected = errors.New("tsdb: client closed")

	// ErrWriteFailed means a flush did not reach VictoriaMetrics. The
	// lines stay queued.
	ErrWriteFailed = errors.New("tsdb: write failed")

	// ErrRejected means VictoriaMetrics refused a batch. The lines are
	// dropped.
	ErrRejected = errors.New("tsdb: batch rejected")
)
