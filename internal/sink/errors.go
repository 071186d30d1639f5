package sink

import "errors"

// Sentinel errors for sink operations.
var (
	// ErrAppendFailed wraps any failure to record a row.
	ErrAppendFailed = errors.New("sink: append failed")

	// ErrClosed indicates a write to a sink that has been closed.
	ErrClosed = errors.New("sink: closed")

	// ErrTagRequired indicates a history query without a tag.
	ErrTagRequired = errors.New("sink: tag is required")
)
