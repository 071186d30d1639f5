package notify

import "errors"

// Sentinel errors for notification delivery.
var (
	// ErrDeliveryFailed indicates a notifier could not deliver an event.
	ErrDeliveryFailed = errors.New("notify: delivery failed")

	// ErrQueueFull indicates the dispatcher dropped an event because its
	// queue was full.
	ErrQueueFull = errors.New("notify: queue full")

	// ErrClosed indicates the dispatcher no longer accepts events.
	ErrClosed = errors.New("notify: dispatcher closed")

	// ErrDisabled indicates a notifier is switched off in config.
	ErrDisabled = errors.New("notify: disabled in configuration")
)
