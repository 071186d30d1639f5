package mqtt

import "errors"

// Errors returned by Connect, Publish and HealthCheck. Match them with
// errors.Is; most are wrapped with detail.
var (
	// ErrDisabled is returned by Connect when mqtt.enabled is false.
	ErrDisabled = errors.New("mqtt: disabled in configuration")

	// ErrConnectionFailed means the broker did not accept the first
	// connection within the connect timeout.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrNotConnected is returned while paho is reconnecting, or after
	// Close.
	ErrNotConnected = errors.New("mqtt: not connected to broker")

	// ErrInvalidPublish rejects a publish before it reaches the broker:
	// empty or wildcard topic, QoS above 2, or an oversized payload.
	ErrInvalidPublish = errors.New("mqtt: invalid publish")

	// ErrPublishFailed means the broker did not acknowledge in time or
	// refused the message.
	ErrPublishFailed = errors.New("mqtt: publish failed")
)
