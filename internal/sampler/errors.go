package sampler

import "errors"

// Domain errors for the sampler package.
var (
	// ErrConnectFailed is returned when a gateway session cannot be opened
	// at startup. Sessions opened before the failure are closed.
	ErrConnectFailed = errors.New("sampler: gateway connection failed")

	// ErrCycleFailed wraps an unexpected failure that stopped the loop.
	ErrCycleFailed = errors.New("sampler: cycle failed")

	// ErrUnknownGateway is returned when a PowerTag names a gateway with no
	// session.
	ErrUnknownGateway = errors.New("sampler: unknown gateway")

	// ErrNotConnected is returned when a cycle runs before ConnectAll.
	ErrNotConnected = errors.New("sampler: not connected")
)
