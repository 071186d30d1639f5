package modbus

import "errors"

// Domain errors for the Modbus bridge package.
var (
	// ErrNotConnected is returned when a read is attempted on a closed session.
	ErrNotConnected = errors.New("modbus: not connected to gateway")

	// ErrConnectionFailed is returned when the gateway cannot be opened.
	ErrConnectionFailed = errors.New("modbus: connection to gateway failed")

	// ErrReadFailed is returned when a register read fails.
	ErrReadFailed = errors.New("modbus: register read failed")

	// ErrInvalidUnitID is returned when the unit id is rejected by the client.
	ErrInvalidUnitID = errors.New("modbus: invalid unit id")
)
