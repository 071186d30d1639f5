package register

import "errors"

// Domain errors for the register package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, register.ErrShortRead) {
//	    // gateway returned fewer words than requested
//	}
var (
	// ErrShortRead is returned when a read yields fewer words than the encoding needs.
	ErrShortRead = errors.New("register: short read")

	// ErrInvalidKey is returned when a definition has no key.
	ErrInvalidKey = errors.New("register: invalid key")

	// ErrInvalidRegion is returned when a region name is not input or holding.
	ErrInvalidRegion = errors.New("register: invalid region")

	// ErrInvalidEncoding is returned when an encoding name is not recognised.
	ErrInvalidEncoding = errors.New("register: invalid encoding")

	// ErrInvalidLength is returned when a word count does not suit the encoding.
	ErrInvalidLength = errors.New("register: invalid length")

	// ErrDuplicateKey is returned when two definitions share a key.
	ErrDuplicateKey = errors.New("register: duplicate key")

	// ErrEmptySchema is returned when a schema has no definitions.
	ErrEmptySchema = errors.New("register: empty schema")
)
