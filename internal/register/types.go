package register

import (
	"fmt"
	"strings"

	"github.com/nerrad567/powertag-monitor/internal/infrastructure/config"
)

// floatWords is the number of 16-bit words holding an IEEE-754 float32.
const floatWords = 2

// maxReadWords is the Modbus limit for a single register read request.
const maxReadWords = 125

// Region identifies the Modbus register table a definition lives in.
type Region string

const (
	// RegionInput is the read-only input register table (function 0x04).
	RegionInput Region = "input"

	// RegionHolding is the read/write holding register table (function 0x03).
	RegionHolding Region = "holding"
)

// ParseRegion converts a configuration string to a Region.
func ParseRegion(s string) (Region, error) {
	switch r := Region(strings.ToLower(strings.TrimSpace(s))); r {
	case RegionInput, RegionHolding:
		return r, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRegion, s)
	}
}

// Encoding identifies how a definition's words are turned into a value.
type Encoding string

const (
	// EncodingFloat is a big-endian IEEE-754 float32 across two words.
	EncodingFloat Encoding = "float"

	// EncodingASCII is packed text, two characters per word.
	EncodingASCII Encoding = "ascii"
)

// ParseEncoding converts a configuration string to an Encoding.
func ParseEncoding(s string) (Encoding, error) {
	switch e := Encoding(strings.ToLower(strings.TrimSpace(s))); e {
	case EncodingFloat, EncodingASCII:
		return e, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidEncoding, s)
	}
}

// Definition describes one named register in the schema.
type Definition struct {
	Key      string
	Address  uint16
	Region   Region
	Encoding Encoding
	Length   uint16
}

// Validate checks that the definition is internally consistent.
func (d Definition) Validate() error {
	if d.Key == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidKey)
	}
	if _, err := ParseRegion(string(d.Region)); err != nil {
		return fmt.Errorf("register %q: %w", d.Key, err)
	}
	switch d.Encoding {
	case EncodingFloat:
		if d.Length != floatWords {
			return fmt.Errorf("%w: register %q float needs %d words, got %d", ErrInvalidLength, d.Key, floatWords, d.Length)
		}
	case EncodingASCII:
		if d.Length < 1 || d.Length > maxReadWords {
			return fmt.Errorf("%w: register %q ascii needs 1-%d words, got %d", ErrInvalidLength, d.Key, maxReadWords, d.Length)
		}
	default:
		return fmt.Errorf("register %q: %w: %q", d.Key, ErrInvalidEncoding, d.Encoding)
	}
	return nil
}

// Schema is the ordered, immutable list of register definitions read for
// every device on every cycle. Its order is the column order of every row.
type Schema struct {
	defs []Definition
	keys []string
}

// NewSchema validates defs and returns a Schema preserving their order.
func NewSchema(defs []Definition) (Schema, error) {
	if len(defs) == 0 {
		return Schema{}, ErrEmptySchema
	}

	seen := make(map[string]bool, len(defs))
	keys := make([]string, 0, len(defs))
	for _, d := range defs {
		if err := d.Validate(); err != nil {
			return Schema{}, err
		}
		if seen[d.Key] {
			return Schema{}, fmt.Errorf("%w: %q", ErrDuplicateKey, d.Key)
		}
		seen[d.Key] = true
		keys = append(keys, d.Key)
	}

	out := make([]Definition, len(defs))
	copy(out, defs)
	return Schema{defs: out, keys: keys}, nil
}

// SchemaFromConfig builds a Schema from the registers section of the config.
func SchemaFromConfig(regs []config.RegisterConfig) (Schema, error) {
	defs := make([]Definition, 0, len(regs))
	for _, r := range regs {
		region, err := ParseRegion(r.Region)
		if err != nil {
			return Schema{}, fmt.Errorf("register %q: %w", r.Key, err)
		}
		encoding, err := ParseEncoding(r.Encoding)
		if err != nil {
			return Schema{}, fmt.Errorf("register %q: %w", r.Key, err)
		}
		defs = append(defs, Definition{
			Key:      r.Key,
			Address:  uint16(r.Address), //nolint:gosec // range checked by config validation
			Region:   region,
			Encoding: encoding,
			Length:   uint16(r.Length), //nolint:gosec // range checked by config validation
		})
	}
	return NewSchema(defs)
}

// Definitions returns a copy of the definitions in schema order.
func (s Schema) Definitions() []Definition {
	out := make([]Definition, len(s.defs))
	copy(out, s.defs)
	return out
}

// Keys returns the register keys in schema order. The slice is shared and
// must not be modified.
func (s Schema) Keys() []string {
	return s.keys
}

// Len returns the number of definitions.
func (s Schema) Len() int {
	return len(s.defs)
}

// Index returns the position of key in the schema, or -1.
func (s Schema) Index(key string) int {
	for i, k := range s.keys {
		if k == key {
			return i
		}
	}
	return -1
}
