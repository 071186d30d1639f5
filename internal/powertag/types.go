package powertag

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Gateway is a Modbus network endpoint fronting one or more PowerTags.
type Gateway struct {
	Name string
	Host string
	Port int
	// Device is the serial device path in RTU mode.
	Device string
}

// PowerTag is one monitored device, addressed by unit id behind a gateway.
type PowerTag struct {
	DeviceID uint8
	Name     string
	Gateway  string
}

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	// KindNull marks a value that could not be read this cycle.
	KindNull Kind = iota
	// KindFloat is a decoded numeric reading.
	KindFloat
	// KindText is decoded register text.
	KindText
	// KindUnknown marks text that has never been decoded successfully.
	KindUnknown
)

// UnknownText is how an unknown value is rendered in logs and JSON.
const UnknownText = "Unknown"

// Value is one register value in a row.
type Value struct {
	kind Kind
	num  float64
	text string
}

// Null returns the "no value this cycle" marker.
func Null() Value { return Value{kind: KindNull} }

// Float returns a numeric value.
func Float(v float64) Value { return Value{kind: KindFloat, num: v} }

// Text returns a text value. The empty string is a valid text value.
func Text(s string) Value { return Value{kind: KindText, text: s} }

// Unknown returns the text-cache sentinel for text never decoded.
func Unknown() Value { return Value{kind: KindUnknown} }

// Kind returns the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is the null marker.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Float64 returns the numeric value and whether v holds one.
func (v Value) Float64() (float64, bool) {
	if v.kind != KindFloat {
		return 0, false
	}
	return v.num, true
}

// String renders v for logs and CSV cells. Null renders as the empty string.
func (v Value) String() string {
	switch v.kind {
	case KindFloat:
		return FormatNumber(v.num)
	case KindText:
		return v.text
	case KindUnknown:
		return UnknownText
	default:
		return ""
	}
}

// MarshalJSON encodes floats as numbers, text as strings, unknown as
// "Unknown" and null as null. Non-finite floats encode as null.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindFloat:
		if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
			return []byte("null"), nil
		}
		return json.Marshal(v.num)
	case KindText:
		return json.Marshal(v.text)
	case KindUnknown:
		return json.Marshal(UnknownText)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON is the inverse of MarshalJSON. The string "Unknown" decodes
// to the unknown sentinel.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch x := raw.(type) {
	case nil:
		*v = Null()
	case float64:
		*v = Float(x)
	case string:
		if x == UnknownText {
			*v = Unknown()
		} else {
			*v = Text(x)
		}
	default:
		return fmt.Errorf("powertag: unsupported value %s", string(data))
	}
	return nil
}

// FormatNumber renders a reading the way alert messages show it: the
// shortest exact form, with ".0" appended to whole numbers (260 -> "260.0").
func FormatNumber(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return s
	}
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			return s
		}
	}
	return s + ".0"
}

// Row is one device's decoded values for one cycle. Values holds exactly one
// entry per schema key, in schema order. Rows are not modified after assembly.
type Row struct {
	Tag       string
	Gateway   string
	DeviceID  uint8
	Timestamp time.Time
	Keys      []string
	Values    []Value
}

// Get returns the value for key. A key outside the schema returns Null.
func (r Row) Get(key string) Value {
	for i, k := range r.Keys {
		if k == key {
			return r.Values[i]
		}
	}
	return Null()
}

// Map returns the values keyed by register key.
func (r Row) Map() map[string]Value {
	m := make(map[string]Value, len(r.Keys))
	for i, k := range r.Keys {
		m[k] = r.Values[i]
	}
	return m
}

type rowJSON struct {
	Tag       string           `json:"tag"`
	Gateway   string           `json:"gateway"`
	DeviceID  uint8            `json:"device_id"`
	Timestamp time.Time        `json:"timestamp"`
	Values    map[string]Value `json:"values"`
}

// MarshalJSON encodes the row with its values keyed by register key.
func (r Row) MarshalJSON() ([]byte, error) {
	return json.Marshal(rowJSON{
		Tag:       r.Tag,
		Gateway:   r.Gateway,
		DeviceID:  r.DeviceID,
		Timestamp: r.Timestamp,
		Values:    r.Map(),
	})
}
