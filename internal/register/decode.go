package register

import (
	"encoding/binary"
	"fmt"
	"math"
)

// DecodeFloat32 interprets the first two words as the big-endian bytes of an
// IEEE-754 float32 (word0 carries the high bytes) and rounds the result to
// two decimal places.
//
// Returns ErrShortRead when fewer than two words are supplied.
func DecodeFloat32(words []uint16) (float64, error) {
	if len(words) < floatWords {
		return 0, fmt.Errorf("%w: float needs %d words, got %d", ErrShortRead, floatWords, len(words))
	}
	bits := uint32(words[0])<<16 | uint32(words[1])
	return round2(float64(math.Float32frombits(bits))), nil
}

// EncodeFloat32 is the inverse of DecodeFloat32 before rounding. It is used
// by fake sessions to build register images.
func EncodeFloat32(v float32) [2]uint16 {
	bits := math.Float32bits(v)
	return [2]uint16{uint16(bits >> 16), uint16(bits)} //nolint:gosec // intentional truncation
}

// DecodeASCII unpacks words into text, high byte first. Trailing zero bytes
// are stripped and bytes outside 7-bit ASCII are dropped. It never fails;
// all-zero input yields the empty string.
func DecodeASCII(words []uint16) string {
	buf := make([]byte, len(words)*2)
	for i, w := range words {
		binary.BigEndian.PutUint16(buf[i*2:], w)
	}

	end := len(buf)
	for end > 0 && buf[end-1] == 0 {
		end--
	}

	out := make([]byte, 0, end)
	for _, b := range buf[:end] {
		if b < 0x80 {
			out = append(out, b)
		}
	}
	return string(out)
}

// round2 rounds half away from zero to two decimal places.
// NaN and infinities pass through unchanged.
func round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return math.Round(v*100) / 100
}
