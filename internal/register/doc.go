// Package register turns raw Modbus register words into typed values.
//
// It provides:
//   - Schema: the ordered list of named register definitions read every cycle
//   - DecodeFloat32 / DecodeASCII: word-level decoders
//   - Reader: logical reads with a fixed-delay retry policy
//   - TextCache: a refresh-interval memo for slow text registers
//
// # Encodings
//
// float: two words, word0 high, big-endian IEEE-754 float32, rounded to
// two decimal places.
//
// ascii: N words, high byte first. Trailing NUL bytes are stripped and
// non-ASCII bytes dropped.
//
// # Failure model
//
// Reader never returns an error. A read that fails every attempt reports
// "unavailable" and the caller records a null value for the cycle.
package register
