package register

import (
	"context"
	"fmt"
	"time"
)

// Source is a connected register source, normally one gateway session.
//
// ReadWords returns count words starting at address in region from the
// device with the given unit id.
type Source interface {
	Name() string
	ReadWords(region Region, address uint16, deviceID uint8, count uint16) ([]uint16, error)
}

// Observer receives read outcomes. sampler.Metrics implements it.
type Observer interface {
	// ReadFailed is called once per failed attempt.
	ReadFailed(gateway, key string)
	// ReadExhausted is called when every attempt of a read failed.
	ReadExhausted(gateway, key string)
}

// RetryPolicy bounds how hard a single logical read tries.
type RetryPolicy struct {
	// Attempts is the maximum number of read attempts (minimum 1).
	Attempts int
	// Delay is the fixed pause between attempts.
	Delay time.Duration
}

// Reader performs logical register reads with retry. A logical read either
// yields words or reports "unavailable"; transport errors, device exceptions
// and short reads never escape it.
//
// Reader holds no per-read state and is safe for concurrent use.
type Reader struct {
	policy   RetryPolicy
	observer Observer
	sleep    func(ctx context.Context, d time.Duration) bool
}

// NewReader creates a Reader with the given retry policy.
// A nil observer is allowed.
func NewReader(policy RetryPolicy, observer Observer) *Reader {
	if policy.Attempts < 1 {
		policy.Attempts = 1
	}
	return &Reader{
		policy:   policy,
		observer: observer,
		sleep:    sleepContext,
	}
}

// ReadFloat reads and decodes a float definition.
// Returns false when the value is unavailable this cycle.
func (r *Reader) ReadFloat(ctx context.Context, src Source, def Definition, deviceID uint8) (float64, bool) {
	words, ok := r.readWords(ctx, src, def, deviceID, floatWords)
	if !ok {
		return 0, false
	}
	v, err := DecodeFloat32(words)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ReadText reads and decodes an ascii definition.
// Returns false when the read failed. A successful read of all-zero words
// returns ("", true).
func (r *Reader) ReadText(ctx context.Context, src Source, def Definition, deviceID uint8) (string, bool) {
	words, ok := r.readWords(ctx, src, def, deviceID, def.Length)
	if !ok {
		return "", false
	}
	return DecodeASCII(words), true
}

// readWords runs the retry loop. A read returning fewer than need words
// counts as a failed attempt.
func (r *Reader) readWords(ctx context.Context, src Source, def Definition, deviceID uint8, need uint16) ([]uint16, bool) {
	for attempt := 1; attempt <= r.policy.Attempts; attempt++ {
		if ctx.Err() != nil {
			return nil, false
		}

		words, err := src.ReadWords(def.Region, def.Address, deviceID, def.Length)
		if err == nil && len(words) < int(need) {
			err = fmt.Errorf("%w: want %d words, got %d", ErrShortRead, need, len(words))
		}
		if err == nil {
			return words, true
		}

		if r.observer != nil {
			r.observer.ReadFailed(src.Name(), def.Key)
		}

		if attempt < r.policy.Attempts && !r.sleep(ctx, r.policy.Delay) {
			return nil, false
		}
	}

	if r.observer != nil {
		r.observer.ReadExhausted(src.Name(), def.Key)
	}
	return nil, false
}

// sleepContext waits for d or until ctx is done.
// Returns false if the context ended first.
func sleepContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
