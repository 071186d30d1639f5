package sink

import (
	"context"
	"errors"
	"fmt"

	"github.com/nerrad567/powertag-monitor/internal/powertag"
)

// Sink durably records sampled rows.
//
// Append is called from the sampling goroutine once per row, after the
// cycle's snapshot has been published. An error from Append stops the
// sampling loop, so implementations backed by an async writer only report
// errors they can detect synchronously.
type Sink interface {
	Name() string
	Append(ctx context.Context, row powertag.Row) error
	Close() error
}

// Multi fans rows out to several sinks in order.
type Multi struct {
	sinks []Sink
}

// NewMulti combines sinks. Nil entries are skipped.
func NewMulti(sinks ...Sink) *Multi {
	m := &Multi{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

// Name implements Sink.
func (m *Multi) Name() string { return "multi" }

// Len returns the number of combined sinks.
func (m *Multi) Len() int { return len(m.sinks) }

// Append writes row to every sink. Every sink is attempted; the first
// failure is returned.
func (m *Multi) Append(ctx context.Context, row powertag.Row) error {
	var first error
	for _, s := range m.sinks {
		if err := s.Append(ctx, row); err != nil && first == nil {
			first = fmt.Errorf("%w: %s: %w", ErrAppendFailed, s.Name(), err)
		}
	}
	return first
}

// Close closes every sink and joins their errors.
func (m *Multi) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}
