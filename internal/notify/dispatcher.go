package notify

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/powertag-monitor/internal/alert"
	"github.com/nerrad567/powertag-monitor/internal/infrastructure/logging"
)

const (
	defaultQueueSize       = 64
	defaultDeliveryTimeout = 10 * time.Second
)

// Dispatcher delivers events to every notifier from a single background
// goroutine so the sampling loop never waits on the network.
//
// Dispatch never blocks: when the queue is full the event is dropped and
// counted. Delivery errors are logged and absorbed.
//
// Thread Safety: Dispatch and Close are safe for concurrent use.
type Dispatcher struct {
	notifiers []Notifier
	logger    *logging.Logger
	timeout   time.Duration

	queue  chan alert.Event
	mu     sync.RWMutex
	closed bool
	done   chan struct{}

	dropped   atomic.Uint64
	delivered atomic.Uint64
	failed    atomic.Uint64
}

// DispatcherOptions configures a Dispatcher.
type DispatcherOptions struct {
	// QueueSize bounds pending events. Defaults to 64.
	QueueSize int
	// Timeout bounds one delivery to one notifier. Defaults to 10s.
	Timeout time.Duration
}

// NewDispatcher starts a dispatcher over notifiers. Call Close to drain
// and stop it.
func NewDispatcher(logger *logging.Logger, opts DispatcherOptions, notifiers ...Notifier) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultDeliveryTimeout
	}
	if logger == nil {
		logger = logging.Discard()
	}

	d := &Dispatcher{
		notifiers: notifiers,
		logger:    logger,
		timeout:   opts.Timeout,
		queue:     make(chan alert.Event, opts.QueueSize),
		done:      make(chan struct{}),
	}
	go d.run()
	return d
}

// Dispatch queues evt for delivery.
//
// Returns:
//   - error: ErrQueueFull when the event was dropped, ErrClosed after Close
func (d *Dispatcher) Dispatch(evt alert.Event) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return ErrClosed
	}

	select {
	case d.queue <- evt:
		return nil
	default:
		d.dropped.Add(1)
		d.logger.Warn("notification queue full, event dropped",
			"event_id", evt.ID,
			"kind", evt.Kind,
			"tag", evt.Tag,
		)
		return ErrQueueFull
	}
}

// Close stops accepting events and waits until queued events have been
// delivered or ctx expires.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dropped returns how many events were dropped because the queue was full.
func (d *Dispatcher) Dropped() uint64 { return d.dropped.Load() }

// Delivered returns successful notifier deliveries.
func (d *Dispatcher) Delivered() uint64 { return d.delivered.Load() }

// Failed returns failed notifier deliveries.
func (d *Dispatcher) Failed() uint64 { return d.failed.Load() }

func (d *Dispatcher) run() {
	defer close(d.done)
	for evt := range d.queue {
		for _, n := range d.notifiers {
			d.deliver(n, evt)
		}
	}
}

func (d *Dispatcher) deliver(n Notifier, evt alert.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			d.failed.Add(1)
			d.logger.Error("notifier panic recovered",
				"notifier", n.Name(),
				"event_id", evt.ID,
				"panic", r,
			)
		}
	}()

	if err := n.Notify(ctx, evt); err != nil {
		d.failed.Add(1)
		d.logger.Warn("notification delivery failed",
			"notifier", n.Name(),
			"event_id", evt.ID,
			"kind", evt.Kind,
			"error", err,
		)
		return
	}
	d.delivered.Add(1)
	d.logger.Debug("notification delivered",
		"notifier", n.Name(),
		"event_id", evt.ID,
		"kind", evt.Kind,
	)
}
