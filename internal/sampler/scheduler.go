package sampler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/powertag-monitor/internal/alert"
	"github.com/nerrad567/powertag-monitor/internal/infrastructure/logging"
	"github.com/nerrad567/powertag-monitor/internal/powertag"
	"github.com/nerrad567/powertag-monitor/internal/register"
	"github.com/nerrad567/powertag-monitor/internal/sink"
	"github.com/nerrad567/powertag-monitor/internal/snapshot"
)

// Session is one gateway connection. bridges/modbus.Client implements it.
type Session interface {
	register.Source
	Open() error
	Close() error
}

// Dispatcher queues notification events without blocking.
// notify.Dispatcher implements it.
type Dispatcher interface {
	Dispatch(evt alert.Event) error
}

// SchedulerOptions holds the scheduler's collaborators.
type SchedulerOptions struct {
	// Sessions holds one session per gateway, in configuration order.
	Sessions []Session

	// PowerTags are read in this order every cycle.
	PowerTags []powertag.PowerTag

	// Schema is the ordered register list read from every device.
	Schema register.Schema

	// Retry bounds each logical register read.
	Retry register.RetryPolicy

	// PollInterval is the target cycle period.
	PollInterval time.Duration

	// TextRefresh is how long decoded text stays cached.
	TextRefresh time.Duration

	// Engine evaluates rows. Required.
	Engine *alert.Engine

	// Store receives one snapshot per completed cycle. Required.
	Store *snapshot.Store

	// Sink records every row. Optional.
	Sink sink.Sink

	// Dispatcher receives alert events. Optional.
	Dispatcher Dispatcher

	// Metrics is optional; a private registry is created when nil.
	Metrics *Metrics

	// Logger is optional.
	Logger *logging.Logger
}

// Scheduler runs the sampling loop: read every register of every PowerTag,
// publish the snapshot, log the rows and raise alerts.
//
// Thread Safety:
//   - ConnectAll, RunCycle and Run must be called from one goroutine.
//     The text cache and the alert engine are owned by that goroutine.
//   - State and Close are safe from any goroutine.
type Scheduler struct {
	sessions map[string]Session
	order    []Session
	tags     []powertag.PowerTag
	schema   register.Schema
	defs     []register.Definition
	interval time.Duration

	reader     *register.Reader
	cache      *register.TextCache
	engine     *alert.Engine
	store      *snapshot.Store
	sink       sink.Sink
	dispatcher Dispatcher
	metrics    *Metrics
	logger     *logging.Logger

	hooks      []func(*snapshot.Snapshot)
	alertHooks []func(alert.Event)

	state     atomic.Int32
	connected atomic.Bool
	closeOnce sync.Once

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) bool
}

// NewScheduler validates opts and builds a Scheduler in the idle state.
//
// Returns:
//   - *Scheduler: ready for ConnectAll
//   - error: when a required collaborator is missing or a PowerTag names
//     a gateway with no session (ErrUnknownGateway)
func NewScheduler(opts SchedulerOptions) (*Scheduler, error) {
	if opts.Engine == nil {
		return nil, fmt.Errorf("alert engine is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("snapshot store is required")
	}
	if opts.Schema.Len() == 0 {
		return nil, register.ErrEmptySchema
	}
	if opts.PollInterval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive")
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics()
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Sink == nil {
		opts.Sink = sink.NewMulti()
	}

	s := &Scheduler{
		sessions:   make(map[string]Session, len(opts.Sessions)),
		order:      opts.Sessions,
		tags:       opts.PowerTags,
		schema:     opts.Schema,
		defs:       opts.Schema.Definitions(),
		interval:   opts.PollInterval,
		reader:     register.NewReader(opts.Retry, opts.Metrics),
		cache:      register.NewTextCache(opts.TextRefresh),
		engine:     opts.Engine,
		store:      opts.Store,
		sink:       opts.Sink,
		dispatcher: opts.Dispatcher,
		metrics:    opts.Metrics,
		logger:     opts.Logger,
		now:        time.Now,
		sleep:      sleepContext,
	}
	for _, sess := range opts.Sessions {
		s.sessions[sess.Name()] = sess
	}
	for _, tag := range opts.PowerTags {
		if _, ok := s.sessions[tag.Gateway]; !ok {
			return nil, fmt.Errorf("%w: %q (powertag %q)", ErrUnknownGateway, tag.Gateway, tag.Name)
		}
	}
	s.setState(StateIdle)
	return s, nil
}

// OnPublish registers fn to be called with every published snapshot.
// Hooks run on the sampling goroutine and must not block. Register hooks
// before Run.
func (s *Scheduler) OnPublish(fn func(*snapshot.Snapshot)) {
	s.hooks = append(s.hooks, fn)
}

// OnAlert registers fn to be called with every threshold alert raised by
// the engine, before it is dispatched. The same rules as OnPublish apply.
func (s *Scheduler) OnAlert(fn func(alert.Event)) {
	s.alertHooks = append(s.alertHooks, fn)
}

// State returns the current lifecycle state.
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

func (s *Scheduler) setState(st State) {
	s.state.Store(int32(st))
	s.metrics.setState(st)
}

// ConnectAll opens every gateway session in configuration order. On the
// first failure, sessions already opened are closed and the scheduler
// moves to the failed state.
func (s *Scheduler) ConnectAll(ctx context.Context) error {
	s.setState(StateConnecting)

	opened := make([]Session, 0, len(s.order))
	fail := func(err error) error {
		for _, sess := range opened {
			sess.Close() //nolint:errcheck // Best effort cleanup on error path
		}
		s.setState(StateFailed)
		return err
	}

	for _, sess := range s.order {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		if err := sess.Open(); err != nil {
			s.logger.Error("gateway connection failed", "gateway", sess.Name(), "error", err)
			return fail(fmt.Errorf("%w: %s: %w", ErrConnectFailed, sess.Name(), err))
		}
		opened = append(opened, sess)
		s.logger.Info("gateway connected", "gateway", sess.Name())
	}

	s.connected.Store(true)
	return nil
}

// Run repeats RunCycle until ctx is cancelled, pacing cycles to the poll
// interval. An overrunning cycle is followed immediately by the next one.
// Sessions are closed when Run returns.
//
// Returns:
//   - nil after cancellation
//   - ErrNotConnected if ConnectAll has not succeeded
//   - ErrCycleFailed wrapping the cause of a fatal cycle failure
func (s *Scheduler) Run(ctx context.Context) (err error) {
	if !s.connected.Load() {
		return ErrNotConnected
	}

	s.setState(StateRunning)
	s.logger.Info("sampling started",
		"powertags", len(s.tags),
		"registers", len(s.defs),
		"poll_interval", s.interval,
	)

	defer func() {
		s.Close() //nolint:errcheck // Close errors are logged inside
		if err != nil {
			s.setState(StateFailed)
			s.logger.Error("sampling stopped", "error", err)
			return
		}
		s.setState(StateStopped)
		s.logger.Info("sampling stopped")
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}

		start := s.now()
		if _, cycleErr := s.safeCycle(ctx); cycleErr != nil {
			if errors.Is(cycleErr, ErrCycleFailed) {
				return cycleErr
			}
			// Cancelled mid-cycle; the partial cycle was not published.
			return nil
		}

		elapsed := s.now().Sub(start)
		wait := s.interval - elapsed
		if wait <= 0 {
			s.metrics.overrun()
			s.logger.Debug("cycle overran poll interval",
				"elapsed", elapsed,
				"poll_interval", s.interval,
			)
			continue
		}
		if !s.sleep(ctx, wait) {
			return nil
		}
	}
}

// safeCycle runs one cycle, converting a panic into ErrCycleFailed.
func (s *Scheduler) safeCycle(ctx context.Context) (snap *snapshot.Snapshot, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", ErrCycleFailed, r)
		}
	}()
	return s.RunCycle(ctx)
}

// RunCycle performs one complete cycle.
//
// Every register of every PowerTag is read with the cycle start time as
// the row timestamp. Cancellation is checked between PowerTags; a
// cancelled cycle is abandoned without publishing and returns ctx.Err().
// Once the snapshot is published the rows are always handed to the sink
// and the alert engine.
//
// Returns:
//   - *snapshot.Snapshot: the published snapshot
//   - error: ctx.Err() when abandoned, ErrCycleFailed when the sink fails
func (s *Scheduler) RunCycle(ctx context.Context) (*snapshot.Snapshot, error) {
	if !s.connected.Load() {
		return nil, ErrNotConnected
	}

	start := s.now()
	rows := make([]powertag.Row, 0, len(s.tags))
	for _, tag := range s.tags {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows = append(rows, s.readTag(ctx, tag, start))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	snap := s.store.Publish(start, rows)
	for _, hook := range s.hooks {
		hook(snap)
	}

	// The snapshot is already visible, so finish logging it even if a
	// shutdown arrives now.
	sinkCtx := context.WithoutCancel(ctx)
	for _, row := range rows {
		if err := s.sink.Append(sinkCtx, row); err != nil {
			return snap, fmt.Errorf("%w: %w", ErrCycleFailed, err)
		}
	}

	for _, row := range rows {
		evt, ok := s.engine.Process(row)
		if !ok {
			continue
		}
		s.metrics.alertRaised(row.Tag)
		s.logger.Warn("threshold alert", "tag", row.Tag, "alert", evt.Description)
		for _, hook := range s.alertHooks {
			hook(evt)
		}
		s.dispatch(evt)
	}

	s.metrics.observeCycle(s.now().Sub(start), start)
	s.logger.Debug("cycle complete", "cycle", snap.Cycle, "duration", s.now().Sub(start))
	return snap, nil
}

// Dispatch hands a status event to the dispatcher, if any.
func (s *Scheduler) Dispatch(evt alert.Event) {
	s.dispatch(evt)
}

func (s *Scheduler) dispatch(evt alert.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Dispatch(evt); err != nil {
		s.logger.Warn("notification dropped", "kind", evt.Kind, "tag", evt.Tag, "error", err)
	}
}

// readTag assembles one row. Float values come straight from the reader;
// text values go through the cache.
func (s *Scheduler) readTag(ctx context.Context, tag powertag.PowerTag, ts time.Time) powertag.Row {
	sess := s.sessions[tag.Gateway]
	row := powertag.Row{
		Tag:       tag.Name,
		Gateway:   tag.Gateway,
		DeviceID:  tag.DeviceID,
		Timestamp: ts,
		Keys:      s.schema.Keys(),
		Values:    make([]powertag.Value, len(s.defs)),
	}

	missing := 0
	for i, def := range s.defs {
		switch def.Encoding {
		case register.EncodingASCII:
			text, ok := s.cache.Get(tag.Name, def.Key, ts, func() (string, bool) {
				return s.reader.ReadText(ctx, sess, def, tag.DeviceID)
			})
			if ok {
				row.Values[i] = powertag.Text(text)
			} else {
				row.Values[i] = powertag.Unknown()
			}
		default:
			if v, ok := s.reader.ReadFloat(ctx, sess, def, tag.DeviceID); ok {
				row.Values[i] = powertag.Float(v)
			} else {
				row.Values[i] = powertag.Null()
				missing++
			}
		}
	}

	if missing > 0 {
		s.logger.Debug("values unavailable this cycle", "tag", tag.Name, "missing", missing)
	}
	return row
}

// Close closes every gateway session. It is safe to call more than once.
func (s *Scheduler) Close() error {
	var errs []error
	s.closeOnce.Do(func() {
		for _, sess := range s.order {
			if err := sess.Close(); err != nil {
				s.logger.Warn("closing gateway session", "gateway", sess.Name(), "error", err)
				errs = append(errs, err)
			}
		}
		s.connected.Store(false)
	})
	return errors.Join(errs...)
}

// sleepContext waits for d or until ctx is done.
// Returns false if the context ended first.
func sleepContext(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
