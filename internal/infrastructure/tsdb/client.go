package tsdb

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/powertag-monitor/internal/infrastructure/config"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultWriteTimeout   = 5 * time.Second

	defaultBatchSize     = 500
	defaultFlushInterval = 10

	// pendingBatches is how many full batches are held while
	// VictoriaMetrics is unreachable. Older lines are dropped beyond that.
	pendingBatches = 10
)

// Client writes PowerTag readings to VictoriaMetrics using InfluxDB line
// protocol.
//
// WriteReading only queues a line. A background loop POSTs the queue to
// /write when a batch fills up or the flush interval passes, so the
// sampler never waits on the network. Lines from a failed post are kept
// for the next attempt unless VictoriaMetrics rejected them, up to
// pendingBatches full batches.
//
// Thread Safety: All methods are safe for concurrent use.
type Client struct {
	url        string
	httpClient *http.Client
	closed     atomic.Bool

	mu         sync.Mutex
	pending    []string
	batchSize  int
	maxPending int
	dropped    atomic.Uint64

	// postMu keeps posts in order when Flush is called directly.
	postMu sync.Mutex

	kick chan struct{}
	stop chan struct{}
	wg   sync.WaitGroup

	errMu   sync.RWMutex
	onError func(err error)
}

// Connect verifies VictoriaMetrics is reachable and starts the flush loop.
//
// Parameters:
//   - ctx: Context for the initial health check
//   - cfg: tsdb section of the configuration
//
// Returns:
//   - *Client: Connected client ready for use
//   - error: ErrDisabled, or ErrConnectionFailed when /health fails
func Connect(ctx context.Context, cfg config.TSDBConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	flushInterval := cfg.FlushInterval
	if flushInterval <= 0 {
		flushInterval = defaultFlushInterval
	}

	c := &Client{
		url:        strings.TrimRight(cfg.URL, "/"),
		httpClient: &http.Client{Timeout: defaultWriteTimeout},
		pending:    make([]string, 0, batchSize),
		batchSize:  batchSize,
		maxPending: batchSize * pendingBatches,
		kick:       make(chan struct{}, 1),
		stop:       make(chan struct{}),
	}

	healthCtx, cancel := context.WithTimeout(ctx, defaultConnectTimeout)
	defer cancel()

	if err := c.HealthCheck(healthCtx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	c.wg.Add(1)
	go c.flushLoop(time.Duration(flushInterval) * time.Second)

	return c, nil
}

func (c *Client) flushLoop(interval time.Duration) {
	defer c.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Flush()
		case <-c.kick:
			c.Flush()
		case <-c.stop:
			return
		}
	}
}

// Close stops the flush loop and makes one last attempt to send what is
// queued. Flush errors are delivered via the onError callback.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	close(c.stop)
	c.wg.Wait()

	c.Flush()
	return nil
}

// HealthCheck issues GET /health.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+"/health", nil)
	if err != nil {
		return fmt.Errorf("tsdb health check: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("tsdb health check: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body) //nolint:errcheck // Drain for connection reuse

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("tsdb health check: status %d", resp.StatusCode)
	}
	return nil
}

// IsConnected reports whether the client still accepts writes.
func (c *Client) IsConnected() bool {
	return !c.closed.Load()
}

// SetOnError sets a callback for async flush failures.
func (c *Client) SetOnError(callback func(err error)) {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	c.onError = callback
}

// Pending returns the number of queued lines not yet accepted.
func (c *Client) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Dropped returns the number of lines discarded, either because the queue
// overflowed or because VictoriaMetrics rejected them.
func (c *Client) Dropped() uint64 {
	return c.dropped.Load()
}

// addLine queues one line and wakes the flush loop once a batch is full.
func (c *Client) addLine(line string) {
	if c.closed.Load() {
		return
	}

	c.mu.Lock()
	c.pending = append(c.pending, line)
	c.trimLocked()
	full := len(c.pending) >= c.batchSize
	c.mu.Unlock()

	if full {
		select {
		case c.kick <- struct{}{}:
		default:
		}
	}
}

// trimLocked drops the oldest lines beyond maxPending.
func (c *Client) trimLocked() {
	if over := len(c.pending) - c.maxPending; over > 0 {
		c.pending = append(c.pending[:0:0], c.pending[over:]...)
		c.dropped.Add(uint64(over)) //nolint:gosec // over > 0
	}
}

// Flush sends everything queued in one POST. Lines are re-queued when the
// post fails for a reason other than VictoriaMetrics rejecting them.
func (c *Client) Flush() {
	c.postMu.Lock()
	defer c.postMu.Unlock()

	c.mu.Lock()
	if len(c.pending) == 0 {
		c.mu.Unlock()
		return
	}
	lines := c.pending
	c.pending = make([]string, 0, c.batchSize)
	c.mu.Unlock()

	retry, err := c.post(lines)
	if err == nil {
		return
	}

	if retry {
		c.mu.Lock()
		c.pending = append(lines, c.pending...)
		c.trimLocked()
		c.mu.Unlock()
	} else {
		c.dropped.Add(uint64(len(lines)))
	}
	c.reportError(err)
}

// post sends lines to /write. retry is false when the server answered with
// a client error, since resending the same lines cannot succeed.
func (c *Client) post(lines []string) (retry bool, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultWriteTimeout)
	defer cancel()

	body := strings.Join(lines, "\n")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/write", bytes.NewBufferString(body))
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	req.Header.Set("Content-Type", "text/plain")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return true, fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body) //nolint:errcheck // Drain for connection reuse

	switch {
	case resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusOK:
		return false, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return false, fmt.Errorf("%w: HTTP %d (%d lines dropped)", ErrRejected, resp.StatusCode, len(lines))
	default:
		return true, fmt.Errorf("%w: HTTP %d (%d lines kept)", ErrWriteFailed, resp.StatusCode, len(lines))
	}
}

func (c *Client) reportError(err error) {
	c.errMu.RLock()
	callback := c.onError
	c.errMu.RUnlock()

	if callback != nil {
		callback(err)
	}
}
