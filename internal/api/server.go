package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/powertag-monitor/internal/infrastructure/config"
	"github.com/nerrad567/powertag-monitor/internal/infrastructure/logging"
	"github.com/nerrad567/powertag-monitor/internal/sampler"
	"github.com/nerrad567/powertag-monitor/internal/sink"
	"github.com/nerrad567/powertag-monitor/internal/snapshot"
)

const (
	// gracefulShutdownTimeout bounds how long Close waits for in-flight
	// requests.
	gracefulShutdownTimeout = 10 * time.Second

	healthPath = "/api/v1/health"
)

// SnapshotSource returns the latest published snapshot, or nil before the
// first cycle. snapshot.Store implements it.
type SnapshotSource interface {
	Latest() *snapshot.Snapshot
}

// StateSource reports the sampler lifecycle state. sampler.Scheduler
// implements it.
type StateSource interface {
	State() sampler.State
}

// HistorySource serves stored rows and alerts. sink.SQLiteSink implements it.
type HistorySource interface {
	History(ctx context.Context, tag string, limit int) ([]sink.HistoryEntry, error)
	RecentAlerts(ctx context.Context, tag string, limit int) ([]sink.AlertRecord, error)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config    config.APIConfig
	WS        config.WebSocketConfig
	Logger    *logging.Logger
	Snapshots SnapshotSource
	// State is optional; health reports "unknown" without it.
	State StateSource
	// History is optional; history endpoints return 404 history_disabled
	// without it.
	History HistorySource
	// Metrics is optional; /metrics is not routed without it.
	Metrics http.Handler
	// Dashboard is optional; it is mounted under /dashboard/.
	Dashboard http.Handler
	Version   string
}

// Server is the read-only HTTP and WebSocket surface over the latest
// snapshot, the history database and the sampler state.
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	logger    *logging.Logger
	snapshots SnapshotSource
	state     StateSource
	history   HistorySource
	metrics   http.Handler
	dashboard http.Handler
	version   string
	startTime time.Time
	server    *http.Server
	listener  net.Listener
	hub       *Hub
	cancel    context.CancelFunc // stops the hub
}

// New validates deps and builds a server. Nothing listens until Start,
// but the hub exists already, so PublishSnapshot and PublishAlert can be
// registered with the scheduler first.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, errors.New("api: logger is required")
	}
	if deps.Snapshots == nil {
		return nil, errors.New("api: snapshot source is required")
	}
	if deps.WS.Path == "" {
		deps.WS.Path = defaultWSPath
	}

	return &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		logger:    deps.Logger,
		snapshots: deps.Snapshots,
		state:     deps.State,
		history:   deps.History,
		metrics:   deps.Metrics,
		dashboard: deps.Dashboard,
		version:   deps.Version,
		startTime: time.Now(),
		hub:       NewHub(deps.WS, deps.Logger),
	}, nil
}

// Handler returns the routed HTTP handler without starting a listener.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start binds the listen address, starts the WebSocket hub and serves in
// the background until Close.
//
// Parameters:
//   - ctx: Parent of the hub's context; the listener outlives it until Close
//
// Returns:
//   - error: The address could not be bound
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	hubCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.listener = ln
	go s.hub.Run(hubCtx)

	read := time.Duration(s.cfg.Timeouts.Read) * time.Second
	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       read,
		ReadHeaderTimeout: read,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	s.logger.Info("API server listening", "address", ln.Addr().String())
	go func() {
		if err := s.server.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server stopped", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound address, or "" before Start. With port 0 this
// is where the kernel-chosen port can be read.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close disconnects WebSocket clients and shuts the listener down,
// giving in-flight requests gracefulShutdownTimeout to finish.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}
	s.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck requests /api/v1/health from the running listener.
func (s *Server) HealthCheck(ctx context.Context) error {
	if s.listener == nil {
		return errors.New("api server not started")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+s.Addr()+healthPath, nil)
	if err != nil {
		return fmt.Errorf("api health check: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("api health check: %w", err)
	}
	resp.Body.Close() //nolint:errcheck // Status is all that matters

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("api health check: status %d", resp.StatusCode)
	}
	return nil
}
