package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/powertag-monitor/internal/sampler"
)

// defaultWSPath is used when websocket.path is not configured.
const defaultWSPath = "/api/v1/ws"

// dashboardPath is where the live readings page is mounted.
const dashboardPath = "/dashboard"

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, ErrCodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, ErrCodeMethodNotAllow, "method not allowed")
	})

	// Flat snapshot map kept for existing dashboards.
	r.Get("/api/powertags", s.handleLegacySnapshot)

	r.Get("/api/v1/health", s.handleHealth)
	r.Get("/api/v1/powertags", s.handleListPowerTags)
	r.Get("/api/v1/powertags/{tag}", s.handleGetPowerTag)
	r.Get("/api/v1/powertags/{tag}/history", s.handleGetPowerTagHistory)
	r.Get("/api/v1/alerts", s.handleListAlerts)

	r.Get(s.wsCfg.Path, s.handleWebSocket)

	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	if s.dashboard != nil {
		toDashboard := http.RedirectHandler(dashboardPath+"/", http.StatusFound)
		r.Method(http.MethodGet, "/", toDashboard)
		r.Method(http.MethodGet, dashboardPath, toDashboard)
		r.Method(http.MethodGet, dashboardPath+"/*", http.StripPrefix(dashboardPath, s.dashboard))
	}

	return r
}

// handleHealth returns the server and sampler health.
//
// The response is 503 once the sampler has failed so orchestration
// restarts the process.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	state := "unknown"
	status := "ok"
	code := http.StatusOK
	if s.state != nil {
		st := s.state.State()
		state = st.String()
		if st == sampler.StateFailed {
			status = "failed"
			code = http.StatusServiceUnavailable
		}
	}

	resp := map[string]any{
		"status":            status,
		"version":           s.version,
		"sampler":           state,
		"cycle":             uint64(0),
		"uptime_seconds":    int64(time.Since(s.startTime).Seconds()),
		"websocket_clients": s.hub.ClientCount(),
	}
	if snap := s.snapshots.Latest(); snap != nil {
		resp["cycle"] = snap.Cycle
		resp["last_cycle_at"] = snap.Timestamp.UTC().Format(time.RFC3339)
	}

	writeJSON(w, code, resp)
}
