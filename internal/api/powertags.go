package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/powertag-monitor/internal/powertag"
	"github.com/nerrad567/powertag-monitor/internal/sink"
	"github.com/nerrad567/powertag-monitor/internal/snapshot"
)

const (
	// maxQueryParamLen limits path and query parameter length.
	maxQueryParamLen = 100

	maxHistoryLimit = 200
)

// snapshotView is the /api/v1/powertags response body.
type snapshotView struct {
	Cycle     uint64         `json:"cycle"`
	Timestamp *time.Time     `json:"timestamp"`
	Count     int            `json:"count"`
	Rows      []powertag.Row `json:"rows"`
}

// newSnapshotView lists rows in configuration order. A nil snapshot gives
// an empty view.
func newSnapshotView(snap *snapshot.Snapshot) snapshotView {
	view := snapshotView{Rows: []powertag.Row{}}
	if snap == nil {
		return view
	}
	ts := snap.Timestamp
	view.Cycle = snap.Cycle
	view.Timestamp = &ts
	for _, tag := range snap.Order {
		if row, ok := snap.Rows[tag]; ok {
			view.Rows = append(view.Rows, row)
		}
	}
	view.Count = len(view.Rows)
	return view
}

// handleLegacySnapshot returns every current row keyed by device name.
func (s *Server) handleLegacySnapshot(w http.ResponseWriter, _ *http.Request) {
	rows := map[string]powertag.Row{}
	if snap := s.snapshots.Latest(); snap != nil {
		rows = snap.Rows
	}
	writeJSON(w, http.StatusOK, rows)
}

// handleListPowerTags returns the current snapshot with its metadata.
func (s *Server) handleListPowerTags(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, newSnapshotView(s.snapshots.Latest()))
}

// handleGetPowerTag returns one device's current row.
func (s *Server) handleGetPowerTag(w http.ResponseWriter, r *http.Request) {
	tag := chi.URLParam(r, "tag")
	if tag == "" || len(tag) > maxQueryParamLen {
		writeError(w, r, ErrCodeBadRequest, "invalid powertag name")
		return
	}

	row, ok := s.snapshots.Latest().Get(tag)
	if !ok {
		writeError(w, r, ErrCodeNotFound, "powertag not found")
		return
	}
	writeJSON(w, http.StatusOK, row)
}

// handleGetPowerTagHistory returns stored rows for a device, newest first.
//
// Query parameters:
//   - limit: maximum entries (default 50, max 200)
func (s *Server) handleGetPowerTagHistory(w http.ResponseWriter, r *http.Request) {
	tag := chi.URLParam(r, "tag")
	if tag == "" || len(tag) > maxQueryParamLen {
		writeError(w, r, ErrCodeBadRequest, "invalid powertag name")
		return
	}
	if s.history == nil {
		writeError(w, r, ErrCodeHistoryDisabled, "history storage is not enabled")
		return
	}

	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeError(w, r, ErrCodeBadRequest, err.Error())
		return
	}

	entries, err := s.history.History(r.Context(), tag, limit)
	if err != nil {
		s.logger.Error("history query failed", "tag", tag, "error", err)
		writeError(w, r, ErrCodeInternal, "failed to load history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"tag":     tag,
		"history": entries,
		"count":   len(entries),
	})
}

// handleListAlerts returns logged alerts, newest first.
//
// Query parameters:
//   - tag: only alerts for this device
//   - limit: maximum entries (default 50, max 200)
func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, r, ErrCodeHistoryDisabled, "history storage is not enabled")
		return
	}

	tag := r.URL.Query().Get("tag")
	if len(tag) > maxQueryParamLen {
		writeError(w, r, ErrCodeBadRequest, "tag exceeds maximum length")
		return
	}
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeError(w, r, ErrCodeBadRequest, err.Error())
		return
	}

	alerts, err := s.history.RecentAlerts(r.Context(), tag, limit)
	if err != nil {
		s.logger.Error("alert query failed", "error", err)
		writeError(w, r, ErrCodeInternal, "failed to load alerts")
		return
	}
	if alerts == nil {
		alerts = []sink.AlertRecord{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

// parseLimit parses the limit query parameter. Empty means the store's
// default.
func parseLimit(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return 0, fmt.Errorf("limit must be a positive integer")
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return limit, nil
}
