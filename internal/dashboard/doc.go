// Package dashboard serves a small live table of PowerTag readings.
//
// The page is a single HTML file with a script and a stylesheet, embedded
// with go:embed. It loads /api/v1/powertags once, then follows the
// snapshot.published WebSocket channel and falls back to polling while the
// socket is down.
//
// The API server mounts the handler under /dashboard/ when
// api.dashboard.enabled is set.
package dashboard
