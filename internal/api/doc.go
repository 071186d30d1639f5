// Package api implements the read-only HTTP query surface and WebSocket
// push for the PowerTag monitor.
//
// Endpoints:
//   - GET /api/powertags: current rows keyed by device name
//   - GET /api/v1/health: liveness plus sampler state and cycle number
//   - GET /api/v1/powertags: current snapshot with cycle metadata
//   - GET /api/v1/powertags/{tag}: one device's current row
//   - GET /api/v1/powertags/{tag}/history: stored rows (SQLite only)
//   - GET /api/v1/alerts: logged alerts (SQLite only)
//   - GET /api/v1/ws: WebSocket, pushes snapshot.published after every cycle
//   - GET /metrics: Prometheus exposition
//
// Handlers read the snapshot store's atomic pointer and never block the
// sampler. There is no authentication; bind api.host to a trusted network.
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api
