// Package api implements the HTTP REST API and WebSocket server for
// Templegate Capacity Core.
//
// This package provides:
//   - REST endpoints for capacity state, evaluation, and availability queries
//   - CRUD endpoints for capacity rules, overrides, events, and booking policies
//   - WebSocket hub for real-time capacity state broadcasts
//   - Middleware stack (request ID, logging, recovery, CORS, body size limit)
//   - TLS support for production deployments
//
// # Architecture
//
// The API server sits between admin consoles / booking frontends and the
// capacity engine. Rule and override mutations flow through the Store,
// which triggers re-evaluation; evaluated snapshots are broadcast to
// WebSocket clients on the "capacity.state_changed" channel and published
// to the MQTT bus for display boards.
//
// # Graceful Degradation
//
// Mutations succeed even when the SQLite repository is briefly
// unavailable: the Store commits to its local cache and marks entities
// unsynced, flushing them back on scheduler ticks. API clients see this
// via the synced flag on returned entities.
package api
