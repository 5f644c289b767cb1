// Package server provides the HTTP server for the swarmdeck dashboard and API.
//
// This package is internal to swarmdeck and handles all HTTP concerns:
//
//   - Dashboard serving: Serves the embedded HTML/CSS/JS dashboard at "/"
//   - REST API: JSON endpoints for the composed snapshot, per-feed polling
//     counters, and the stream viewport sessions (including retry and
//     external-window operations)
//   - Server-Sent Events: Real-time "snapshot" and "viewport" events at
//     "/api/sse"
//   - Stream proxy: "/viewer/{agent}/{path...}" forwards to an agent's
//     stream backend and strips frame-blocking headers so the viewer can
//     be embedded
//
// The server supports graceful shutdown via context cancellation, with a
// 5-second timeout for in-flight requests.
//
// Users of the swarmdeck library should not need to interact with this
// package directly. The server is started automatically by
// [swarmdeck.Board.Start].
package server
