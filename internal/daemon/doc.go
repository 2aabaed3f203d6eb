// Package daemon coordinates the long-running HikFetch process.
//
// It ties configuration, the job orchestrator, the archive catalog, and the
// HTTP API server into a single lifecycle with flock-based locking to prevent
// multiple instances from driving the same recorder and archive. The API
// server is a chi router that validates submissions, exposes job snapshots,
// and reports status including the startup preflight results.
//
// Keep orchestration logic here: retrieval and job scheduling live in their
// own packages while the daemon focuses on startup, shutdown, and the HTTP
// surface.
package daemon
