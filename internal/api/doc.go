// Package api defines the wire-format types of the daemon HTTP API and the
// client the CLI uses to talk to it.
//
// # Key Types
//
// SubmitRequest: the retrieval form (dates, times, channel, media) accepted by
// POST /api/jobs. Validate turns it into job parameters.
//
// Job: transport representation of a job snapshot with progress, outcome, and
// timestamps.
//
// DaemonStatus: dispatch state, job counts, catalog totals, and the startup
// preflight results.
//
// ArchiveEntry: one row of the archive catalog.
//
// # Converters
//
// FromSnapshot: jobs.Snapshot -> Job. FromCatalogEntry: catalog.Entry ->
// ArchiveEntry.
//
// # Design Notes
//
// DTOs use snake_case JSON tags to match the submission form fields. Job
// states are exposed as lowercase strings. Timestamps use RFC3339 with
// milliseconds. Errors are returned as {"error": "..."} with a matching
// HTTP status; the Client surfaces them as *StatusError.
package api
