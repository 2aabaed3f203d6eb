// Package services defines shared utilities consumed by the retrieval pipeline,
// the job orchestrator, and the daemon API.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, display codes, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper so failures can be
//     classified (unauthorized vs device vs transient) without string matching.
//
// Use these helpers when wiring new components so error handling and
// observability stay uniform across the daemon.
package services
