// Package logging assembles structured slog loggers and formatting helpers used
// across HikFetch services.
//
// It owns the console and JSON handlers plus the tee that copies every record
// into the JSON log file, centralizes level and output plumbing, and exposes context-aware helpers so retrieval code automatically
// tags log lines with job ids, display codes, and correlation ids. The
// package also provides a no-op logger for tests and wiring code that cannot
// fail.
//
// Prefer these constructors over hand-rolled slog setup so every component
// emits records with the same shape and routing.
package logging
