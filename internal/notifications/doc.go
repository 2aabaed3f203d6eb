// Package notifications announces job outcomes through ntfy.
//
// NewService returns a no-op implementation when no topic is configured, so
// callers can hold a Service unconditionally. The ntfy implementation satisfies
// jobs.Notifier and is handed to the orchestrator at daemon startup.
package notifications
