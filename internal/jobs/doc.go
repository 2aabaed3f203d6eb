// Package jobs tracks retrieval requests as background jobs.
//
// A Job carries the immutable request, its lifecycle state, progress
// counters, and a one-way cancellation flag. The Orchestrator owns the job
// registry, a FIFO of pending ids, and a single dispatch loop that spawns one
// execution per job. Executions pass through a capacity-one gate before they
// touch the device, so queued jobs stay cancellable while retrievals run
// strictly one at a time.
//
// Jobs live in memory only and disappear when the process exits.
package jobs
