// Package retrieval pulls every recording in a time window from a device into
// the archive directory.
//
// Pipeline.Run negotiates authentication, folds the device clock offset into
// the requested window, pages through the device's search results, and then
// downloads each segment in order. Downloads are retried with a fixed delay
// until they succeed or the job is cancelled; there is no attempt cap.
// Cancellation is cooperative: the Tracker is polled between pages, between
// segments, between retries, and before every streamed chunk.
//
// Run never returns an error or lets a panic escape. Every outcome, including
// unexpected faults, is reported through Result.
package retrieval
