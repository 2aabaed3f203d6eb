// Package isapi speaks the XML-over-HTTP protocol exposed by network video
// recorders and IP cameras.
//
// A Client negotiates the authentication scheme the device accepts (Basic is
// probed before Digest) and hands out a Session bound to that scheme. Sessions
// read the device clock offset, issue paginated recording searches, and stream
// recordings to disk while polling a cancellation callback between chunks.
//
// Failures are returned as values: search responses come back raw so callers
// decide how to treat device-side errors, and downloads report a
// *DownloadError whose Kind separates timeouts and device faults from generic
// errors. Nothing in this package retries; that policy belongs to callers.
package isapi
