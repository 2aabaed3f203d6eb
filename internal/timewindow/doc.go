// Package timewindow models the time interval a retrieval job covers.
//
// A Window stores UTC instants plus the device's local clock offset so the
// same value can render the device-local text the search protocol expects,
// the wall-clock text used in logs, and the filesystem-safe names used for
// archived files. Windows are plain values; pagination advances a copy.
package timewindow
