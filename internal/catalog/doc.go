// Package catalog records every archived recording in a SQLite database.
//
// Jobs themselves live only in memory; the catalog is the durable answer to
// "which files did we pull, from which playback URI, covering which time".
// Schema changes ship as numbered scripts under migrations/ and are tracked
// with PRAGMA user_version.
package catalog
