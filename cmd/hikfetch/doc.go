// Command hikfetch runs the retrieval daemon and talks to it over HTTP.
//
// "hikfetch serve" starts the daemon. The remaining commands (submit, jobs,
// archive, status) are thin clients of its API, while probe and config work
// locally against the configuration file.
package main
