// Package preflight provides readiness checks for the recorder and the
// filesystem paths HikFetch writes to.
//
// These checks run in two contexts:
//   - The daemon calls RunAll at startup and logs failures so an unreachable
//     device or read-only archive shows up before the first job.
//   - The CLI "hikfetch probe" command and the status endpoint use the
//     individual check functions to display health.
package preflight
