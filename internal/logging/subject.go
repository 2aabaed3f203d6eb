package logging

import "strings"

// FormatSubject builds the job subject shown in console output, preferring the
// short display code over the full job id.
func FormatSubject(displayCode, jobID string) string {
	if code := strings.TrimSpace(displayCode); code != "" {
		return "Job " + strings.ToUpper(code)
	}
	id := strings.TrimSpace(jobID)
	if id == "" {
		return ""
	}
	if len(id) > 8 {
		id = id[:8]
	}
	return "Job " + id
}
