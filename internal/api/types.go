package api

import (
	"fmt"
	"strings"
	"time"

	"hikfetch/internal/catalog"
	"hikfetch/internal/isapi"
	"hikfetch/internal/jobs"
	"hikfetch/internal/preflight"
	"hikfetch/internal/services"
	"hikfetch/internal/timewindow"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// SubmitRequest is the retrieval form accepted by POST /api/jobs. Dates and
// times are device-local wall clock text ("2024-01-01", "10:00" or "10:00:00").
type SubmitRequest struct {
	StartDate string `json:"start_date"`
	StartTime string `json:"start_time"`
	EndDate   string `json:"end_date"`
	EndTime   string `json:"end_time"`
	Channel   int    `json:"camera_channel,omitempty"`
	Media     string `json:"media,omitempty"`
}

// Params validates the form and converts it to job parameters. Device
// address and credentials are left for the caller to fill. A zero channel
// falls back to defaultChannel.
func (r SubmitRequest) Params(defaultChannel int) (jobs.Params, error) {
	start := joinDateTime(r.StartDate, r.StartTime)
	end := joinDateTime(r.EndDate, r.EndTime)
	if start == "" || end == "" {
		return jobs.Params{}, services.Wrap(services.ErrValidation, "api", "submit", "start and end date/time are required", nil)
	}
	if _, err := timewindow.Parse(start, end, 0); err != nil {
		return jobs.Params{}, services.Wrap(services.ErrValidation, "api", "submit", "invalid time range", err)
	}

	channel := r.Channel
	if channel == 0 {
		channel = defaultChannel
	}
	if channel < 1 {
		return jobs.Params{}, services.Wrap(services.ErrValidation, "api", "submit", fmt.Sprintf("camera_channel must be at least 1, got %d", r.Channel), nil)
	}

	media, err := isapi.ParseMediaKind(r.Media)
	if err != nil {
		return jobs.Params{}, services.Wrap(services.ErrValidation, "api", "submit", "invalid media", err)
	}

	return jobs.Params{
		Start:   start,
		End:     end,
		Channel: channel,
		Media:   media,
	}, nil
}

func joinDateTime(date, clock string) string {
	date = strings.TrimSpace(date)
	clock = strings.TrimSpace(clock)
	if date == "" || clock == "" {
		return ""
	}
	return date + " " + clock
}

// SubmitResponse acknowledges an accepted job.
type SubmitResponse struct {
	JobID       string `json:"job_id"`
	DisplayCode string `json:"display_code"`
	Job         Job    `json:"job"`
}

// JobResult is the summary of a completed job.
type JobResult struct {
	Status string `json:"status"`
	Files  int    `json:"files"`
}

// Job describes a job in a transport-friendly format.
type Job struct {
	ID              string     `json:"id"`
	DisplayCode     string     `json:"display_code"`
	State           string     `json:"state"`
	Start           string     `json:"start"`
	End             string     `json:"end"`
	Channel         int        `json:"channel"`
	Media           string     `json:"media"`
	DeviceURL       string     `json:"device_url,omitempty"`
	Progress        int        `json:"progress"`
	Total           int        `json:"total"`
	CurrentFile     string     `json:"current_file,omitempty"`
	Error           string     `json:"error,omitempty"`
	Result          *JobResult `json:"result,omitempty"`
	CancelRequested bool       `json:"cancel_requested"`
	CreatedAt       string     `json:"created_at,omitempty"`
	StartedAt       string     `json:"started_at,omitempty"`
	CompletedAt     string     `json:"completed_at,omitempty"`
}

// Percent reports progress as a percentage of the known total.
func (j Job) Percent() float64 {
	if j.Total <= 0 {
		return 0
	}
	return float64(j.Progress) * 100 / float64(j.Total)
}

// Terminal reports whether the job has finished.
func (j Job) Terminal() bool {
	return jobs.State(j.State).Terminal()
}

// FromSnapshot converts a job snapshot into its transport form.
func FromSnapshot(snap jobs.Snapshot) Job {
	job := Job{
		ID:              snap.ID,
		DisplayCode:     snap.DisplayCode,
		State:           string(snap.State),
		Start:           snap.Params.Start,
		End:             snap.Params.End,
		Channel:         snap.Params.Channel,
		Media:           string(snap.Params.Media),
		DeviceURL:       snap.Params.DeviceURL,
		Progress:        snap.Progress,
		Total:           snap.Total,
		CurrentFile:     snap.CurrentFile,
		Error:           snap.Error,
		CancelRequested: snap.CancelRequested,
		CreatedAt:       formatTime(snap.CreatedAt),
	}
	if snap.StartedAt != nil {
		job.StartedAt = formatTime(*snap.StartedAt)
	}
	if snap.CompletedAt != nil {
		job.CompletedAt = formatTime(*snap.CompletedAt)
	}
	if snap.Result != nil {
		job.Result = &JobResult{Status: snap.Result.Status, Files: snap.Result.Files}
	}
	return job
}

// FromSnapshots converts a slice of snapshots, preserving order.
func FromSnapshots(snaps []jobs.Snapshot) []Job {
	out := make([]Job, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, FromSnapshot(snap))
	}
	return out
}

// JobListResponse wraps a collection of jobs.
type JobListResponse struct {
	Jobs []Job `json:"jobs"`
}

// CancelResponse reports the job after a cancellation request.
type CancelResponse struct {
	Status string `json:"status"`
	Job    Job    `json:"job"`
}

// CheckResult mirrors a preflight check outcome.
type CheckResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// FromPreflight converts preflight results.
func FromPreflight(results []preflight.Result) []CheckResult {
	out := make([]CheckResult, 0, len(results))
	for _, r := range results {
		out = append(out, CheckResult{Name: r.Name, Passed: r.Passed, Detail: r.Detail})
	}
	return out
}

// CatalogStatus summarizes the archive catalog.
type CatalogStatus struct {
	Path  string `json:"path"`
	Files int    `json:"files"`
	Bytes int64  `json:"bytes"`
	Error string `json:"error,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool           `json:"running"`
	PID          int            `json:"pid"`
	LockFilePath string         `json:"lock_file_path"`
	ArchiveDir   string         `json:"archive_dir"`
	DeviceURL    string         `json:"device_url"`
	JobCounts    map[string]int `json:"job_counts"`
	Catalog      *CatalogStatus `json:"catalog,omitempty"`
	Preflight    []CheckResult  `json:"preflight"`
}

// ArchiveEntry describes one archived file.
type ArchiveEntry struct {
	JobID        string `json:"job_id"`
	DisplayCode  string `json:"display_code,omitempty"`
	Path         string `json:"path"`
	PlaybackURI  string `json:"playback_uri"`
	Channel      int    `json:"channel"`
	Media        string `json:"media"`
	Start        string `json:"start"`
	End          string `json:"end"`
	SizeBytes    int64  `json:"size_bytes"`
	DownloadedAt string `json:"downloaded_at"`
}

// FromCatalogEntry converts a catalog row into its transport form.
func FromCatalogEntry(entry catalog.Entry) ArchiveEntry {
	return ArchiveEntry{
		JobID:        entry.JobID,
		DisplayCode:  entry.DisplayCode,
		Path:         entry.Path,
		PlaybackURI:  entry.PlaybackURI,
		Channel:      entry.Channel,
		Media:        entry.Media,
		Start:        formatTime(entry.Start),
		End:          formatTime(entry.End),
		SizeBytes:    entry.SizeBytes,
		DownloadedAt: formatTime(entry.DownloadedAt),
	}
}

// ArchiveListResponse wraps archived files.
type ArchiveListResponse struct {
	Files []ArchiveEntry `json:"files"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error string `json:"error"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
