package retrieval

import (
	"context"
	"time"

	"hikfetch/internal/catalog"
	"hikfetch/internal/isapi"
)

// PageSize is both the maxResults value sent with each search and the
// threshold below which a page is treated as the last one.
const PageSize = 50

// NoRecordingsMessage is reported when a window holds no segments.
const NoRecordingsMessage = "No recordings found for the specified time range"

// Status is the outcome of a pipeline run.
type Status string

const (
	StatusSuccess   Status = "success"
	StatusError     Status = "error"
	StatusCancelled Status = "cancelled"
)

// Result summarizes a pipeline run.
type Result struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Files   int    `json:"files,omitempty"`
}

// Request describes what to retrieve. Start and End are device-local
// "YYYY-MM-DD HH:MM[:SS]" text.
type Request struct {
	DeviceURL string
	Username  string
	Password  string
	Start     string
	End       string
	Channel   int
	Media     isapi.MediaKind
}

// Tracker receives progress and answers cancellation polls.
type Tracker interface {
	Cancelled() bool
	SetTotal(total int)
	SetProgress(done int)
	SetCurrentFile(path string)
}

// Device is the subset of an isapi.Session the pipeline drives.
type Device interface {
	ClockOffset(ctx context.Context) (time.Duration, error)
	SearchSegments(ctx context.Context, req isapi.SearchRequest) (isapi.Response, error)
	Download(ctx context.Context, playbackURI, destPath string, cancelled func() bool) error
}

// Connector negotiates authentication and returns a ready Device.
type Connector func(ctx context.Context, cfg isapi.Config) (Device, error)

// Recorder persists archived files. Failures are logged and ignored.
type Recorder interface {
	Record(ctx context.Context, entry catalog.Entry) error
}

// ConnectISAPI is the production Connector.
func ConnectISAPI(ctx context.Context, cfg isapi.Config) (Device, error) {
	session, err := isapi.Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return session, nil
}

type nopTracker struct{}

func (nopTracker) Cancelled() bool       { return false }
func (nopTracker) SetTotal(int)          {}
func (nopTracker) SetProgress(int)       {}
func (nopTracker) SetCurrentFile(string) {}
