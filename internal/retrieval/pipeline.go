package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"hikfetch/internal/catalog"
	"hikfetch/internal/isapi"
	"hikfetch/internal/logging"
	"hikfetch/internal/services"
	"hikfetch/internal/timewindow"
)

const defaultRetryDelay = 5 * time.Second

var errCancelled = errors.New("cancelled")

// Options configures a Pipeline.
type Options struct {
	ArchiveDir string
	Timeout    time.Duration
	RetryDelay time.Duration
	Connect    Connector
	Recorder   Recorder
	Logger     *slog.Logger
}

// Pipeline runs retrievals. It holds no per-run state and is safe to share.
type Pipeline struct {
	archiveDir string
	timeout    time.Duration
	retryDelay time.Duration
	connect    Connector
	recorder   Recorder
	logger     *slog.Logger
}

// New builds a Pipeline, defaulting the connector to ConnectISAPI.
func New(opts Options) *Pipeline {
	p := &Pipeline{
		archiveDir: opts.ArchiveDir,
		timeout:    opts.Timeout,
		retryDelay: opts.RetryDelay,
		connect:    opts.Connect,
		recorder:   opts.Recorder,
		logger:     logging.NewComponentLogger(opts.Logger, "retrieval"),
	}
	if p.retryDelay <= 0 {
		p.retryDelay = defaultRetryDelay
	}
	if p.connect == nil {
		p.connect = ConnectISAPI
	}
	return p
}

// Run retrieves every segment covered by req into the archive directory.
func (p *Pipeline) Run(ctx context.Context, req Request, tracker Tracker) (result Result) {
	if tracker == nil {
		tracker = nopTracker{}
	}
	logger := logging.WithContext(ctx, p.logger)
	defer func() {
		if r := recover(); r != nil {
			logging.ErrorWithContext(logger, "retrieval panicked", "retrieval_panic",
				logging.String("panic", fmt.Sprint(r)),
				logging.String("stack", string(debug.Stack())),
			)
			result = errorResult(fmt.Sprint(r))
		}
	}()

	if err := os.MkdirAll(p.archiveDir, 0o755); err != nil {
		return errorResult(fmt.Sprintf("create archive directory: %v", err))
	}
	if tracker.Cancelled() {
		return cancelledResult()
	}

	deviceURL := strings.TrimRight(strings.TrimSpace(req.DeviceURL), "/")
	logger.Info("retrieval started",
		logging.String("device", deviceURL),
		logging.Int("channel", req.Channel),
		logging.String("media", string(req.Media)),
	)

	device, err := p.connect(ctx, isapi.Config{
		BaseURL:  deviceURL,
		Username: req.Username,
		Password: req.Password,
		Timeout:  p.timeout,
	})
	if err != nil {
		logging.ErrorWithContext(logger, "device connection failed", "device_connect_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check device url and credentials"),
		)
		if errors.Is(err, services.ErrUnauthorized) {
			return errorResult("Unauthorized: check device login and password")
		}
		return errorResult(err.Error())
	}

	offset, err := device.ClockOffset(ctx)
	if err != nil {
		return errorResult(fmt.Sprintf("read device clock: %v", err))
	}
	window, err := timewindow.Parse(req.Start, req.End, offset)
	if err != nil {
		return errorResult(fmt.Sprintf("invalid time range: %v", err))
	}
	if tracker.Cancelled() {
		return cancelledResult()
	}

	startText, endText := window.LocalText()
	logger.Info("searching recordings",
		logging.String("start", startText),
		logging.String("end", endText),
		logging.Duration("clock_offset", offset),
	)

	media := req.Media
	if media == "" {
		media = isapi.MediaVideo
	}
	segments, err := p.enumerate(ctx, logger, device, window, media.TrackID(req.Channel), tracker)
	if errors.Is(err, errCancelled) {
		return cancelledResult()
	}
	if err != nil {
		return errorResult(fmt.Sprintf("search recordings: %v", err))
	}
	logger.Info("recordings found", logging.Int("count", len(segments)))

	if len(segments) == 0 {
		return errorResult(NoRecordingsMessage)
	}

	tracker.SetTotal(len(segments))
	if tracker.Cancelled() {
		return cancelledResult()
	}

	files, err := p.downloadAll(ctx, logger, device, segments, req, media, tracker)
	if errors.Is(err, errCancelled) {
		return cancelledResult()
	}
	if err != nil {
		return errorResult(err.Error())
	}
	logger.Info("retrieval finished", logging.Int("files", files))
	return Result{Status: StatusSuccess, Files: files}
}

func (p *Pipeline) enumerate(ctx context.Context, logger *slog.Logger, device Device, window timewindow.Window, trackID int, tracker Tracker) ([]isapi.Segment, error) {
	var segments []isapi.Segment
	seen := make(map[string]struct{})
	current := window
	for page := 1; ; page++ {
		if tracker.Cancelled() {
			return nil, errCancelled
		}
		resp, err := device.SearchSegments(ctx, isapi.SearchRequest{
			Window:     current,
			MaxResults: PageSize,
			TrackID:    trackID,
		})
		if err != nil {
			return nil, err
		}
		if !resp.OK() {
			message := isapi.ErrorMessage(resp)
			logging.ErrorWithContext(logger, "search request rejected", "search_failed",
				logging.Int("status_code", resp.StatusCode),
				logging.String("error_message", message),
			)
			return nil, services.Wrap(services.ErrDevice, "", "", message, nil)
		}
		found, err := isapi.ParseSegments(resp.Body, window.LocalOffset)
		if err != nil {
			return nil, err
		}
		for _, segment := range found {
			if _, dup := seen[segment.PlaybackURI]; dup {
				continue
			}
			seen[segment.PlaybackURI] = struct{}{}
			segments = append(segments, segment)
		}
		logger.Debug("search page", logging.Int("page", page), logging.Int("matches", len(found)))

		if len(found) < PageSize {
			return segments, nil
		}
		next := found[len(found)-1].Window.End
		if !next.After(current.Start) {
			logging.WarnWithContext(logger, "search page did not advance; stopping enumeration", "search_stalled",
				logging.Time("window_start", current.Start),
				logging.Time("last_segment_end", next),
				logging.String(logging.FieldImpact, "recordings after this point may be missing"),
			)
			return segments, nil
		}
		current = current.WithStart(next)
	}
}

func (p *Pipeline) downloadAll(ctx context.Context, logger *slog.Logger, device Device, segments []isapi.Segment, req Request, media isapi.MediaKind, tracker Tracker) (int, error) {
	for idx, segment := range segments {
		if tracker.Cancelled() {
			return idx, errCancelled
		}
		dest := filepath.Join(p.archiveDir, segment.FileName(media))
		tracker.SetCurrentFile(dest)
		segLogger := logger.With(logging.String(logging.FieldSegment, fmt.Sprintf("%d/%d", idx+1, len(segments))))

		for attempt := 1; ; attempt++ {
			segLogger.Info("downloading", logging.String("file", dest), logging.Int("attempt", attempt))
			err := device.Download(ctx, segment.PlaybackURI, dest, tracker.Cancelled)
			if err == nil {
				break
			}
			if isapi.IsCancelled(err) || tracker.Cancelled() {
				return idx, errCancelled
			}
			p.logDownloadFailure(segLogger, dest, attempt, err)
			if !sleep(ctx, p.retryDelay) {
				return idx, fmt.Errorf("retrieval interrupted: %w", ctx.Err())
			}
			if tracker.Cancelled() {
				return idx, errCancelled
			}
		}

		tracker.SetProgress(idx + 1)
		p.record(ctx, segLogger, dest, segment, req, media)
	}
	return len(segments), nil
}

func (p *Pipeline) logDownloadFailure(logger *slog.Logger, dest string, attempt int, err error) {
	var dlErr *isapi.DownloadError
	kind := isapi.DownloadFailed
	if errors.As(err, &dlErr) {
		kind = dlErr.Kind
	}
	message := err.Error()
	if kind == isapi.DownloadTimeout {
		message = "timeout during file download"
	}
	logging.WarnWithContext(logger, "download failed; retrying", "download_retry",
		logging.String("file", dest),
		logging.Int("attempt", attempt),
		logging.String("failure_kind", kind.String()),
		logging.String("error_message", message),
		logging.Duration("retry_delay", p.retryDelay),
		logging.String(logging.FieldImpact, "segment will be retried until it succeeds or the job is cancelled"),
	)
}

func (p *Pipeline) record(ctx context.Context, logger *slog.Logger, dest string, segment isapi.Segment, req Request, media isapi.MediaKind) {
	if p.recorder == nil {
		return
	}
	var size int64
	if info, err := os.Stat(dest); err == nil {
		size = info.Size()
	}
	jobID, _ := services.JobIDFromContext(ctx)
	code, _ := services.DisplayCodeFromContext(ctx)
	entry := catalog.Entry{
		JobID:       jobID,
		DisplayCode: code,
		Path:        dest,
		PlaybackURI: segment.PlaybackURI,
		Channel:     req.Channel,
		Media:       string(media),
		Start:       segment.Window.Start,
		End:         segment.Window.End,
		SizeBytes:   size,
	}
	if err := p.recorder.Record(ctx, entry); err != nil {
		logging.WarnWithContext(logger, "catalog update failed", "catalog_record_failed",
			logging.String("file", dest),
			logging.Error(err),
			logging.String(logging.FieldImpact, "file is archived but missing from the catalog"),
		)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func errorResult(message string) Result {
	return Result{Status: StatusError, Message: message}
}

func cancelledResult() Result {
	return Result{Status: StatusCancelled}
}
