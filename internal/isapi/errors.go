package isapi

import (
	"errors"

	"hikfetch/internal/services"
)

// DownloadKind classifies a failed download.
type DownloadKind int

const (
	// DownloadFailed covers transport errors, non-2xx answers, local IO
	// failures, and cancellation.
	DownloadFailed DownloadKind = iota + 1
	// DownloadDeviceError is an HTTP 500 from the device itself.
	DownloadDeviceError
	// DownloadTimeout is a transport timeout or a stalled transfer.
	DownloadTimeout
)

func (k DownloadKind) String() string {
	switch k {
	case DownloadDeviceError:
		return "device_error"
	case DownloadTimeout:
		return "timeout"
	default:
		return "error"
	}
}

// ErrCancelled marks a download aborted through its cancellation callback.
var ErrCancelled = errors.New("download cancelled")

var errStalled = errors.New("transfer stalled")

// DownloadError is the failure outcome of Session.Download.
type DownloadError struct {
	Kind       DownloadKind
	StatusCode int
	Text       string
	Err        error
}

func (e *DownloadError) Error() string {
	switch {
	case e.Kind == DownloadTimeout && e.Text == "":
		return "timeout during file download"
	case e.Text != "":
		return e.Text
	case e.Err != nil:
		return e.Err.Error()
	default:
		return "download failed"
	}
}

func (e *DownloadError) Unwrap() []error {
	errs := make([]error, 0, 2)
	switch e.Kind {
	case DownloadTimeout:
		errs = append(errs, services.ErrTimeout)
	case DownloadDeviceError:
		errs = append(errs, services.ErrDevice)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// IsCancelled reports whether err is a cancelled download.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}

func cancelledError() *DownloadError {
	return &DownloadError{Kind: DownloadFailed, Text: "Cancelled", Err: ErrCancelled}
}
