package isapi

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"hikfetch/internal/services"
)

const chunkSize = 8192

// Session issues requests with a negotiated authentication scheme.
type Session struct {
	baseURL string
	scheme  AuthScheme
	timeout time.Duration
	http    *http.Client
}

// Scheme returns the authentication scheme bound to the session.
func (s *Session) Scheme() AuthScheme {
	return s.scheme
}

// ClockOffset reads the device time zone and returns local time minus UTC.
func (s *Session) ClockOffset(ctx context.Context) (time.Duration, error) {
	resp, err := s.do(ctx, http.MethodGet, timePath, nil)
	if err != nil {
		return 0, services.Wrap(services.ErrTransient, "isapi", "read device time", "", err)
	}
	if !resp.OK() {
		return 0, services.Wrap(services.ErrDevice, "isapi", "read device time", ErrorMessage(resp), nil)
	}
	var doc timeDocument
	if err := xml.Unmarshal(StripNamespaces(resp.Body), &doc); err != nil {
		return 0, services.Wrap(services.ErrDevice, "isapi", "read device time", "decode response", err)
	}
	offset, err := ParseTimeZone(doc.TimeZone)
	if err != nil {
		return 0, services.Wrap(services.ErrDevice, "isapi", "read device time", "", err)
	}
	return offset, nil
}

// SearchSegments posts one search page. Device-side failures come back as a
// non-OK Response; only transport failures are errors.
func (s *Session) SearchSegments(ctx context.Context, req SearchRequest) (Response, error) {
	body, err := BuildSearchRequest(req)
	if err != nil {
		return Response{}, err
	}
	resp, err := s.do(ctx, http.MethodPost, searchPath, body)
	if err != nil {
		return Response{}, services.Wrap(services.ErrTransient, "isapi", "search recordings", "", err)
	}
	return resp, nil
}

// Download streams the recording behind playbackURI into destPath. cancelled
// is polled before every chunk; when it reports true the partial file is
// removed and an error matching ErrCancelled is returned. Any other failure
// also removes the partial file. A nil return means the file is complete.
func (s *Session) Download(ctx context.Context, playbackURI, destPath string, cancelled func() bool) error {
	body, err := BuildDownloadRequest(playbackURI)
	if err != nil {
		return &DownloadError{Kind: DownloadFailed, Text: err.Error(), Err: err}
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	watchdog := time.AfterFunc(s.timeout, func() { cancel(errStalled) })
	defer watchdog.Stop()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+downloadPath, bytes.NewReader(body))
	if err != nil {
		return &DownloadError{Kind: DownloadFailed, Text: err.Error(), Err: err}
	}
	req.Header.Set("Content-Type", "application/xml")

	resp, err := s.http.Do(req)
	if err != nil {
		return transferError(ctx, err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		text := ErrorMessage(Response{StatusCode: resp.StatusCode, Status: resp.Status, Body: raw})
		kind := DownloadFailed
		if resp.StatusCode == http.StatusInternalServerError {
			kind = DownloadDeviceError
		}
		return &DownloadError{Kind: kind, StatusCode: resp.StatusCode, Text: text}
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return &DownloadError{Kind: DownloadFailed, Text: fmt.Sprintf("create directory: %v", err), Err: err}
	}
	file, err := os.Create(destPath)
	if err != nil {
		return &DownloadError{Kind: DownloadFailed, Text: fmt.Sprintf("create file: %v", err), Err: err}
	}

	fail := func(result *DownloadError) error {
		_ = file.Close()
		_ = os.Remove(destPath)
		return result
	}

	buf := make([]byte, chunkSize)
	for {
		if cancelled != nil && cancelled() {
			return fail(cancelledError())
		}
		watchdog.Reset(s.timeout)
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, err := file.Write(buf[:n]); err != nil {
				return fail(&DownloadError{Kind: DownloadFailed, Text: fmt.Sprintf("write file: %v", err), Err: err})
			}
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			return fail(transferError(ctx, readErr))
		}
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(destPath)
		return &DownloadError{Kind: DownloadFailed, Text: fmt.Sprintf("close file: %v", err), Err: err}
	}
	return nil
}

func transferError(ctx context.Context, err error) *DownloadError {
	if isTimeout(err) || errors.Is(context.Cause(ctx), errStalled) {
		return &DownloadError{Kind: DownloadTimeout, Err: err}
	}
	return &DownloadError{Kind: DownloadFailed, Text: err.Error(), Err: err}
}

func (s *Session) do(ctx context.Context, method, path string, body []byte) (Response, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return Response{}, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/xml")
	}
	resp, err := s.http.Do(req)
	if err != nil {
		if isTimeout(err) {
			return Response{}, fmt.Errorf("%w: %w", services.ErrTimeout, err)
		}
		return Response{}, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("read response: %w", err)
	}
	return Response{StatusCode: resp.StatusCode, Status: resp.Status, Body: raw}, nil
}
