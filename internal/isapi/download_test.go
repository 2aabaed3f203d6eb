package isapi_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"hikfetch/internal/isapi"
	"hikfetch/internal/services"
	"hikfetch/internal/testsupport"
)

var firstClip = testsupport.Clip{
	Start: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	End:   time.Date(2024, 3, 1, 10, 10, 0, 0, time.UTC),
	Track: 101,
}

func connect(t *testing.T, device *testsupport.FakeDevice, timeout time.Duration) *isapi.Session {
	t.Helper()
	session, err := isapi.Connect(context.Background(), isapi.Config{
		BaseURL:  device.URL,
		Username: device.Username,
		Password: device.Password,
		Timeout:  timeout,
	})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return session
}

func TestDownloadWritesFile(t *testing.T) {
	payload := bytes.Repeat([]byte("0123456789"), 5000)
	device := testsupport.NewFakeDevice(t, testsupport.WithPayload(payload))
	session := connect(t, device, 2*time.Second)

	dest := filepath.Join(t.TempDir(), "nested", "clip.mp4")
	if err := session.Download(context.Background(), device.PlaybackURI(firstClip), dest, nil); err != nil {
		t.Fatalf("Download: %v", err)
	}
	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload mismatch: got %d bytes, want %d", len(got), len(payload))
	}
}

func TestDownloadClassifiesDeviceError(t *testing.T) {
	device := testsupport.NewFakeDevice(t, testsupport.WithDownloadFailures(1))
	session := connect(t, device, 2*time.Second)

	dest := filepath.Join(t.TempDir(), "clip.mp4")
	err := session.Download(context.Background(), device.PlaybackURI(firstClip), dest, nil)
	var dlErr *isapi.DownloadError
	if !errors.As(err, &dlErr) {
		t.Fatalf("expected DownloadError, got %v", err)
	}
	if dlErr.Kind != isapi.DownloadDeviceError || dlErr.StatusCode != 500 {
		t.Fatalf("unexpected classification: %+v", dlErr)
	}
	if !errors.Is(err, services.ErrDevice) {
		t.Fatalf("expected device marker, got %v", err)
	}
	if dlErr.Text != "Error 500 Internal Server Error: Device Busy - deviceBusy" {
		t.Fatalf("unexpected text %q", dlErr.Text)
	}
	if _, statErr := os.Stat(dest); !os.IsNotExist(statErr) {
		t.Fatalf("expected no file, stat err = %v", statErr)
	}

	if err := session.Download(context.Background(), device.PlaybackURI(firstClip), dest, nil); err != nil {
		t.Fatalf("second attempt: %v", err)
	}
}

func TestDownloadCancelRemovesPartialFile(t *testing.T) {
	device := testsupport.NewFakeDevice(t,
		testsupport.WithHeldDownloads(),
		testsupport.WithPayload(bytes.Repeat([]byte("x"), 256<<10)),
	)
	session := connect(t, device, 5*time.Second)
	dest := filepath.Join(t.TempDir(), "clip.mp4")

	var cancelled atomic.Bool
	done := make(chan error, 1)
	go func() {
		done <- session.Download(context.Background(), device.PlaybackURI(firstClip), dest, cancelled.Load)
	}()

	select {
	case <-device.DownloadStarted():
	case <-time.After(5 * time.Second):
		t.Fatal("download never started")
	}
	cancelled.Store(true)
	device.Release()

	select {
	case err := <-done:
		if !isapi.IsCancelled(err) {
			t.Fatalf("expected cancellation, got %v", err)
		}
		var dlErr *isapi.DownloadError
		if !errors.As(err, &dlErr) || dlErr.Text != "Cancelled" || dlErr.Kind != isapi.DownloadFailed {
			t.Fatalf("unexpected cancellation error %+v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("download did not return")
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Fatalf("expected partial file removed, stat err = %v", err)
	}
}

func TestDownloadStallIsTimeout(t *testing.T) {
	device := testsupport.NewFakeDevice(t, testsupport.WithHeldDownloads())
	session := connect(t, device, 300*time.Millisecond)
	dest := filepath.Join(t.TempDir(), "clip.mp4")

	err := session.Download(context.Background(), device.PlaybackURI(firstClip), dest, nil)
	var dlErr *isapi.DownloadError
	if !errors.As(err, &dlErr) || dlErr.Kind != isapi.DownloadTimeout {
		t.Fatalf("expected timeout, got %v", err)
	}
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected timeout marker, got %v", err)
	}
	if _, statErr := os.Stat(dest); !os.IsNotExist(statErr) {
		t.Fatalf("expected partial file removed, stat err = %v", statErr)
	}
}

func TestSearchSegmentsReturnsRawFailure(t *testing.T) {
	device := testsupport.NewFakeDevice(t, testsupport.WithSearchFailure())
	session := connect(t, device, 2*time.Second)

	resp, err := session.SearchSegments(context.Background(), isapi.SearchRequest{MaxResults: 50, TrackID: 101})
	if err != nil {
		t.Fatalf("SearchSegments: %v", err)
	}
	if resp.OK() {
		t.Fatal("expected failed response")
	}
	if got := isapi.ErrorMessage(resp); got != "Error 500 Internal Server Error: Device Error - hdError" {
		t.Fatalf("ErrorMessage = %q", got)
	}
}
