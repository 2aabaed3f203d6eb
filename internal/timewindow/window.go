package timewindow

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// InputLayout is the local date and time format accepted from callers.
	InputLayout = "2006-01-02 15:04:05"
	// ShortInputLayout accepts callers that omit seconds.
	ShortInputLayout = "2006-01-02 15:04"
	// DeviceLayout is the device-local text format used in search requests.
	DeviceLayout = "2006-01-02T15:04:05Z"
	// StampLayout is the compact format embedded in playback URIs.
	StampLayout = "20060102T150405Z"
	// FileLayout names archived files after their local start time.
	FileLayout = "2006-01-02_15-04-05"
)

// ErrInverted reports a window whose start is after its end.
var ErrInverted = errors.New("window start is after end")

// Window is a UTC interval plus the device's offset from UTC.
type Window struct {
	Start       time.Time
	End         time.Time
	LocalOffset time.Duration
}

// New validates and normalizes a window from UTC instants.
func New(start, end time.Time, offset time.Duration) (Window, error) {
	start = start.UTC()
	end = end.UTC()
	if start.After(end) {
		return Window{}, fmt.Errorf("%w: %s > %s", ErrInverted, start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return Window{Start: start, End: end, LocalOffset: offset}, nil
}

// Parse builds a window from device-local wall clock text.
func Parse(startText, endText string, offset time.Duration) (Window, error) {
	start, err := parseLocal(startText, offset)
	if err != nil {
		return Window{}, fmt.Errorf("parse start: %w", err)
	}
	end, err := parseLocal(endText, offset)
	if err != nil {
		return Window{}, fmt.Errorf("parse end: %w", err)
	}
	return New(start, end, offset)
}

// FromStamps builds a window from the compact device-local stamps carried in
// playback URIs.
func FromStamps(startStamp, endStamp string, offset time.Duration) (Window, error) {
	start, err := time.ParseInLocation(StampLayout, strings.TrimSpace(startStamp), time.UTC)
	if err != nil {
		return Window{}, fmt.Errorf("parse start stamp: %w", err)
	}
	end, err := time.ParseInLocation(StampLayout, strings.TrimSpace(endStamp), time.UTC)
	if err != nil {
		return Window{}, fmt.Errorf("parse end stamp: %w", err)
	}
	return New(start.Add(-offset), end.Add(-offset), offset)
}

func parseLocal(text string, offset time.Duration) (time.Time, error) {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return time.Time{}, errors.New("empty time")
	}
	for _, layout := range []string{InputLayout, ShortInputLayout} {
		if t, err := time.ParseInLocation(layout, text, time.UTC); err == nil {
			return t.Add(-offset), nil
		}
	}
	return time.Time{}, fmt.Errorf("%q does not match %q", text, InputLayout)
}

// WithStart returns a copy starting at t. Starts past the end are clamped so
// the window never inverts.
func (w Window) WithStart(t time.Time) Window {
	t = t.UTC()
	if t.After(w.End) {
		t = w.End
	}
	w.Start = t
	return w
}

// Empty reports whether the window covers no time at all.
func (w Window) Empty() bool {
	return !w.Start.Before(w.End)
}

// Duration returns the length of the window.
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Local returns the window bounds on the device's wall clock.
func (w Window) Local() (time.Time, time.Time) {
	return w.Start.Add(w.LocalOffset), w.End.Add(w.LocalOffset)
}

// LocalText renders the bounds for humans.
func (w Window) LocalText() (string, string) {
	start, end := w.Local()
	return start.Format(InputLayout), end.Format(InputLayout)
}

// DeviceText renders the bounds the way search requests expect them.
func (w Window) DeviceText() (string, string) {
	start, end := w.Local()
	return start.Format(DeviceLayout), end.Format(DeviceLayout)
}

// FileName renders the local start as a filesystem-safe timestamp.
func (w Window) FileName() string {
	start, _ := w.Local()
	return start.Format(FileLayout)
}

func (w Window) String() string {
	start, end := w.LocalText()
	return start + " - " + end
}
