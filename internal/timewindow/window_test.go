package timewindow_test

import (
	"errors"
	"testing"
	"time"

	"hikfetch/internal/timewindow"
)

func TestParseFoldsOffset(t *testing.T) {
	offset := 8 * time.Hour
	w, err := timewindow.Parse("2024-03-01 10:00:00", "2024-03-01 12:30", offset)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	wantStart := time.Date(2024, 3, 1, 2, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2024, 3, 1, 4, 30, 0, 0, time.UTC)
	if !w.Start.Equal(wantStart) || !w.End.Equal(wantEnd) {
		t.Fatalf("unexpected window %v - %v", w.Start, w.End)
	}
	start, end := w.DeviceText()
	if start != "2024-03-01T10:00:00Z" || end != "2024-03-01T12:30:00Z" {
		t.Fatalf("unexpected device text %q %q", start, end)
	}
	if got := w.FileName(); got != "2024-03-01_10-00-00" {
		t.Fatalf("FileName = %q", got)
	}
}

func TestParseRejectsInvertedAndMalformed(t *testing.T) {
	if _, err := timewindow.Parse("2024-03-01 12:00:00", "2024-03-01 10:00:00", 0); !errors.Is(err, timewindow.ErrInverted) {
		t.Fatalf("expected ErrInverted, got %v", err)
	}
	for _, text := range []string{"", "yesterday", "2024/03/01 10:00:00"} {
		if _, err := timewindow.Parse(text, "2024-03-01 10:00:00", 0); err == nil {
			t.Fatalf("expected error for %q", text)
		}
	}
}

func TestEqualBoundsAreEmpty(t *testing.T) {
	w, err := timewindow.Parse("2024-03-01 10:00:00", "2024-03-01 10:00:00", 0)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !w.Empty() {
		t.Fatal("expected empty window")
	}
}

func TestWithStartClampsAndCopies(t *testing.T) {
	w, err := timewindow.Parse("2024-03-01 10:00:00", "2024-03-01 11:00:00", 0)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	mid := w.Start.Add(20 * time.Minute)
	advanced := w.WithStart(mid)
	if !advanced.Start.Equal(mid) {
		t.Fatalf("expected start %v, got %v", mid, advanced.Start)
	}
	if w.Start.Equal(mid) {
		t.Fatal("original window must not change")
	}
	past := w.WithStart(w.End.Add(time.Hour))
	if !past.Start.Equal(w.End) || !past.Empty() {
		t.Fatalf("expected clamp to end, got %v", past.Start)
	}
}

func TestFromStamps(t *testing.T) {
	w, err := timewindow.FromStamps("20230105T101010Z", "20230105T102010Z", 2*time.Hour)
	if err != nil {
		t.Fatalf("FromStamps: %v", err)
	}
	if want := time.Date(2023, 1, 5, 8, 10, 10, 0, time.UTC); !w.Start.Equal(want) {
		t.Fatalf("start = %v, want %v", w.Start, want)
	}
	if got := w.FileName(); got != "2023-01-05_10-10-10" {
		t.Fatalf("FileName = %q", got)
	}
	if w.Duration() != 10*time.Minute {
		t.Fatalf("Duration = %v", w.Duration())
	}
}
