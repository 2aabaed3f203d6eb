package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"hikfetch/internal/config"
	"hikfetch/internal/isapi"
	"hikfetch/internal/jobs"
	"hikfetch/internal/notifications"
)

type capturedRequest struct {
	title    string
	tags     string
	priority string
	body     string
	calls    int
}

func newNtfyServer(t *testing.T, status int) (*httptest.Server, *capturedRequest) {
	t.Helper()
	captured := &capturedRequest{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		captured.calls++
		captured.title = r.Header.Get("Title")
		captured.tags = r.Header.Get("Tags")
		captured.priority = r.Header.Get("Priority")
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read body: %v", err)
		}
		captured.body = string(body)
		w.WriteHeader(status)
		if status >= 300 {
			_, _ = w.Write([]byte("topic unavailable"))
		}
	}))
	t.Cleanup(server.Close)
	return server, captured
}

func serviceFor(url string) notifications.Service {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = url
	cfg.Notifications.RequestTimeout = 5
	return notifications.NewService(&cfg)
}

func snapshot(state jobs.State) jobs.Snapshot {
	snap := jobs.Snapshot{
		ID:          "job-1",
		DisplayCode: "AB12CD34",
		State:       state,
		Params: jobs.Params{
			Start:   "2024-03-01 10:00",
			End:     "2024-03-01 11:00",
			Channel: 2,
			Media:   isapi.MediaVideo,
		},
	}
	switch state {
	case jobs.StateCompleted:
		snap.Result = &jobs.Result{Status: "success", Files: 3}
	case jobs.StateFailed:
		snap.Error = "search recordings: device error: 500"
	}
	return snap
}

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	svc := notifications.NewService(&cfg)
	if svc.Enabled() {
		t.Fatal("expected notifications disabled without a topic")
	}
	if err := svc.JobFinished(context.Background(), snapshot(jobs.StateCompleted)); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
	if err := notifications.NewService(nil).TestNotification(context.Background()); err != nil {
		t.Fatalf("nil config should yield a noop, got %v", err)
	}
}

func TestJobFinishedFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		state          jobs.State
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name:          "completed",
			state:         jobs.StateCompleted,
			expectTitle:   "HikFetch - Job Complete",
			expectMessage: "✅ Job AB12CD34 saved 3 file(s) from channel 2 (video)\n2024-03-01 10:00 to 2024-03-01 11:00",
			expectTags:    "hikfetch,job,completed",
		},
		{
			name:           "failed",
			state:          jobs.StateFailed,
			expectTitle:    "HikFetch - Job Failed",
			expectMessage:  "❌ Job AB12CD34 failed: search recordings: device error: 500\n2024-03-01 10:00 to 2024-03-01 11:00",
			expectTags:     "hikfetch,job,failed",
			expectPriority: "high",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server, captured := newNtfyServer(t, http.StatusOK)
			svc := serviceFor(server.URL)
			if !svc.Enabled() {
				t.Fatal("expected notifications enabled")
			}
			if err := svc.JobFinished(context.Background(), snapshot(tc.state)); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}
			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, captured.body)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
		})
	}
}

func TestJobFinishedIgnoresOtherStates(t *testing.T) {
	server, captured := newNtfyServer(t, http.StatusOK)
	svc := serviceFor(server.URL)
	for _, state := range []jobs.State{jobs.StatePending, jobs.StateRunning, jobs.StateCancelled} {
		if err := svc.JobFinished(context.Background(), snapshot(state)); err != nil {
			t.Fatalf("state %s: unexpected error %v", state, err)
		}
	}
	if captured.calls != 0 {
		t.Fatalf("expected no ntfy calls, got %d", captured.calls)
	}
}

func TestSendReportsServerErrors(t *testing.T) {
	server, _ := newNtfyServer(t, http.StatusForbidden)
	err := serviceFor(server.URL).TestNotification(context.Background())
	if err == nil {
		t.Fatal("expected error from rejected notification")
	}
	if !strings.Contains(err.Error(), "403") || !strings.Contains(err.Error(), "topic unavailable") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestTestNotification(t *testing.T) {
	server, captured := newNtfyServer(t, http.StatusOK)
	if err := serviceFor(server.URL).TestNotification(context.Background()); err != nil {
		t.Fatalf("TestNotification: %v", err)
	}
	if captured.title != "HikFetch - Test" || captured.priority != "low" {
		t.Fatalf("unexpected test payload: %+v", captured)
	}
}
