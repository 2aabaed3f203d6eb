package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"hikfetch/internal/config"
	"hikfetch/internal/logging"
	"hikfetch/internal/services"
)

func TestNewFromConfigWritesJSONLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Logging.Level = "debug"

	logger, err := logging.NewFromConfig(&cfg, false)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("daemon started", logging.String("bind", "127.0.0.1:5000"))

	content, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, logging.LogFileName))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var record map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(content), &record); err != nil {
		t.Fatalf("log file is not JSON: %v (%q)", err, content)
	}
	if record["msg"] != "daemon started" || record["bind"] != "127.0.0.1:5000" {
		t.Fatalf("unexpected record %v", record)
	}
	if record["level"] != "info" {
		t.Fatalf("expected lowercase level, got %v", record["level"])
	}
}

func TestConsoleLoggerOmitsCallerForInfo(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-info.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("message without caller")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if strings.Contains(string(content), ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", content)
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-debug.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "debug", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("message with caller")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), ".go:") {
		t.Fatalf("expected caller information in debug logs, got %q", content)
	}
}

func TestConsoleLoggerShowsJobSubject(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := services.WithDisplayCode(services.WithJobID(context.Background(), "job-1"), "ab12cd34")
	logger = logging.NewComponentLogger(logger, "retrieval")
	logging.WithContext(ctx, logger).Info("recordings found", logging.Int("count", 3))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	text := string(content)
	if !strings.Contains(text, "INFO [retrieval] Job AB12CD34 – recordings found") {
		t.Fatalf("unexpected header: %q", text)
	}
	if !strings.Contains(text, "    - count: 3") {
		t.Fatalf("expected count detail line, got %q", text)
	}
	if strings.Contains(text, "job_id") {
		t.Fatalf("job id should be folded into the subject, got %q", text)
	}
}

func TestConsoleLoggerFormatsSizesAndLongValues(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	uri := "rtsp://10.0.0.5/Streaming/tracks/101?starttime=" + strings.Repeat("x", 300)
	logger.Info("file saved",
		logging.Int64("size_bytes", 3*1024*1024),
		logging.String("playback_uri", uri),
	)

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	text := string(content)
	if !strings.Contains(text, "    - size_bytes: 3.0 MiB") {
		t.Fatalf("expected humanized size, got %q", text)
	}
	if strings.Contains(text, uri) || !strings.Contains(text, "…") {
		t.Fatalf("expected truncated uri, got %q", text)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestNewInvalidLevelDefaultsToInfo(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "level.log")
	logger, err := logging.New(logging.Options{Format: "json", Level: "invalid", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("expected debug to be disabled")
	}
	if !logger.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatal("expected info to be enabled")
	}
}

func TestWithContextAddsFields(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithJobID(ctx, "3f1c")
	ctx = services.WithDisplayCode(ctx, "QW12ER34")
	ctx = services.WithRequestID(ctx, "req-xyz")

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	logging.WithContext(ctx, logger).Info("contextual log")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	for key, want := range map[string]string{
		logging.FieldJobID:         "3f1c",
		logging.FieldDisplayCode:   "QW12ER34",
		logging.FieldCorrelationID: "req-xyz",
	} {
		if record[key] != want {
			t.Fatalf("field %s = %v, want %s", key, record[key], want)
		}
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	logging.WarnWithContext(logger, "download failed", "download_retry", logging.String(logging.FieldImpact, "retrying"))

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if record[logging.FieldEventType] != "download_retry" {
		t.Fatalf("event_type = %v", record[logging.FieldEventType])
	}
	if record[logging.FieldErrorHint] == nil {
		t.Fatal("expected default error_hint")
	}
	if record[logging.FieldImpact] != "retrying" {
		t.Fatalf("impact should not be overwritten, got %v", record[logging.FieldImpact])
	}
}

func TestFormatSubject(t *testing.T) {
	tests := []struct {
		code, id, want string
	}{
		{"ab12cd34", "ignored", "Job AB12CD34"},
		{"", "0123456789abcdef", "Job 01234567"},
		{"", "", ""},
	}
	for _, tc := range tests {
		if got := logging.FormatSubject(tc.code, tc.id); got != tc.want {
			t.Errorf("FormatSubject(%q, %q) = %q, want %q", tc.code, tc.id, got, tc.want)
		}
	}
}

func TestErrorWithContextAddsErrorKind(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	err := services.Wrap(services.ErrUnauthorized, "isapi", "connect", "", nil)
	logging.ErrorWithContext(logger, "device connection failed", "device_connect_failed", logging.Error(err))

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if record[logging.FieldErrorKind] != "unauthorized" {
		t.Fatalf("error_kind = %v", record[logging.FieldErrorKind])
	}
	if hint, _ := record[logging.FieldErrorHint].(string); !strings.Contains(hint, logging.LogFileName) {
		t.Fatalf("expected default hint to name the log file, got %v", record[logging.FieldErrorHint])
	}
}

func TestJSONFileDropsEmptyStrings(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "daemon.json")
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Warn("search page did not advance", logging.String("detail", ""), logging.Duration("retry_delay", 5*time.Second))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var record map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(content), &record); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if _, ok := record["detail"]; ok {
		t.Fatalf("empty attr should be dropped: %v", record)
	}
	if record["level"] != "warn" || record["retry_delay"] != "5s" {
		t.Fatalf("unexpected record %v", record)
	}
	if _, ok := record["ts"].(string); !ok {
		t.Fatalf("expected ts string, got %v", record["ts"])
	}
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{services.Wrap(services.ErrDevice, "isapi", "search", "500", nil), "device"},
		{services.Wrap(services.ErrTimeout, "isapi", "download", "", nil), "timeout"},
		{services.Wrap(nil, "", "", "", nil), "transient"},
		{os.ErrNotExist, ""},
	}
	for _, tc := range tests {
		if got := logging.ErrorKind(tc.err); got != tc.want {
			t.Errorf("ErrorKind(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
