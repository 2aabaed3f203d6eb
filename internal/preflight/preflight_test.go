package preflight

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"hikfetch/internal/config"
	"hikfetch/internal/isapi"
	"hikfetch/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	result := CheckDirectoryAccess("test", t.TempDir())
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if !strings.Contains(result.Detail, "does not exist") {
		t.Fatalf("unexpected detail %q", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if result := CheckDirectoryAccess("test", f); result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckFreeSpace(t *testing.T) {
	dir := t.TempDir()
	if result := CheckFreeSpace("free", dir, 1); !result.Passed {
		t.Fatalf("expected pass with a one byte minimum, got %s", result.Detail)
	}
	if result := CheckFreeSpace("free", dir, ^uint64(0)); result.Passed {
		t.Fatal("expected failure with an impossible minimum")
	}
	if result := CheckFreeSpace("free", filepath.Join(dir, "missing"), 1); result.Passed {
		t.Fatal("expected failure for missing path")
	}
}

func TestCheckDevice(t *testing.T) {
	device := testsupport.NewFakeDevice(t, testsupport.WithDigestAuth(), testsupport.WithTimeZone("CST-8:00:00"))

	ok := CheckDevice(context.Background(), isapi.Config{BaseURL: device.URL, Username: device.Username, Password: device.Password, Timeout: 2 * time.Second})
	if !ok.Passed {
		t.Fatalf("expected pass, got %s", ok.Detail)
	}
	if ok.Detail != "digest auth, clock offset UTC+08:00" {
		t.Fatalf("unexpected detail %q", ok.Detail)
	}

	bad := CheckDevice(context.Background(), isapi.Config{BaseURL: device.URL, Username: device.Username, Password: "wrong", Timeout: 2 * time.Second})
	if bad.Passed || !strings.HasPrefix(bad.Detail, "unauthorized") {
		t.Fatalf("expected unauthorized failure, got %+v", bad)
	}

	if missing := CheckDevice(context.Background(), isapi.Config{}); missing.Passed {
		t.Fatal("expected failure without url")
	}
}

func TestRunAll(t *testing.T) {
	device := testsupport.NewFakeDevice(t)
	cfg := testsupport.NewConfig(t, testsupport.WithDevice(device))
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}

	results := RunAll(context.Background(), cfg)
	if len(results) != 4 {
		t.Fatalf("results = %d, want 4", len(results))
	}
	for _, r := range results {
		if r.Name == "Archive free space" {
			continue
		}
		if !r.Passed {
			t.Fatalf("check %s failed: %s", r.Name, r.Detail)
		}
	}
	if RunAll(context.Background(), (*config.Config)(nil)) != nil {
		t.Fatal("nil config should yield no results")
	}
}

func TestFormatHelpers(t *testing.T) {
	if got := FormatOffset(-90 * time.Minute); got != "UTC-01:30" {
		t.Fatalf("FormatOffset = %q", got)
	}
	if len(Failed([]Result{{Passed: true}, {Name: "x"}})) != 1 {
		t.Fatal("Failed should return only failing results")
	}
}
