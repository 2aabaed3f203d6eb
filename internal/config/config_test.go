package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"hikfetch/internal/config"
)

func setDeviceEnv(t *testing.T) {
	t.Helper()
	t.Setenv(config.EnvDeviceURL, "http://192.168.1.64/")
	t.Setenv(config.EnvDeviceUsername, "admin")
	t.Setenv(config.EnvDevicePassword, "secret")
}

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(t.TempDir())
	for _, key := range []string{
		config.EnvDeviceURL, config.EnvDeviceUsername, config.EnvDevicePassword,
		config.EnvArchiveDir, config.EnvLogLevel, config.EnvAPIBind, config.EnvAPIToken,
		config.EnvAuthMethod, config.EnvWebUsername, config.EnvWebPassword, config.EnvNtfyTopic,
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	return home
}

func TestLoadDefaultsWithEnvironment(t *testing.T) {
	home := isolate(t)
	setDeviceEnv(t)

	cfg, path, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if exists {
		t.Fatalf("expected no config file, got %s", path)
	}
	if cfg.Device.URL != "http://192.168.1.64" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Device.URL)
	}
	if cfg.Device.DefaultChannel != 1 || cfg.Device.RequestTimeout != 15 {
		t.Fatalf("unexpected device defaults: %+v", cfg.Device)
	}
	if want := filepath.Join(home, "hikfetch", "archive"); cfg.Paths.ArchiveDir != want {
		t.Fatalf("archive dir = %q, want %q", cfg.Paths.ArchiveDir, want)
	}
	if want := filepath.Join(home, ".local", "share", "hikfetch", "catalog.db"); cfg.Catalog.Path != want {
		t.Fatalf("catalog path = %q, want %q", cfg.Catalog.Path, want)
	}
	if cfg.API.Bind != "127.0.0.1:5000" || cfg.API.AuthMethod != config.AuthNone {
		t.Fatalf("unexpected api defaults: %+v", cfg.API)
	}
	if cfg.RetryDelay().Seconds() != 5 || cfg.PollInterval().Seconds() != 1 || cfg.StopTimeout().Seconds() != 5 {
		t.Fatal("unexpected workflow durations")
	}
	if cfg.Notifications.NtfyTopic != "" || cfg.NotificationTimeout().Seconds() != 10 {
		t.Fatalf("unexpected notification defaults: %+v", cfg.Notifications)
	}
}

func TestLoadReadsNtfyTopicFromEnv(t *testing.T) {
	isolate(t)
	setDeviceEnv(t)
	t.Setenv(config.EnvNtfyTopic, " https://ntfy.sh/recorder ")

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Notifications.NtfyTopic != "https://ntfy.sh/recorder" {
		t.Fatalf("ntfy topic = %q", cfg.Notifications.NtfyTopic)
	}
}

func TestLoadReadsFileAndKeepsFileValuesOverEnv(t *testing.T) {
	isolate(t)
	setDeviceEnv(t)
	t.Setenv(config.EnvLogLevel, "DEBUG")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[device]
url = "http://nvr.local"
username = "operator"
default_channel = 3

[paths]
archive_dir = "` + filepath.Join(dir, "archive") + `"

[api]
auth_method = "token"
token = "abc"

[logging]
format = "json"
level = "info"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected config %s to be found, got %s (%v)", path, resolved, exists)
	}
	if cfg.Device.URL != "http://nvr.local" || cfg.Device.Username != "operator" {
		t.Fatalf("file values should win over env fallbacks: %+v", cfg.Device)
	}
	if cfg.Device.Password != "secret" {
		t.Fatal("empty password should fall back to the environment")
	}
	if cfg.Device.DefaultChannel != 3 {
		t.Fatalf("default channel = %d", cfg.Device.DefaultChannel)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("log level env should override file, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("log format = %q", cfg.Logging.Format)
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	isolate(t)
	dotenv := "HIKFETCH_CAMERA_URL=http://10.0.0.5\nHIKFETCH_CAMERA_USERNAME=viewer\nHIKFETCH_CAMERA_PASSWORD=pw\n"
	if err := os.WriteFile(".env", []byte(dotenv), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Cleanup(func() {
		os.Unsetenv(config.EnvDeviceURL)
		os.Unsetenv(config.EnvDeviceUsername)
		os.Unsetenv(config.EnvDevicePassword)
	})

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Device.URL != "http://10.0.0.5" || cfg.Device.Username != "viewer" || cfg.Device.Password != "pw" {
		t.Fatalf("expected .env values, got %+v", cfg.Device)
	}
}

func TestValidateErrors(t *testing.T) {
	valid := func() config.Config {
		cfg := config.Default()
		cfg.Device.URL = "http://camera"
		cfg.Device.Username = "admin"
		cfg.Device.Password = "pw"
		cfg.Paths.ArchiveDir = "/tmp/archive"
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"missing url", func(c *config.Config) { c.Device.URL = "" }, "device.url is required"},
		{"bad scheme", func(c *config.Config) { c.Device.URL = "ftp://camera" }, "http(s) URL"},
		{"missing username", func(c *config.Config) { c.Device.Username = "" }, "device.username"},
		{"missing password", func(c *config.Config) { c.Device.Password = "" }, "device.password"},
		{"channel", func(c *config.Config) { c.Device.DefaultChannel = 0 }, "default_channel"},
		{"timeout", func(c *config.Config) { c.Device.RequestTimeout = -1 }, "request_timeout"},
		{"archive", func(c *config.Config) { c.Paths.ArchiveDir = "" }, "archive_dir"},
		{"token missing", func(c *config.Config) { c.API.AuthMethod = config.AuthToken }, "api.token"},
		{"basic missing", func(c *config.Config) { c.API.AuthMethod = config.AuthBasic; c.API.Username = "u" }, "api.username"},
		{"none with creds", func(c *config.Config) { c.API.Token = "t" }, "credentials are set"},
		{"unknown auth", func(c *config.Config) { c.API.AuthMethod = "oidc" }, "auth_method"},
		{"retry delay", func(c *config.Config) { c.Workflow.RetryDelay = 0 }, "workflow.retry_delay"},
		{"ntfy topic", func(c *config.Config) { c.Notifications.NtfyTopic = "my-topic" }, "notifications.ntfy_topic"},
		{"ntfy timeout", func(c *config.Config) { c.Notifications.RequestTimeout = 0 }, "notifications.request_timeout"},
		{"log format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
	}

	base := valid()
	if err := base.Validate(); err != nil {
		t.Fatalf("baseline config invalid: %v", err)
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestWriteSampleIsLoadable(t *testing.T) {
	isolate(t)
	setDeviceEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	written, err := config.WriteSample(path, false)
	if err != nil {
		t.Fatalf("WriteSample returned error: %v", err)
	}
	if written != path {
		t.Fatalf("WriteSample wrote %q, want %q", written, path)
	}
	if _, err := config.WriteSample(path, false); !errors.Is(err, os.ErrExist) {
		t.Fatalf("second WriteSample should refuse to overwrite, got %v", err)
	}
	if _, err := config.WriteSample(path, true); err != nil {
		t.Fatalf("WriteSample with overwrite: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("sample config should load: %v", err)
	}
	if !exists {
		t.Fatal("expected sample file to exist")
	}
	if !cfg.Catalog.Enabled {
		t.Fatal("catalog should be enabled in the sample")
	}
}

func TestAPIURL(t *testing.T) {
	cfg := config.Default()
	for bind, want := range map[string]string{
		"127.0.0.1:5000": "http://127.0.0.1:5000",
		":7000":          "http://127.0.0.1:7000",
		"0.0.0.0:8080":   "http://127.0.0.1:8080",
	} {
		cfg.API.Bind = bind
		if got := cfg.APIURL(); got != want {
			t.Errorf("APIURL(%q) = %q, want %q", bind, got, want)
		}
	}
}
