package testsupport

import (
	"path/filepath"
	"testing"

	"hikfetch/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Device.URL = "http://127.0.0.1:1"
	cfgVal.Device.Username = "admin"
	cfgVal.Device.Password = "secret"
	cfgVal.Device.RequestTimeout = 2
	cfgVal.Paths.ArchiveDir = filepath.Join(base, "archive")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Catalog.Path = filepath.Join(base, "state", "catalog.db")
	cfgVal.API.Bind = "127.0.0.1:0"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithDevice points the config at a fake recorder.
func WithDevice(device *FakeDevice) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Device.URL = device.URL
		b.cfg.Device.Username = device.Username
		b.cfg.Device.Password = device.Password
	}
}

// WithAPIToken enables bearer token authentication on the API.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.API.AuthMethod = config.AuthToken
		b.cfg.API.Token = token
	}
}

// WithBasicAuth enables HTTP basic authentication on the API.
func WithBasicAuth(username, password string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.API.AuthMethod = config.AuthBasic
		b.cfg.API.Username = username
		b.cfg.API.Password = password
	}
}

// WithoutCatalog disables the archive catalog.
func WithoutCatalog() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Catalog.Enabled = false
	}
}

// WithNtfyTopic points job notifications at the given topic URL.
func WithNtfyTopic(topic string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Notifications.NtfyTopic = topic
	}
}
