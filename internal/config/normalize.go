package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	c.normalizeDevice()
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeAPI()
	c.normalizeWorkflow()
	c.normalizeCatalog()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizeDevice() {
	fromEnv(&c.Device.URL, EnvDeviceURL)
	fromEnv(&c.Device.Username, EnvDeviceUsername)
	if c.Device.Password == "" {
		if value, ok := os.LookupEnv(EnvDevicePassword); ok {
			c.Device.Password = value
		}
	}
	c.Device.URL = strings.TrimRight(strings.TrimSpace(c.Device.URL), "/")
	c.Device.Username = strings.TrimSpace(c.Device.Username)
	if c.Device.DefaultChannel == 0 {
		c.Device.DefaultChannel = defaultChannel
	}
	if c.Device.RequestTimeout == 0 {
		c.Device.RequestTimeout = defaultRequestTimeout
	}
}

func (c *Config) normalizePaths() error {
	fromEnv(&c.Paths.ArchiveDir, EnvArchiveDir)
	var err error
	if c.Paths.ArchiveDir, err = expandPath(strings.TrimSpace(c.Paths.ArchiveDir)); err != nil {
		return fmt.Errorf("paths.archive_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(strings.TrimSpace(c.Paths.StateDir)); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeAPI() {
	fromEnv(&c.API.Bind, EnvAPIBind)
	fromEnv(&c.API.Token, EnvAPIToken)
	fromEnv(&c.API.Username, EnvWebUsername)
	fromEnv(&c.API.Password, EnvWebPassword)
	if value, ok := os.LookupEnv(EnvAuthMethod); ok && strings.TrimSpace(value) != "" {
		c.API.AuthMethod = value
	}
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	if c.API.Bind == "" {
		c.API.Bind = defaultAPIBind
	}
	c.API.AuthMethod = strings.ToLower(strings.TrimSpace(c.API.AuthMethod))
	if c.API.AuthMethod == "" {
		c.API.AuthMethod = defaultAuthMethod
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.QueuePollInterval == 0 {
		c.Workflow.QueuePollInterval = defaultQueuePollInterval
	}
	if c.Workflow.RetryDelay == 0 {
		c.Workflow.RetryDelay = defaultRetryDelay
	}
	if c.Workflow.StopTimeout == 0 {
		c.Workflow.StopTimeout = defaultStopTimeout
	}
}

func (c *Config) normalizeCatalog() {
	c.Catalog.Path = strings.TrimSpace(c.Catalog.Path)
	if c.Catalog.Path == "" {
		c.Catalog.Path = filepath.Join(c.Paths.StateDir, catalogFileName)
		return
	}
	if expanded, err := expandPath(c.Catalog.Path); err == nil {
		c.Catalog.Path = expanded
	}
}

func (c *Config) normalizeNotifications() {
	fromEnv(&c.Notifications.NtfyTopic, EnvNtfyTopic)
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout == 0 {
		c.Notifications.RequestTimeout = defaultNtfyTimeout
	}
}

func (c *Config) normalizeLogging() {
	if value, ok := os.LookupEnv(EnvLogLevel); ok && strings.TrimSpace(value) != "" {
		c.Logging.Level = value
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
