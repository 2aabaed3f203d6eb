package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateDevice(); err != nil {
		return err
	}
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateAPI(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateDevice() error {
	hint := configHint()
	if c.Device.URL == "" {
		return fmt.Errorf("device.url is required. Set %s or edit %s", EnvDeviceURL, hint)
	}
	parsed, err := url.Parse(c.Device.URL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("device.url %q must be an http(s) URL", c.Device.URL)
	}
	if c.Device.Username == "" {
		return fmt.Errorf("device.username is required. Set %s or edit %s", EnvDeviceUsername, hint)
	}
	if c.Device.Password == "" {
		return fmt.Errorf("device.password is required. Set %s or edit %s", EnvDevicePassword, hint)
	}
	if c.Device.DefaultChannel < 1 {
		return errors.New("device.default_channel must be at least 1")
	}
	if c.Device.RequestTimeout <= 0 {
		return errors.New("device.request_timeout must be positive (seconds)")
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.ArchiveDir == "" {
		return fmt.Errorf("paths.archive_dir is required. Set %s or edit %s", EnvArchiveDir, configHint())
	}
	return nil
}

func (c *Config) validateAPI() error {
	basicProvided := c.API.Username != "" && c.API.Password != ""
	switch c.API.AuthMethod {
	case AuthNone:
		if basicProvided || c.API.Token != "" {
			return errors.New("api.auth_method is none but api credentials are set")
		}
	case AuthToken:
		if c.API.Token == "" {
			return errors.New("api.token must be set when api.auth_method is token")
		}
	case AuthBasic:
		if !basicProvided {
			return errors.New("api.username and api.password must be set when api.auth_method is basic")
		}
	default:
		return fmt.Errorf("api.auth_method %q is invalid; must be none, token, or basic", c.API.AuthMethod)
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	return ensurePositiveMap(map[string]int{
		"workflow.queue_poll_interval": c.Workflow.QueuePollInterval,
		"workflow.retry_delay":         c.Workflow.RetryDelay,
		"workflow.stop_timeout":        c.Workflow.StopTimeout,
	})
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive (seconds)")
	}
	if c.Notifications.NtfyTopic == "" {
		return nil
	}
	parsed, err := url.Parse(c.Notifications.NtfyTopic)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("notifications.ntfy_topic %q must be a full http(s) topic URL", c.Notifications.NtfyTopic)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format %q is invalid; must be console or json", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is invalid", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}

func configHint() string {
	path, err := DefaultConfigPath()
	if err != nil {
		path = defaultConfigPath
	}
	return strings.TrimSpace(path) + " (create with 'hikfetch config init')"
}
