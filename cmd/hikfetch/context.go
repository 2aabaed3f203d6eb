package main

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"hikfetch/internal/api"
	"hikfetch/internal/config"
)

// skipConfigLoad marks commands that must run without a valid configuration.
const skipConfigLoad = "skipConfigLoad"

// commandContext carries the persistent flags and the lazily loaded config
// shared by every subcommand.
type commandContext struct {
	configFlag *string
	apiFlag    *string

	load   sync.Once
	config *config.Config
	err    error
}

func newCommandContext(configFlag, apiFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag, apiFlag: apiFlag}
}

func (c *commandContext) configPath() string {
	return flagValue(c.configFlag)
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.load.Do(func() {
		c.config, _, _, c.err = config.Load(c.configPath())
	})
	return c.config, c.err
}

// withClient runs fn against the daemon API. The --api flag wins over the
// configured bind address; credentials always come from the config.
func (c *commandContext) withClient(fn func(*api.Client) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	baseURL := flagValue(c.apiFlag)
	if baseURL == "" {
		baseURL = cfg.APIURL()
	}

	var opts []api.ClientOption
	switch cfg.API.AuthMethod {
	case config.AuthToken:
		opts = append(opts, api.WithToken(cfg.API.Token))
	case config.AuthBasic:
		opts = append(opts, api.WithBasicAuth(cfg.API.Username, cfg.API.Password))
	}

	err = fn(api.NewClient(baseURL, opts...))
	if errors.Is(err, syscall.ECONNREFUSED) {
		return fmt.Errorf("connect to daemon: %s refused the connection; start it with `hikfetch serve`", baseURL)
	}
	return err
}

func flagValue(flag *string) string {
	if flag == nil {
		return ""
	}
	return strings.TrimSpace(*flag)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations[skipConfigLoad] == "true" {
			return true
		}
	}
	return false
}
