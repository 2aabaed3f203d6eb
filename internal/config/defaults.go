package config

const (
	defaultConfigPath        = "~/.config/hikfetch/config.toml"
	defaultArchiveDir        = "~/hikfetch/archive"
	defaultStateDir          = "~/.local/share/hikfetch"
	defaultLogDir            = "~/.local/share/hikfetch/logs"
	defaultChannel           = 1
	defaultRequestTimeout    = 15
	defaultAPIBind           = "127.0.0.1:5000"
	defaultAuthMethod        = AuthNone
	defaultQueuePollInterval = 1
	defaultRetryDelay        = 5
	defaultStopTimeout       = 5
	defaultNtfyTimeout       = 10
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	catalogFileName          = "catalog.db"
)

// API authentication methods.
const (
	AuthNone  = "none"
	AuthToken = "token"
	AuthBasic = "basic"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Device: Device{
			DefaultChannel: defaultChannel,
			RequestTimeout: defaultRequestTimeout,
		},
		Paths: Paths{
			ArchiveDir: defaultArchiveDir,
			StateDir:   defaultStateDir,
			LogDir:     defaultLogDir,
		},
		API: API{
			Bind:       defaultAPIBind,
			AuthMethod: defaultAuthMethod,
		},
		Workflow: Workflow{
			QueuePollInterval: defaultQueuePollInterval,
			RetryDelay:        defaultRetryDelay,
			StopTimeout:       defaultStopTimeout,
		},
		Catalog: Catalog{
			Enabled: true,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
