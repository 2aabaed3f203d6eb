package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables consulted when the matching config value is empty.
const (
	EnvDeviceURL      = "HIKFETCH_CAMERA_URL"
	EnvDeviceUsername = "HIKFETCH_CAMERA_USERNAME"
	EnvDevicePassword = "HIKFETCH_CAMERA_PASSWORD"
	EnvArchiveDir     = "HIKFETCH_DOWNLOAD_DIR"
	EnvLogLevel       = "HIKFETCH_LOG_LEVEL"
	EnvAPIBind        = "HIKFETCH_API_BIND"
	EnvAPIToken       = "HIKFETCH_API_TOKEN"
	EnvAuthMethod     = "HIKFETCH_AUTH_METHOD"
	EnvWebUsername    = "HIKFETCH_WEB_USERNAME"
	EnvWebPassword    = "HIKFETCH_WEB_PASSWORD"
	EnvNtfyTopic      = "HIKFETCH_NTFY_TOPIC"
)

// loadDotEnv reads .env from the working directory. Variables already set
// in the process environment win, and a missing file is ignored.
func loadDotEnv() {
	_ = godotenv.Load(".env")
}

func fromEnv(current *string, key string) {
	if strings.TrimSpace(*current) != "" {
		return
	}
	if value, ok := os.LookupEnv(key); ok {
		*current = strings.TrimSpace(value)
	}
}
