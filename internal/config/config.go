package config

import (
	"os"
	"strconv"

	"github.com/dustin/go-humanize"
)

// UploadConfig holds the upload root and the limits applied to every upload.
type UploadConfig struct {
	Root      string
	MaxSize   int64
	Collision string
	Field     string
	ChunkSize int
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level    string
	Timezone string
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables.
type AppConfig struct {
	AppHost            string
	Port               string
	SwaggerEnabled     bool
	ShutdownTimeoutSec int
	Upload             UploadConfig
	Log                LogConfig
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
// Sizes accept human units such as "100MiB" or "32KB".
func Load() *AppConfig {
	return &AppConfig{
		AppHost:            getEnv("APP_HOST", "localhost:8080"),
		Port:               getEnv("PORT", "8080"),
		SwaggerEnabled:     getEnvBool("SWAGGER_ENABLED", true),
		ShutdownTimeoutSec: getEnvInt("SHUTDOWN_TIMEOUT_SEC", 10),
		Upload: UploadConfig{
			Root:      getEnv("UPLOAD_ROOT", "./uploads"),
			MaxSize:   getEnvBytes("MAX_UPLOAD_SIZE", 100*humanize.MiByte),
			Collision: getEnv("COLLISION_POLICY", "overwrite"),
			Field:     getEnv("UPLOAD_FIELD", "file"),
			ChunkSize: int(getEnvBytes("WRITE_CHUNK_SIZE", 32*humanize.KiByte)),
		},
		Log: LogConfig{
			Level:    getEnv("LOG_LEVEL", "info"),
			Timezone: getEnv("LOG_TIMEZONE", "UTC"),
		},
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

// getEnvBytes parses a size like "5MB" or "64KiB". Zero and unparsable values
// fall back to def.
func getEnvBytes(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		n, err := humanize.ParseBytes(v)
		if err == nil && n > 0 {
			if n > 1<<62 {
				n = 1 << 62
			}
			return int64(n)
		}
	}
	return def
}
