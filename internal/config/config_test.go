package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoad(t *testing.T) {
	t.Setenv("UPLOAD_ROOT", "/srv/uploads")
	t.Setenv("MAX_UPLOAD_SIZE", "5MB")
	t.Setenv("COLLISION_POLICY", "reject")
	t.Setenv("WRITE_CHUNK_SIZE", "64KiB")
	t.Setenv("SHUTDOWN_TIMEOUT_SEC", "3")
	t.Setenv("SWAGGER_ENABLED", "false")
	t.Setenv("LOG_TIMEZONE", "Asia/Jakarta")

	cfg := Load()

	assert.Equal(t, "/srv/uploads", cfg.Upload.Root)
	assert.Equal(t, int64(5_000_000), cfg.Upload.MaxSize)
	assert.Equal(t, "reject", cfg.Upload.Collision)
	assert.Equal(t, 64*1024, cfg.Upload.ChunkSize)
	assert.Equal(t, 3, cfg.ShutdownTimeoutSec)
	assert.False(t, cfg.SwaggerEnabled)
	assert.Equal(t, "Asia/Jakarta", cfg.Log.Timezone)
}

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"APP_HOST", "PORT", "UPLOAD_ROOT", "MAX_UPLOAD_SIZE", "COLLISION_POLICY",
		"UPLOAD_FIELD", "WRITE_CHUNK_SIZE", "LOG_LEVEL", "LOG_TIMEZONE", "SWAGGER_ENABLED", "SHUTDOWN_TIMEOUT_SEC"} {
		t.Setenv(k, "")
	}

	cfg := Load()

	assert.Equal(t, "localhost:8080", cfg.AppHost)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "./uploads", cfg.Upload.Root)
	assert.Equal(t, int64(100<<20), cfg.Upload.MaxSize)
	assert.Equal(t, "overwrite", cfg.Upload.Collision)
	assert.Equal(t, "file", cfg.Upload.Field)
	assert.Equal(t, 32<<10, cfg.Upload.ChunkSize)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "UTC", cfg.Log.Timezone)
	assert.True(t, cfg.SwaggerEnabled)
	assert.Equal(t, 10, cfg.ShutdownTimeoutSec)
}

func TestGetEnv(t *testing.T) {
	key := "TEST_ENV_VAR"
	os.Setenv(key, "value")
	defer os.Unsetenv(key)

	assert.Equal(t, "value", getEnv(key, "default"))
	assert.Equal(t, "default", getEnv("NON_EXISTENT", "default"))
}

func TestGetEnvBool(t *testing.T) {
	key := "TEST_BOOL_VAR"

	os.Setenv(key, "true")
	assert.True(t, getEnvBool(key, false))

	os.Setenv(key, "false")
	assert.False(t, getEnvBool(key, true))

	os.Setenv(key, "invalid")
	assert.True(t, getEnvBool(key, true))

	os.Unsetenv(key)
	assert.True(t, getEnvBool(key, true))
}

func TestGetEnvInt(t *testing.T) {
	key := "TEST_INT_VAR"

	os.Setenv(key, "123")
	assert.Equal(t, 123, getEnvInt(key, 0))

	os.Setenv(key, "invalid")
	assert.Equal(t, 10, getEnvInt(key, 10))

	os.Unsetenv(key)
	assert.Equal(t, 10, getEnvInt(key, 10))
}

func TestGetEnvBytes(t *testing.T) {
	key := "TEST_BYTES_VAR"

	os.Setenv(key, "1.5 MiB")
	assert.Equal(t, int64(1572864), getEnvBytes(key, 0))

	os.Setenv(key, "2048")
	assert.Equal(t, int64(2048), getEnvBytes(key, 0))

	os.Setenv(key, "lots")
	assert.Equal(t, int64(7), getEnvBytes(key, 7))

	os.Setenv(key, "0")
	assert.Equal(t, int64(7), getEnvBytes(key, 7))

	os.Unsetenv(key)
	assert.Equal(t, int64(7), getEnvBytes(key, 7))
}
