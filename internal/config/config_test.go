package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"CONFIG_FILE", "APP_ENV", "LOG_LEVEL", "STORAGE_BACKEND", "POSTGRES_DSN", "SQLITE_PATH",
	"SESSIONS_FILE", "COINS_FILE", "REGISTRY_PATH", "TIMEZONE", "HTTP_ADDR", "USER_ID",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	clearEnv(t)
	c, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "development", c.Env)
	assert.Equal(t, "file", c.DBType)
	assert.Equal(t, ":8088", c.HTTPAddr)
	assert.Equal(t, "UTC", c.Location().String())
}

func TestFromEnv_FileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "sleepcat.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
storage_backend = "sqlite"
sqlite_path = "/tmp/from-file.db"
timezone = "Asia/Singapore"
http_addr = ":9000"
`), 0644))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("HTTP_ADDR", ":9100")

	c, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", c.DBType)
	assert.Equal(t, "/tmp/from-file.db", c.SQLitePath)
	assert.Equal(t, "Asia/Singapore", c.Timezone)
	assert.Equal(t, ":9100", c.HTTPAddr)
}

func TestFromEnv_BadFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("storage_backend = "), 0644))
	t.Setenv("CONFIG_FILE", path)

	_, err := FromEnv()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"postgres without dsn", func(c *Config) { c.DBType = "postgres" }, true},
		{"postgres with dsn", func(c *Config) { c.DBType = "postgres"; c.DBDSN = "postgres://x" }, false},
		{"sqlite without path", func(c *Config) { c.DBType = "sqlite"; c.SQLitePath = "" }, true},
		{"file without coins", func(c *Config) { c.FileCoins = "" }, true},
		{"unknown backend", func(c *Config) { c.DBType = "mongo" }, true},
		{"unknown env", func(c *Config) { c.Env = "qa" }, true},
		{"no registry", func(c *Config) { c.RegistryPath = "" }, true},
		{"bad timezone", func(c *Config) { c.Timezone = "Mars/Olympus" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Defaults()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
