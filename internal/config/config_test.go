package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/FocuswithJustin/sqlclient/core/conn"
	"github.com/FocuswithJustin/sqlclient/core/query"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sqlclient.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	require.Equal(t, "main", cfg.Database.Name)
	require.Equal(t, DriverMemory, cfg.Database.Driver)
	require.Equal(t, query.MaxVariables, cfg.Database.MaxVariables)
	require.Equal(t, conn.DefaultRetryPolicy(), cfg.RetryPolicy())
	require.Equal(t, "info", cfg.Log.Level)
	require.Equal(t, "json", cfg.Log.Format)
	require.Empty(t, cfg.Export.Target)
}

// defaults loads the configuration used when no file is given.
func defaults(t *testing.T) *Config {
	t.Helper()
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	return cfg
}

func TestLoadConfigFile(t *testing.T) {
	path := writeConfig(t, `
database:
  name: events
  driver: file
  path: /var/lib/sqlclient/events.db
  max_variables: 32766
  busy:
    max_attempts: 10
    initial_delay: 5ms
    max_delay: 1s
log:
  level: debug
  format: text
export:
  target: s3://backups/events.db.xz
  compress: true
  s3:
    region: eu-west-1
    endpoint: http://localhost:9000
    access_key: minio
    secret_key: minio123
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	require.Equal(t, "events", cfg.Database.Name)
	require.Equal(t, DriverFile, cfg.Database.Driver)
	require.Equal(t, "/var/lib/sqlclient/events.db", cfg.Database.Path)
	require.Equal(t, 32766, cfg.Database.MaxVariables)
	require.Equal(t, conn.RetryPolicy{MaxAttempts: 10, InitialDelay: 5 * time.Millisecond, MaxDelay: time.Second}, cfg.RetryPolicy())
	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, "text", cfg.Log.Format)
	require.True(t, cfg.Export.Compress)
	require.Equal(t, S3{Region: "eu-west-1", Endpoint: "http://localhost:9000", AccessKey: "minio", SecretKey: "minio123"}, cfg.Export.S3)
}

func TestPartialFileKeepsDefaults(t *testing.T) {
	path := writeConfig(t, "log:\n  level: warn\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "warn", cfg.Log.Level)
	require.Equal(t, "json", cfg.Log.Format)
	require.Equal(t, DriverMemory, cfg.Database.Driver)
	require.Equal(t, 50, cfg.Database.Busy.MaxAttempts)
}

func TestEnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, "database:\n  name: fromfile\n")
	t.Setenv("SQLCLIENT_DATABASE_NAME", "fromenv")
	t.Setenv("SQLCLIENT_DATABASE_DRIVER", "file")
	t.Setenv("SQLCLIENT_DATABASE_PATH", "/tmp/env.db")
	t.Setenv("SQLCLIENT_DATABASE_BUSY_MAX_ATTEMPTS", "3")
	t.Setenv("SQLCLIENT_EXPORT_COMPRESS", "true")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "fromenv", cfg.Database.Name)
	require.Equal(t, DriverFile, cfg.Database.Driver)
	require.Equal(t, "/tmp/env.db", cfg.Database.Path)
	require.Equal(t, 3, cfg.Database.Busy.MaxAttempts)
	require.True(t, cfg.Export.Compress)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorContains(t, err, "read config")

	_, err = LoadConfig(writeConfig(t, "database: [not, a, map"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(*Config) {}},
		{
			name:    "empty name",
			mutate:  func(c *Config) { c.Database.Name = "" },
			wantErr: "database.name",
		},
		{
			name:    "unknown driver",
			mutate:  func(c *Config) { c.Database.Driver = "postgres" },
			wantErr: "database.driver",
		},
		{
			name:    "file driver needs a path",
			mutate:  func(c *Config) { c.Database.Driver = DriverFile },
			wantErr: "database.path",
		},
		{
			name:    "max variables",
			mutate:  func(c *Config) { c.Database.MaxVariables = 0 },
			wantErr: "database.max_variables",
		},
		{
			name:    "attempts",
			mutate:  func(c *Config) { c.Database.Busy.MaxAttempts = 0 },
			wantErr: "max_attempts",
		},
		{
			name:    "delay order",
			mutate:  func(c *Config) { c.Database.Busy.MaxDelay = time.Microsecond },
			wantErr: "below initial_delay",
		},
		{
			name:    "negative delay",
			mutate:  func(c *Config) { c.Database.Busy.InitialDelay = -time.Second },
			wantErr: "must not be negative",
		},
		{
			name:    "log level",
			mutate:  func(c *Config) { c.Log.Level = "loud" },
			wantErr: "log.level",
		},
		{
			name:    "log format",
			mutate:  func(c *Config) { c.Log.Format = "xml" },
			wantErr: "log.format",
		},
		{
			name:    "export target",
			mutate:  func(c *Config) { c.Export.Target = "ftp://host/db" },
			wantErr: "export.target",
		},
		{
			name:    "half credentials",
			mutate:  func(c *Config) { c.Export.S3.AccessKey = "id" },
			wantErr: "set together",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaults(t)
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestValidateJoinsErrors(t *testing.T) {
	cfg := defaults(t)
	cfg.Database.Name = ""
	cfg.Log.Level = "loud"

	err := cfg.Validate()
	require.ErrorContains(t, err, "database.name")
	require.ErrorContains(t, err, "log.level")
}
