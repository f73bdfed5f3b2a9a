// Package config loads sqlclient settings from a YAML file and SQLCLIENT_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/FocuswithJustin/sqlclient/core/conn"
	"github.com/FocuswithJustin/sqlclient/core/query"
	"github.com/FocuswithJustin/sqlclient/internal/logging"
	"github.com/FocuswithJustin/sqlclient/internal/validation"
)

// EnvPrefix prefixes environment overrides, e.g. SQLCLIENT_DATABASE_PATH.
const EnvPrefix = "SQLCLIENT"

// Database drivers.
const (
	DriverMemory = "memory"
	DriverFile   = "file"
)

type Config struct {
	Database Database `mapstructure:"database"`
	Log      Log      `mapstructure:"log"`
	Export   Export   `mapstructure:"export"`
}

type Database struct {
	Name         string `mapstructure:"name"`
	Driver       string `mapstructure:"driver"`
	Path         string `mapstructure:"path"`
	MaxVariables int    `mapstructure:"max_variables"`
	Busy         Busy   `mapstructure:"busy"`
}

// Busy bounds the SQLITE_BUSY retry loop.
type Busy struct {
	MaxAttempts  int           `mapstructure:"max_attempts"`
	InitialDelay time.Duration `mapstructure:"initial_delay"`
	MaxDelay     time.Duration `mapstructure:"max_delay"`
}

type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type Export struct {
	Target   string `mapstructure:"target"`
	Compress bool   `mapstructure:"compress"`
	S3       S3     `mapstructure:"s3"`
}

type S3 struct {
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
}

func setDefaults(v *viper.Viper) {
	retry := conn.DefaultRetryPolicy()
	v.SetDefault("database.name", "main")
	v.SetDefault("database.driver", DriverMemory)
	v.SetDefault("database.path", "")
	v.SetDefault("database.max_variables", query.MaxVariables)
	v.SetDefault("database.busy.max_attempts", retry.MaxAttempts)
	v.SetDefault("database.busy.initial_delay", retry.InitialDelay)
	v.SetDefault("database.busy.max_delay", retry.MaxDelay)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("export.target", "")
	v.SetDefault("export.compress", false)
	v.SetDefault("export.s3.region", "")
	v.SetDefault("export.s3.endpoint", "")
	v.SetDefault("export.s3.access_key", "")
	v.SetDefault("export.s3.secret_key", "")
}

// LoadConfig reads the YAML file at path, applies defaults and environment
// overrides, and validates the result. An empty path loads defaults and
// environment only.
func LoadConfig(path string) (*Config, error) {
	cfg, err := load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Database.Name == "" {
		errs = append(errs, errors.New("database.name must not be empty"))
	}
	switch c.Database.Driver {
	case DriverMemory:
	case DriverFile:
		if err := validation.ValidatePath(c.Database.Path); err != nil {
			errs = append(errs, fmt.Errorf("database.path: %w", err))
		}
	default:
		errs = append(errs, fmt.Errorf("database.driver must be %q or %q, got %q", DriverMemory, DriverFile, c.Database.Driver))
	}
	if c.Database.MaxVariables <= 0 {
		errs = append(errs, fmt.Errorf("database.max_variables must be positive, got %d", c.Database.MaxVariables))
	}

	busy := c.Database.Busy
	if busy.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("database.busy.max_attempts must be at least 1, got %d", busy.MaxAttempts))
	}
	if busy.InitialDelay < 0 || busy.MaxDelay < 0 {
		errs = append(errs, errors.New("database.busy delays must not be negative"))
	} else if busy.MaxDelay < busy.InitialDelay {
		errs = append(errs, fmt.Errorf("database.busy.max_delay %s is below initial_delay %s", busy.MaxDelay, busy.InitialDelay))
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if _, err := logging.ParseFormat(c.Log.Format); err != nil {
		errs = append(errs, fmt.Errorf("log.format: %w", err))
	}

	if c.Export.Target != "" {
		if err := validation.ValidateTarget(c.Export.Target); err != nil {
			errs = append(errs, fmt.Errorf("export.target: %w", err))
		}
	}
	if (c.Export.S3.AccessKey == "") != (c.Export.S3.SecretKey == "") {
		errs = append(errs, errors.New("export.s3.access_key and secret_key must be set together"))
	}

	return errors.Join(errs...)
}

// RetryPolicy returns the busy retry policy the adapter should use.
func (c *Config) RetryPolicy() conn.RetryPolicy {
	return conn.RetryPolicy{
		MaxAttempts:  c.Database.Busy.MaxAttempts,
		InitialDelay: c.Database.Busy.InitialDelay,
		MaxDelay:     c.Database.Busy.MaxDelay,
	}
}
