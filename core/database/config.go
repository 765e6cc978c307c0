package database

import "time"

// Config holds SQLite connection settings.
type Config struct {
	Path          string `yaml:"path" envconfig:"DB_PATH"`
	MigrationsDir string `yaml:"migrations_dir" envconfig:"DB_MIGRATIONS_DIR"`
	// BusyTimeoutMS is how long a writer waits on a locked database before failing.
	BusyTimeoutMS  int `yaml:"busy_timeout_ms" envconfig:"DB_BUSY_TIMEOUT_MS"`
	MaxConnections int `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`
}

const (
	defaultPath           = "flexyframe.db"
	defaultMigrationsDir  = "migrations"
	defaultBusyTimeoutMS  = 5000
	defaultMaxConnections = 1
)

// WithDefaults fills zero fields with defaults.
func (c Config) WithDefaults() Config {
	if c.Path == "" {
		c.Path = defaultPath
	}
	if c.MigrationsDir == "" {
		c.MigrationsDir = defaultMigrationsDir
	}
	if c.BusyTimeoutMS <= 0 {
		c.BusyTimeoutMS = defaultBusyTimeoutMS
	}
	if c.MaxConnections <= 0 {
		c.MaxConnections = defaultMaxConnections
	}
	return c
}

func (c Config) busyTimeout() time.Duration {
	return time.Duration(c.BusyTimeoutMS) * time.Millisecond
}
