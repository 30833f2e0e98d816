package config

import (
	"time"

	"github.com/chrisapx/fif-client-sub000/internal/fineract"
	"github.com/chrisapx/fif-client-sub000/internal/session"
	"github.com/chrisapx/fif-client-sub000/internal/storage"
)

// Config represents the application configuration structure
type Config struct {
	Fineract fineract.Config `mapstructure:"fineract"`
	Session  session.Config  `mapstructure:"session"`
	NavState NavStateConfig  `mapstructure:"navstate"`
	Storage  storage.Config  `mapstructure:"storage"`
	Shell    ShellConfig     `mapstructure:"shell"`
	Logging  LoggingConfig   `mapstructure:"logging"`

	logger *RingLogger
}

// NavStateConfig keys the navigation state codec. Every build that must
// read another's links needs the same secret and salt.
type NavStateConfig struct {
	Secret string `mapstructure:"secret"`
	Salt   string `mapstructure:"salt"`
}

type ShellConfig struct {
	// RefreshInterval reloads balances in the background; zero disables it.
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	Mouse           bool          `mapstructure:"mouse"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// GetLogger returns the in-memory log history, or nil before logging was
// set up.
func (c *Config) GetLogger() *RingLogger {
	return c.logger
}

func (c *Config) GetStorageNamespace() string {
	if len(c.Storage.Namespace) > 0 {
		return c.Storage.Namespace
	}
	return hostnameOf(c.Fineract.Endpoint)
}
