package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/chrisapx/fif-client-sub000/internal/common"
	"github.com/chrisapx/fif-client-sub000/internal/fineract"
	"github.com/chrisapx/fif-client-sub000/internal/navstate"
	"github.com/chrisapx/fif-client-sub000/internal/session"
	"github.com/chrisapx/fif-client-sub000/internal/storage"
	"github.com/go-viper/mapstructure/v2"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

const EnvPrefix = "FIF"

var ErrMissingSecret = errors.New(
	"navigation state secret is not configured. Set navstate.secret or FIF_NAVSTATE_SECRET")

func DefaultConfig() *Config {

	v := viper.New()
	setDefaults(v)

	config, err := unmarshalConfig(v)
	if err != nil {
		// Defaults are static; this only fails on a programming error
		panic(fmt.Sprintf("error unmarshaling default config: %v", err))
	}

	return config
}

// Load loads the configuration from the config file, a .env file and FIF_
// environment variables, in increasing order of precedence.
func Load(configFile string) (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, err
	}

	v := viper.New()

	setupViperConfig(v, configFile)
	bindEnvironmentVariables(v)

	config, err := readAndUnmarshalConfig(v)
	if err != nil {
		return nil, err
	}

	if err := setupLogging(config, v); err != nil {
		return nil, err
	}

	return config, nil
}

// loadEnvFile loads the .env file if it exists
func loadEnvFile() error {
	if err := gotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("error loading .env file: %w", err)
		}
	}
	return nil
}

// ConfigDir is where per-user configuration and storage live.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil || len(home) == 0 {
		return filepath.Join(".", ".fif")
	}
	return filepath.Join(home, ".config", "fif")
}

func setupViperConfig(v *viper.Viper, configFile string) {
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/fif")
	v.AddConfigPath(ConfigDir())

	if len(configFile) > 0 {
		v.SetConfigFile(configFile)
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// bindEnvironmentVariables binds nested keys so they are visible to
// Unmarshal even when no config file mentions them.
func bindEnvironmentVariables(v *viper.Viper) {

	v.BindEnv("fineract.endpoint", "FIF_FINERACT_ENDPOINT")
	v.BindEnv("fineract.tenant", "FIF_FINERACT_TENANT")
	v.BindEnv("fineract.timeout", "FIF_FINERACT_TIMEOUT")
	v.BindEnv("fineract.insecure", "FIF_FINERACT_INSECURE")

	v.BindEnv("session.duration", "FIF_SESSION_DURATION")
	v.BindEnv("session.inactivity_timeout", "FIF_SESSION_INACTIVITY_TIMEOUT")
	v.BindEnv("session.extend_on_activity", "FIF_SESSION_EXTEND_ON_ACTIVITY")

	v.BindEnv("navstate.secret", "FIF_NAVSTATE_SECRET")
	v.BindEnv("navstate.salt", "FIF_NAVSTATE_SALT")

	v.BindEnv("storage.driver", "FIF_STORAGE_DRIVER")
	v.BindEnv("storage.path", "FIF_STORAGE_PATH")
	v.BindEnv("storage.namespace", "FIF_STORAGE_NAMESPACE")

	v.BindEnv("logging.level", "FIF_LOGGING_LEVEL")
	v.BindEnv("logging.format", "FIF_LOGGING_FORMAT")
	v.BindEnv("logging.output", "FIF_LOGGING_OUTPUT")
}

func readAndUnmarshalConfig(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file; defaults and environment variables only
	}

	return unmarshalConfig(v)
}

func unmarshalConfig(v *viper.Viper) (*Config, error) {

	var config Config
	err := v.Unmarshal(&config, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		durationHook(),
		mapstructure.StringToSliceHookFunc(","),
	)))
	if err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// durationHook accepts Go durations ("30s"), ISO 8601 durations ("PT30S")
// and bare numbers, which are read as milliseconds.
func durationHook() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {

		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch value := data.(type) {
		case string:
			value = strings.TrimSpace(value)
			if ms, err := strconv.ParseInt(value, 10, 64); err == nil {
				return time.Duration(ms) * time.Millisecond, nil
			}
			return common.ParseDuration(value)
		case int:
			return time.Duration(value) * time.Millisecond, nil
		case int64:
			return time.Duration(value) * time.Millisecond, nil
		case float64:
			return time.Duration(value * float64(time.Millisecond)), nil
		default:
			return data, nil
		}
	}
}

// Validate checks the settings every command needs.
func (c *Config) Validate() error {

	if len(strings.TrimSpace(c.Fineract.Endpoint)) == 0 {
		return errors.New("fineract endpoint is not configured. Set fineract.endpoint or FIF_FINERACT_ENDPOINT")
	}

	if len(c.NavState.Secret) == 0 {
		return ErrMissingSecret
	}

	if _, err := storage.ParseDriver(string(c.Storage.Driver)); err != nil {
		return err
	}

	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {

	v.SetDefault("fineract.endpoint", "")
	v.SetDefault("fineract.tenant", fineract.DefaultTenant)
	v.SetDefault("fineract.timeout", "30s")
	v.SetDefault("fineract.locale", fineract.DefaultLocale)
	v.SetDefault("fineract.insecure", false)

	v.SetDefault("session.duration", session.DefaultSessionDuration.String())
	v.SetDefault("session.inactivity_timeout", session.DefaultInactivityTimeout.String())
	v.SetDefault("session.extend_on_activity", false)

	v.SetDefault("navstate.secret", "")
	v.SetDefault("navstate.salt", navstate.DefaultSalt)

	v.SetDefault("storage.driver", string(storage.DriverFile))
	v.SetDefault("storage.path", ConfigDir())
	v.SetDefault("storage.namespace", "")

	v.SetDefault("shell.refresh_interval", "1m")
	v.SetDefault("shell.mouse", true)

	v.SetDefault("logging.level", "warn")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stderr")
}

// setupLogging configures the logging system based on the config
func setupLogging(config *Config, v *viper.Viper) error {

	logrusLevel, err := logrus.ParseLevel(config.Logging.Level)
	if err != nil {
		return fmt.Errorf("error parsing log level: %w", err)
	}

	logrus.SetLevel(logrusLevel)

	config.logger = NewRingLogger(defaultLogHistory)
	logrus.AddHook(config.logger)

	switch strings.ToLower(config.Logging.Format) {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	case "text":
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	default:
		logrus.WithFields(logrus.Fields{
			"format": config.Logging.Format,
		}).Warn("Unknown log format")
	}

	output, err := openLogOutput(config.Logging.Output)
	if err != nil {
		return err
	}
	logrus.SetOutput(output)

	// Dump out the config settings if in debug mode
	if logrusLevel >= logrus.DebugLevel {
		for key, value := range v.AllSettings() {
			if key == "navstate" {
				continue
			}
			logrus.Debugf("Config '%s': %v", key, value)
		}
	}

	logrus.WithField("run", config.logger.RunID().String()).Debugln("Logging configured")

	return nil
}

func openLogOutput(output string) (io.Writer, error) {
	switch strings.ToLower(strings.TrimSpace(output)) {
	case "", "stderr":
		return os.Stderr, nil
	case "stdout":
		return os.Stdout, nil
	case "none", "discard":
		return io.Discard, nil
	default:
		if err := os.MkdirAll(filepath.Dir(output), 0700); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		file, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		return file, nil
	}
}

// hostnameOf names per-server storage after the API host.
func hostnameOf(endpoint string) string {
	parsed, err := url.Parse(strings.TrimSpace(endpoint))
	if err != nil || len(parsed.Hostname()) == 0 {
		return "default"
	}
	return parsed.Hostname()
}
