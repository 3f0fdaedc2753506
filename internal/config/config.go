// Package config provides configuration loading and validation for hiveauth.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fzdarsky/hiveauth/internal/logging"
)

const (
	configFileName    = "config.yaml"
	storeFileName     = "credentials.db"
	defaultTimeout    = "10s"
	defaultBootstrap  = "https://sso.hivehome.com/"
	defaultAuthScheme = ""

	envUsername     = "HIVE_USERNAME"
	envPassword     = "HIVE_PASSWORD"
	envPoolID       = "HIVE_POOL_ID"
	envClientID     = "HIVE_CLIENT_ID"
	envRegion       = "HIVE_REGION"
	envClientSecret = "HIVE_CLIENT_SECRET"
	envBootstrapURL = "HIVE_BOOTSTRAP_URL"
	envEndpoint     = "HIVE_ENDPOINT"
	envTimeout      = "HIVE_TIMEOUT"
	envStorePath    = "HIVE_STORE_PATH"
	envDeviceName   = "HIVE_DEVICE_NAME"
	envLogLevel     = "HIVE_LOG_LEVEL"
	envLogFormat    = "HIVE_LOG_FORMAT"
)

var poolIDPattern = regexp.MustCompile(`^[a-z]{2}(-[a-z]+)+-\d+_[A-Za-z0-9]+$`)

// Config holds the configuration for the hivectl tool and the engine it drives.
type Config struct {
	Username     string          `yaml:"username,omitempty"`
	PoolID       string          `yaml:"pool_id,omitempty"`
	ClientID     string          `yaml:"client_id,omitempty"`
	Region       string          `yaml:"region,omitempty"`
	ClientSecret string          `yaml:"client_secret,omitempty"`
	BootstrapURL string          `yaml:"bootstrap_url,omitempty"`
	Endpoint     string          `yaml:"endpoint,omitempty"`
	Timeout      string          `yaml:"timeout,omitempty"`
	DeviceName   string          `yaml:"device_name,omitempty"`
	StorePath    string          `yaml:"store_path,omitempty"`
	AuthScheme   string          `yaml:"auth_scheme,omitempty"`
	Logging      LoggingSettings `yaml:"logging,omitempty"`

	// Password is only ever taken from the environment or a prompt.
	Password string `yaml:"-"`

	path string
}

// LoggingSettings contains logging configuration.
type LoggingSettings struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

// Flags carries command-line overrides. Empty values leave the loaded config untouched.
type Flags struct {
	Username  string
	PoolID    string
	ClientID  string
	Region    string
	Endpoint  string
	Timeout   string
	StorePath string
	LogLevel  string
	LogFormat string
}

// Default returns a configuration holding only defaults.
func Default() *Config {
	return &Config{
		BootstrapURL: defaultBootstrap,
		Timeout:      defaultTimeout,
		AuthScheme:   defaultAuthScheme,
		Logging: LoggingSettings{
			Level:  string(logging.LevelInfo),
			Format: string(logging.FormatHuman),
		},
	}
}

// Load loads configuration from file, environment variables, and applies defaults.
// Precedence order (highest to lowest):
// 1. Environment variables
// 2. Config file
// 3. Defaults
//
// An empty path selects <UserConfigDir>/hiveauth/config.yaml. The file is optional.
// Command-line flags are applied by the caller through ApplyFlags.
func Load(path string) (*Config, error) {
	if path == "" {
		dir, err := UserConfigDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(dir, configFileName)
	}

	cfg := Default()
	cfg.path = path

	if err := cfg.loadFromFile(path); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	cfg.loadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path) // #nosec G304 - path is the user's config file
	if err != nil {
		return err
	}

	var fileConfig Config
	if err := yaml.Unmarshal(data, &fileConfig); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.merge(&fileConfig)
	return nil
}

// merge copies every non-empty value of other onto c.
func (c *Config) merge(other *Config) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&c.Username, other.Username)
	set(&c.PoolID, other.PoolID)
	set(&c.ClientID, other.ClientID)
	set(&c.Region, other.Region)
	set(&c.ClientSecret, other.ClientSecret)
	set(&c.BootstrapURL, other.BootstrapURL)
	set(&c.Endpoint, other.Endpoint)
	set(&c.Timeout, other.Timeout)
	set(&c.DeviceName, other.DeviceName)
	set(&c.StorePath, other.StorePath)
	set(&c.AuthScheme, other.AuthScheme)
	set(&c.Logging.Level, other.Logging.Level)
	set(&c.Logging.Format, other.Logging.Format)
	set(&c.Password, other.Password)
}

func (c *Config) loadFromEnv() {
	c.merge(&Config{
		Username:     os.Getenv(envUsername),
		Password:     os.Getenv(envPassword),
		PoolID:       os.Getenv(envPoolID),
		ClientID:     os.Getenv(envClientID),
		Region:       os.Getenv(envRegion),
		ClientSecret: os.Getenv(envClientSecret),
		BootstrapURL: os.Getenv(envBootstrapURL),
		Endpoint:     os.Getenv(envEndpoint),
		Timeout:      os.Getenv(envTimeout),
		StorePath:    os.Getenv(envStorePath),
		DeviceName:   os.Getenv(envDeviceName),
		Logging: LoggingSettings{
			Level:  os.Getenv(envLogLevel),
			Format: os.Getenv(envLogFormat),
		},
	})
}

// ApplyFlags applies command-line flag values to the configuration.
// This should be called after Load() to apply the highest priority values.
func (c *Config) ApplyFlags(f Flags) error {
	c.merge(&Config{
		Username:  f.Username,
		PoolID:    f.PoolID,
		ClientID:  f.ClientID,
		Region:    f.Region,
		Endpoint:  f.Endpoint,
		Timeout:   f.Timeout,
		StorePath: f.StorePath,
		Logging:   LoggingSettings{Level: f.LogLevel, Format: f.LogFormat},
	})
	return c.Validate()
}

// Validate validates the configuration values.
// Username and pool metadata may be empty: pool metadata is resolved from the
// bootstrap page and commands that need a username check it themselves.
func (c *Config) Validate() error {
	if _, err := c.GetTimeout(); err != nil {
		return err
	}

	if c.PoolID != "" && !poolIDPattern.MatchString(c.PoolID) {
		return fmt.Errorf("invalid pool_id %q: expected <region>_<name>", c.PoolID)
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}

	if _, err := logging.ParseFormat(c.Logging.Format); err != nil {
		return fmt.Errorf("logging.format: %w", err)
	}

	return nil
}

// RequireUsername checks if username is set and returns an error with helpful message if not.
func (c *Config) RequireUsername() error {
	if c.Username == "" {
		return fmt.Errorf("username is required: use --username, set %s, or add 'username' to %s",
			envUsername, configFileName)
	}
	return nil
}

// GetTimeout parses and returns the provider request timeout.
func (c *Config) GetTimeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("timeout must be positive")
	}
	return d, nil
}

// GetStorePath returns the credential store location, defaulting to the user cache dir.
func (c *Config) GetStorePath() (string, error) {
	if c.StorePath != "" {
		return c.StorePath, nil
	}
	dir, err := UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, storeFileName), nil
}

// Path returns the file the configuration was loaded from.
func (c *Config) Path() string {
	return c.path
}

// SavePool records the resolved pool in the config file. Every other value
// is written back exactly as the file held it, so values that came from the
// environment or flags, such as HIVE_CLIENT_SECRET, never reach the disk.
func (c *Config) SavePool(poolID, clientID string) error {
	if c.path == "" {
		return fmt.Errorf("config has no file path")
	}

	var file Config
	if err := file.loadFromFile(c.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to load config file: %w", err)
	}
	file.PoolID, file.ClientID = poolID, clientID
	c.PoolID, c.ClientID = poolID, clientID

	if err := EnsureDir(filepath.Dir(c.path)); err != nil {
		return err
	}

	data, err := yaml.Marshal(&file)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.WriteFile(c.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
