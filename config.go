package docstore

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultClient is the client name used by entities that do not declare one.
const DefaultClient = "default"

// Config holds connection settings for every configured client.
type Config struct {
	MongoDB MongoConfig `mapstructure:"mongodb"`
	Log     LogConfig   `mapstructure:"log"`
}

// MongoConfig describes the default client plus any named clients. Named clients
// inherit the timeouts of the default one.
type MongoConfig struct {
	URI              string                  `mapstructure:"uri"`
	Database         string                  `mapstructure:"database"`
	ConnectTimeout   time.Duration           `mapstructure:"connect_timeout"`
	OperationTimeout time.Duration           `mapstructure:"operation_timeout"`
	Clients          map[string]ClientConfig `mapstructure:"clients"`
}

type ClientConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DefaultConfig returns the configuration used when nothing overrides it.
func DefaultConfig() Config {
	return Config{
		MongoDB: MongoConfig{
			URI:              "mongodb://localhost:27017",
			ConnectTimeout:   5 * time.Second,
			OperationTimeout: 5 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Client returns the settings of the named client. The default client is built from
// the top level uri and database.
func (c MongoConfig) Client(name string) (ClientConfig, bool) {
	if name == "" || name == DefaultClient {
		if c.URI == "" {
			return ClientConfig{}, false
		}
		return ClientConfig{URI: c.URI, Database: c.Database}, true
	}

	client, ok := c.Clients[name]
	return client, ok
}

// ClientNames lists the default client (when configured) followed by the named
// clients in lexical order.
func (c MongoConfig) ClientNames() []string {
	var named []string
	for name := range c.Clients {
		if name != DefaultClient {
			named = append(named, name)
		}
	}
	sort.Strings(named)

	if c.URI == "" {
		return named
	}
	return append([]string{DefaultClient}, named...)
}

// LoadConfig reads configuration with precedence env > file > defaults. The file is
// optional; environment variables are prefixed with envPrefix, e.g. DOCSTORE_MONGODB_URI.
func LoadConfig(configFile, envPrefix string) (*Config, error) {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("mongodb.uri", defaults.MongoDB.URI)
	v.SetDefault("mongodb.database", defaults.MongoDB.Database)
	v.SetDefault("mongodb.connect_timeout", defaults.MongoDB.ConnectTimeout)
	v.SetDefault("mongodb.operation_timeout", defaults.MongoDB.OperationTimeout)
	v.SetDefault("log.level", defaults.Log.Level)
	v.SetDefault("log.format", defaults.Log.Format)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	if envPrefix != "" {
		v.SetEnvPrefix(envPrefix)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if c.MongoDB.URI == "" && len(c.MongoDB.Clients) == 0 {
		errs = append(errs, errors.New("mongodb.uri is required when no named clients are configured"))
	}
	if c.MongoDB.ConnectTimeout < 0 {
		errs = append(errs, errors.New("mongodb.connect_timeout must not be negative"))
	}
	if c.MongoDB.OperationTimeout < 0 {
		errs = append(errs, errors.New("mongodb.operation_timeout must not be negative"))
	}
	for name, client := range c.MongoDB.Clients {
		if client.URI == "" {
			errs = append(errs, fmt.Errorf("mongodb.clients.%s.uri is required", name))
		}
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !SliceContains(validLevels, strings.ToLower(c.Log.Level)) {
		errs = append(errs, fmt.Errorf("invalid log.level: %s (must be one of: %v)", c.Log.Level, validLevels))
	}
	validFormats := []string{"json", "text"}
	if !SliceContains(validFormats, c.Log.Format) {
		errs = append(errs, fmt.Errorf("invalid log.format: %s (must be one of: %v)", c.Log.Format, validFormats))
	}

	return errors.Join(errs...)
}
