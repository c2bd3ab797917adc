package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. DOCRULES_LOG_LEVEL
const EnvPrefix = "DOCRULES"

// Config holds the full application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`
	Schemas  SchemasConfig  `yaml:"schemas" mapstructure:"schemas"`
	Storage  StorageConfig  `yaml:"storage" mapstructure:"storage"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port                 int           `yaml:"port" mapstructure:"port" validate:"min=1,max=65535"`
	ReadTimeout          time.Duration `yaml:"read_timeout" mapstructure:"read_timeout" validate:"gt=0"`
	WriteTimeout         time.Duration `yaml:"write_timeout" mapstructure:"write_timeout" validate:"gt=0"`
	IdleTimeout          time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout" validate:"gt=0"`
	RequestTimeout       time.Duration `yaml:"request_timeout" mapstructure:"request_timeout" validate:"gt=0"`
	ShutdownTimeout      time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout" validate:"gt=0"`
	SlowRequestThreshold time.Duration `yaml:"slow_request_threshold" mapstructure:"slow_request_threshold"`
}

// DatabaseConfig configures the PostgreSQL connection.
type DatabaseConfig struct {
	URL          string `yaml:"url" mapstructure:"url"`
	MaxOpenConns int    `yaml:"max_open_conns" mapstructure:"max_open_conns" validate:"min=0"`
}

// SchemasConfig selects where intake schemas are loaded from.
type SchemasConfig struct {
	Source    string        `yaml:"source" mapstructure:"source" validate:"oneof=file postgres"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	CacheSize int           `yaml:"cache_size" mapstructure:"cache_size" validate:"min=0"`
	CacheTTL  time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl" validate:"min=0"`
}

// StorageConfig selects the transaction repository.
type StorageConfig struct {
	Transactions string `yaml:"transactions" mapstructure:"transactions" validate:"oneof=memory postgres"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level           string `yaml:"level" mapstructure:"level"`
	ErrorSampleRate int    `yaml:"error_sample_rate" mapstructure:"error_sample_rate" validate:"min=1"`
	OTELEnabled     bool   `yaml:"otel_enabled" mapstructure:"otel_enabled"`
	ServiceName     string `yaml:"service_name" mapstructure:"service_name"`
}

// NeedsDatabase reports whether any configured component uses PostgreSQL
func (c *Config) NeedsDatabase() bool {
	return c.Schemas.Source == "postgres" || c.Storage.Transactions == "postgres"
}

// Load reads configuration from defaults, an optional YAML file, a .env file in the
// working directory and the environment, in increasing order of precedence. An empty
// configFile looks for docrules.yaml in the working directory.
func Load(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	v := viper.New()

	// Config file
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("docrules")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Environment
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Platform conventions win over the prefixed names
	_ = v.BindEnv("database.url", "DATABASE_URL", EnvPrefix+"_DATABASE_URL")
	_ = v.BindEnv("server.port", "PORT", EnvPrefix+"_SERVER_PORT")

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.request_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.slow_request_threshold", time.Second)
	v.SetDefault("database.url", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("schemas.source", "file")
	v.SetDefault("schemas.dir", "schemas")
	v.SetDefault("schemas.cache_size", 256)
	v.SetDefault("schemas.cache_ttl", 5*time.Minute)
	v.SetDefault("storage.transactions", "memory")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.error_sample_rate", 1)
	v.SetDefault("log.otel_enabled", false)
	v.SetDefault("log.service_name", "docrules")

	// Read config file (optional unless named explicitly)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field ranges and cross-field requirements
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config: invalid: %w", err)
	}
	if c.NeedsDatabase() && c.Database.URL == "" {
		return errors.New("config: invalid: database.url (DATABASE_URL) is required when schemas.source or storage.transactions is postgres")
	}
	if c.Schemas.Source == "file" && c.Schemas.Dir == "" {
		return errors.New("config: invalid: schemas.dir is required when schemas.source is file")
	}
	return nil
}
