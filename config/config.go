// Package config loads the service configuration.
// Values come from config.yaml (optional) and DATASHARE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/weiwangfds/datashare/internal/logger"
)

// Config top-level service configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Upload   UploadConfig   `mapstructure:"upload"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Log      logger.Config  `mapstructure:"log"`
	Mirror   MirrorConfig   `mapstructure:"mirror"`
	Events   EventsConfig   `mapstructure:"events"`
	Cache    CacheConfig    `mapstructure:"cache"`
}

// ServerConfig HTTP server settings
type ServerConfig struct {
	Port         int    `mapstructure:"port"`          // plain HTTP port
	HTTPSPort    int    `mapstructure:"https_port"`    // HTTPS port, used when EnableHTTPS is set
	EnableHTTPS  bool   `mapstructure:"enable_https"`  // serve TLS instead of plain HTTP
	EnableHTTP2  bool   `mapstructure:"enable_http2"`  // negotiate h2 on the TLS listener
	TLSCertFile  string `mapstructure:"tls_cert_file"` // certificate path
	TLSKeyFile   string `mapstructure:"tls_key_file"`  // private key path
	ReadTimeout  int    `mapstructure:"read_timeout"`  // seconds
	WriteTimeout int    `mapstructure:"write_timeout"` // seconds
	Environment  string `mapstructure:"environment"`   // development, production...
}

// DatabaseConfig database connection settings
type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"`            // sqlite, sqlite-pure or postgres
	DSN             string `mapstructure:"dsn"`               // file path for sqlite, connection string for postgres
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`    // ignored for sqlite
	MaxOpenConns    int    `mapstructure:"max_open_conns"`    // ignored for sqlite
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // seconds
	LogLevel        string `mapstructure:"log_level"`         // silent, error, warn, info
}

// UploadConfig blob intake settings
type UploadConfig struct {
	ScratchDir     string `mapstructure:"scratch_dir"`      // staging area for uploads
	MaxDatasetSize int64  `mapstructure:"max_dataset_size"` // bytes
	ClamAVAddress  string `mapstructure:"clamav_address"`   // e.g. tcp://localhost:3310, empty disables scanning
}

// AuthConfig token verification settings
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

// MirrorConfig object storage mirror of dataset payloads
type MirrorConfig struct {
	Provider  string `mapstructure:"provider"` // "", aliyun, tencent, qiniu or minio
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Endpoint  string `mapstructure:"endpoint"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Prefix    string `mapstructure:"prefix"` // object key prefix
}

// EventsConfig dataset event notifications
type EventsConfig struct {
	NATSURL       string `mapstructure:"nats_url"` // empty disables publishing
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

// CacheConfig in-process caches
type CacheConfig struct {
	UserCacheSize int           `mapstructure:"user_cache_size"`
	UserCacheTTL  time.Duration `mapstructure:"user_cache_ttl"`
}

// Load reads the configuration.
// A missing config file is not an error; defaults and environment variables apply.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/datashare")

	v.SetEnvPrefix("DATASHARE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that have no usable default
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret must be set (DATASHARE_AUTH_JWT_SECRET)")
	}
	if c.Upload.MaxDatasetSize <= 0 {
		return fmt.Errorf("upload.max_dataset_size must be positive, got %d", c.Upload.MaxDatasetSize)
	}
	if c.Server.EnableHTTPS && (c.Server.TLSCertFile == "" || c.Server.TLSKeyFile == "") {
		return errors.New("server.tls_cert_file and server.tls_key_file are required when https is enabled")
	}
	return nil
}

// setDefaults registers every key so AutomaticEnv can override it
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.https_port", 3443)
	v.SetDefault("server.enable_https", false)
	v.SetDefault("server.enable_http2", true)
	v.SetDefault("server.tls_cert_file", "")
	v.SetDefault("server.tls_key_file", "")
	v.SetDefault("server.read_timeout", 60)
	v.SetDefault("server.write_timeout", 300)
	v.SetDefault("server.environment", "development")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "data/datashare.db")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 50)
	v.SetDefault("database.conn_max_lifetime", 3600)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("upload.scratch_dir", "temp-uploads")
	v.SetDefault("upload.max_dataset_size", 100*1024*1024)
	v.SetDefault("upload.clamav_address", "")

	v.SetDefault("auth.jwt_secret", "")

	defaults := logger.DefaultConfig()
	v.SetDefault("log.level", defaults.Level)
	v.SetDefault("log.format", defaults.Format)
	v.SetDefault("log.output", defaults.Output)
	v.SetDefault("log.file_path", defaults.FilePath)

	v.SetDefault("mirror.provider", "")
	v.SetDefault("mirror.region", "")
	v.SetDefault("mirror.bucket", "")
	v.SetDefault("mirror.access_key", "")
	v.SetDefault("mirror.secret_key", "")
	v.SetDefault("mirror.endpoint", "")
	v.SetDefault("mirror.use_ssl", true)
	v.SetDefault("mirror.prefix", "datasets")

	v.SetDefault("events.nats_url", "")
	v.SetDefault("events.subject_prefix", "datasets")

	v.SetDefault("cache.user_cache_size", 1024)
	v.SetDefault("cache.user_cache_ttl", 5*time.Minute)
}
