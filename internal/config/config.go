package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Conf holds the application configuration, making it accessible globally.
var Conf *Config

// Config struct is the top-level configuration structure.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Validation ValidationConfig `mapstructure:"validation"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig holds server-related settings.
type ServerConfig struct {
	Port         string   `mapstructure:"port"`
	Mode         string   `mapstructure:"mode"` // "debug" or "release"
	CORSOrigins  []string `mapstructure:"cors_origins"`
	MaxPageLimit int64    `mapstructure:"max_page_limit"`
}

// DatabaseConfig holds document database connection settings.
type DatabaseConfig struct {
	URI             string        `mapstructure:"uri"`
	Name            string        `mapstructure:"name"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxPoolSize     uint64        `mapstructure:"max_pool_size"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// ValidationConfig selects the submission validation policy.
type ValidationConfig struct {
	// Strict rejects malformed submissions instead of filtering and
	// back-filling defaults.
	Strict bool `mapstructure:"strict"`
}

// LoggingConfig holds settings for the logger.
type LoggingConfig struct {
	Directory  string `mapstructure:"directory"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// Debug reports whether internal error detail is exposed in responses.
func (c *Config) Debug() bool {
	return c.Server.Mode != "release"
}

// setDefaults sets the default values for the configuration.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "5050")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.max_page_limit", 100)

	// Database defaults
	v.SetDefault("database.uri", "mongodb://localhost:27017")
	v.SetDefault("database.name", "iatlab")
	v.SetDefault("database.connect_timeout", 10*time.Second)
	v.SetDefault("database.max_pool_size", 10)
	v.SetDefault("database.max_conn_idle_time", 30*time.Second)

	// Validation defaults
	v.SetDefault("validation.strict", false)

	// Logging defaults
	v.SetDefault("logging.directory", "logs")
	v.SetDefault("logging.max_size", 10)   // 10 MB
	v.SetDefault("logging.max_backups", 3) // Keep 3 backups
	v.SetDefault("logging.max_age", 7)     // 7 days
	v.SetDefault("logging.compress", true) // Compress old logs
}

// Init initializes the configuration with Viper.
func Init(projectRoot string, log *zap.Logger) error {
	v := viper.New()

	// Set default values
	setDefaults(v)

	// --- File Configuration ---
	v.AddConfigPath(filepath.Join(projectRoot, "config"))
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// --- Environment Variable Binding ---
	v.SetEnvPrefix("IAT") // e.g., IAT_SERVER_PORT, IAT_DATABASE_URI
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read the initial configuration from the file.
	// It's okay if the file doesn't exist; defaults and env vars will be used.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Unmarshal the config into our global Conf variable
	if err := v.Unmarshal(&Conf); err != nil {
		return fmt.Errorf("unable to decode config into struct: %w", err)
	}

	// Set up a watch for configuration changes for hot-reloading
	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		log.Info("Configuration file changed, reloading.", zap.String("file", e.Name))
		if err := v.Unmarshal(&Conf); err != nil {
			log.Error("Error reloading configuration", zap.Error(err))
		}
	})

	log.Info("Configuration loaded successfully")
	return nil
}
