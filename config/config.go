// Package config provides configuration management for the application.
package config

import (
	"github.com/spf13/viper"

	"flashdeck/internal/core"
)

// Config holds the application configuration
type Config struct {
	Server     ServerConfig
	OpenRouter OpenRouterConfig
	Storage    StorageConfig
	Redis      RedisConfig
	Logging    LoggingConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           string
	MasterKey      string
	MetricsEnabled bool
}

// OpenRouterConfig holds completion gateway configuration
type OpenRouterConfig struct {
	APIKey       string
	BaseURL      string
	RefererURL   string
	Title        string
	DefaultModel string
}

// StorageConfig selects and configures the persistence backend
type StorageConfig struct {
	Type            string
	SQLitePath      string
	PostgresURL     string
	MongoDBURL      string
	MongoDBDatabase string
}

// RedisConfig holds the generation cache configuration. An empty URL selects
// the in-memory cache.
type RedisConfig struct {
	URL string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Pretty bool
}

// Load reads configuration from a .env file and the environment. The gateway
// API key is the only required setting.
func Load() (*Config, error) {
	// Load .env file using Viper (optional, won't fail if not found)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	_ = viper.ReadInConfig() // Ignore error if .env file doesn't exist

	// Set defaults
	viper.SetDefault("FLASHDECK_PORT", "8080")
	viper.SetDefault("FLASHDECK_DEFAULT_MODEL", "openai/gpt-4o-mini")
	viper.SetDefault("FLASHDECK_STORAGE_TYPE", "sqlite")
	viper.SetDefault("FLASHDECK_SQLITE_PATH", "data/flashdeck.db")
	viper.SetDefault("FLASHDECK_MONGODB_DATABASE", "flashdeck")
	viper.SetDefault("FLASHDECK_METRICS_ENABLED", true)

	// Enable automatic environment variable reading
	viper.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Port:           viper.GetString("FLASHDECK_PORT"),
			MasterKey:      viper.GetString("FLASHDECK_MASTER_KEY"),
			MetricsEnabled: viper.GetBool("FLASHDECK_METRICS_ENABLED"),
		},
		OpenRouter: OpenRouterConfig{
			APIKey:       viper.GetString("OPENROUTER_API_KEY"),
			BaseURL:      viper.GetString("OPENROUTER_BASE_URL"),
			RefererURL:   viper.GetString("FLASHDECK_REFERER_URL"),
			Title:        viper.GetString("FLASHDECK_TITLE"),
			DefaultModel: viper.GetString("FLASHDECK_DEFAULT_MODEL"),
		},
		Storage: StorageConfig{
			Type:            viper.GetString("FLASHDECK_STORAGE_TYPE"),
			SQLitePath:      viper.GetString("FLASHDECK_SQLITE_PATH"),
			PostgresURL:     viper.GetString("FLASHDECK_POSTGRES_URL"),
			MongoDBURL:      viper.GetString("FLASHDECK_MONGODB_URL"),
			MongoDBDatabase: viper.GetString("FLASHDECK_MONGODB_DATABASE"),
		},
		Redis: RedisConfig{
			URL: viper.GetString("FLASHDECK_REDIS_URL"),
		},
		Logging: LoggingConfig{
			Pretty: viper.GetBool("FLASHDECK_PRETTY_LOGS"),
		},
	}

	if cfg.OpenRouter.APIKey == "" {
		return nil, core.NewConfigurationError("OPENROUTER_API_KEY is required")
	}

	return cfg, nil
}
