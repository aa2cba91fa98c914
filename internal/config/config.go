package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all runtime configuration for the API server and the bridge.
// Values come from environment variables with sensible development defaults.
type Config struct {
	AppEnv   string // "development" or "production"
	AppPort  string
	DBDriver string // "sqlite" or "postgres"
	DBDSN    string

	JWTSecret     string
	TokenDuration time.Duration

	RabbitMQURL string // empty disables event publishing

	OpenRouter OpenRouterConfig
	Cloudinary CloudinaryConfig
	Bridge     BridgeConfig
}

// OpenRouterConfig configures the AI chat gateway client.
type OpenRouterConfig struct {
	APIKey  string
	BaseURL string
	Referer string
	Title   string
}

// CloudinaryConfig configures the media upload client.
type CloudinaryConfig struct {
	CloudName string
	APIKey    string
	APISecret string
}

// BridgeConfig configures the local development bridge process.
type BridgeConfig struct {
	Port       string
	StudioURL  string
	ChatID     string
	SessionTTL time.Duration
}

// Load reads configuration from the environment via Viper.
func Load() (*Config, error) {
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("APP_PORT", ":8080")
	viper.SetDefault("DB_DRIVER", "sqlite")
	viper.SetDefault("DB_DSN", "etlaq.db")
	viper.SetDefault("JWT_SECRET", "")
	viper.SetDefault("TOKEN_DURATION", "168h") // 7 days
	viper.SetDefault("RABBITMQ_URL", "")
	viper.SetDefault("OPENROUTER_API_KEY", "")
	viper.SetDefault("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1")
	viper.SetDefault("OPENROUTER_REFERER", "http://localhost:3000")
	viper.SetDefault("OPENROUTER_TITLE", "Etlaq App")
	viper.SetDefault("CLOUDINARY_CLOUD_NAME", "")
	viper.SetDefault("CLOUDINARY_API_KEY", "")
	viper.SetDefault("CLOUDINARY_API_SECRET", "")
	viper.SetDefault("BRIDGE_PORT", ":4567")
	viper.SetDefault("STUDIO_API_URL", "https://studio.etlaq.sa")
	viper.SetDefault("STUDIO_CHAT_ID", "")
	viper.SetDefault("BRIDGE_SESSION_TTL", "10m")
	viper.AutomaticEnv()

	tokenDuration, err := time.ParseDuration(viper.GetString("TOKEN_DURATION"))
	if err != nil {
		return nil, fmt.Errorf("invalid TOKEN_DURATION: %w", err)
	}
	sessionTTL, err := time.ParseDuration(viper.GetString("BRIDGE_SESSION_TTL"))
	if err != nil {
		return nil, fmt.Errorf("invalid BRIDGE_SESSION_TTL: %w", err)
	}

	cfg := &Config{
		AppEnv:        viper.GetString("APP_ENV"),
		AppPort:       viper.GetString("APP_PORT"),
		DBDriver:      viper.GetString("DB_DRIVER"),
		DBDSN:         viper.GetString("DB_DSN"),
		JWTSecret:     viper.GetString("JWT_SECRET"),
		TokenDuration: tokenDuration,
		RabbitMQURL:   viper.GetString("RABBITMQ_URL"),
		OpenRouter: OpenRouterConfig{
			APIKey:  viper.GetString("OPENROUTER_API_KEY"),
			BaseURL: viper.GetString("OPENROUTER_BASE_URL"),
			Referer: viper.GetString("OPENROUTER_REFERER"),
			Title:   viper.GetString("OPENROUTER_TITLE"),
		},
		Cloudinary: CloudinaryConfig{
			CloudName: viper.GetString("CLOUDINARY_CLOUD_NAME"),
			APIKey:    viper.GetString("CLOUDINARY_API_KEY"),
			APISecret: viper.GetString("CLOUDINARY_API_SECRET"),
		},
		Bridge: BridgeConfig{
			Port:       viper.GetString("BRIDGE_PORT"),
			StudioURL:  viper.GetString("STUDIO_API_URL"),
			ChatID:     viper.GetString("STUDIO_CHAT_ID"),
			SessionTTL: sessionTTL,
		},
	}

	return cfg, nil
}
