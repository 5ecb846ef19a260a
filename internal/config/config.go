package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DiscordToken string        `yaml:"discord_token"`
	DatabasePath string        `yaml:"database_path"`
	LogLevel     string        `yaml:"log_level"`
	Prefix       string        `yaml:"prefix"`
	DashboardURL string        `yaml:"dashboard_url"`
	Spam         SpamConfig    `yaml:"spam"`
	Automod      AutomodConfig `yaml:"automod"`
	Warnings     WarnConfig    `yaml:"warnings"`
	HTTP         HTTPConfig    `yaml:"http"`
	OAuth        OAuthConfig   `yaml:"oauth"`
}

type SpamConfig struct {
	Messages       int `yaml:"messages"`
	WindowMillis   int `yaml:"window_ms"`
	WarnTTLSeconds int `yaml:"warn_ttl_seconds"`
}

type AutomodConfig struct {
	DefaultBannedWords []string `yaml:"default_banned_words"`
}

type WarnConfig struct {
	ForgiveAfterDays int `yaml:"forgive_after_days"`
}

type HTTPConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type OAuthConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURL  string `yaml:"redirect_url"`
}

func DefaultConfig() Config {
	return Config{
		DatabasePath: "/data/plugbot.db",
		LogLevel:     "info",
		Prefix:       "!",
		Spam: SpamConfig{
			Messages:       5,
			WindowMillis:   5000,
			WarnTTLSeconds: 5,
		},
		Automod: AutomodConfig{
			DefaultBannedWords: []string{"spamlink.com"},
		},
		Warnings: WarnConfig{ForgiveAfterDays: 30},
		HTTP: HTTPConfig{
			Enabled: true,
			Addr:    ":8000",
		},
	}
}

func Load() (Config, error) {
	cfg := DefaultConfig()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)
	if cfg.DiscordToken == "" {
		return Config{}, errors.New("DISCORD_TOKEN is required")
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "!"
	}
	if cfg.Spam.Messages <= 0 {
		cfg.Spam.Messages = 5
	}
	if cfg.Spam.WindowMillis <= 0 {
		cfg.Spam.WindowMillis = 5000
	}
	if cfg.Spam.WarnTTLSeconds <= 0 {
		cfg.Spam.WarnTTLSeconds = 5
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.DiscordToken = envString("DISCORD_TOKEN", cfg.DiscordToken)
	cfg.DatabasePath = envString("DATABASE_PATH", cfg.DatabasePath)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	cfg.Prefix = envString("COMMAND_PREFIX", cfg.Prefix)
	cfg.DashboardURL = envString("DASHBOARD_URL", cfg.DashboardURL)
	cfg.Spam.Messages = envInt("SPAM_MESSAGES", cfg.Spam.Messages)
	cfg.Spam.WindowMillis = envInt("SPAM_WINDOW_MS", cfg.Spam.WindowMillis)
	cfg.Spam.WarnTTLSeconds = envInt("SPAM_WARN_TTL_SECONDS", cfg.Spam.WarnTTLSeconds)
	cfg.Warnings.ForgiveAfterDays = envInt("WARN_FORGIVE_AFTER_DAYS", cfg.Warnings.ForgiveAfterDays)
	cfg.HTTP.Enabled = envBool("HTTP_ENABLED", cfg.HTTP.Enabled)
	cfg.HTTP.Addr = envString("HTTP_ADDR", cfg.HTTP.Addr)
	cfg.OAuth.ClientID = envString("OAUTH_CLIENT_ID", cfg.OAuth.ClientID)
	cfg.OAuth.ClientSecret = envString("OAUTH_CLIENT_SECRET", cfg.OAuth.ClientSecret)
	cfg.OAuth.RedirectURL = envString("OAUTH_REDIRECT_URL", cfg.OAuth.RedirectURL)
}

func BuildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	lvl := strings.ToLower(level)
	switch lvl {
	case "debug", "info", "warn", "error":
		cfg.Level = zap.NewAtomicLevelAt(parseLevel(lvl))
	default:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	return cfg.Build()
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "1" || lower == "true" || lower == "yes"
	}
	return fallback
}
