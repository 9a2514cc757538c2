// Package config loads server settings from the environment. A .env file in
// the working directory is read first when present; real environment
// variables win over it.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Storage backends.
const (
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"
	DriverMinIO  = "minio"
	DriverInline = "inline"
)

type Docstore struct {
	Driver        string `validate:"oneof=sqlite mongo"`
	Path          string `validate:"required_if=Driver sqlite"`
	MongoURI      string `validate:"required_if=Driver mongo"`
	MongoDatabase string `validate:"required_if=Driver mongo"`
}

type Blobstore struct {
	Driver        string `validate:"oneof=minio inline"`
	Endpoint      string `validate:"required_if=Driver minio"`
	AccessKey     string
	SecretKey     string
	Bucket        string `validate:"required_if=Driver minio"`
	UseSSL        bool
	PublicBaseURL string `validate:"omitempty,url"`
	URLExpiry     time.Duration
}

type GitHub struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string `validate:"omitempty,url"`
}

// Enabled reports whether GitHub sign-in is configured.
func (g GitHub) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != ""
}

type Config struct {
	Port               int    `validate:"min=1,max=65535"`
	LogLevel           string `validate:"oneof=debug info warn error"`
	UsersDBPath        string `validate:"required"`
	Docstore           Docstore
	Blobstore          Blobstore
	RedisAddr          string
	DiagnosticsChannel string `validate:"required"`
	JWTSecret          string `validate:"required,min=16"`
	GitHub             GitHub
	MaxUploadBytes     int64 `validate:"min=1"`
	UploadRatePerMin   int   `validate:"min=1"`
	CORSAllowedOrigins []string
}

// SlogLevel maps LogLevel onto a slog level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return fallback
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// parseDuration also accepts a whole number of days ("7d").
func parseDuration(value string, fallback time.Duration) time.Duration {
	if days, ok := strings.CutSuffix(value, "d"); ok {
		if n, err := strconv.Atoi(days); err == nil && n > 0 {
			return time.Duration(n) * 24 * time.Hour
		}
	}
	duration, err := time.ParseDuration(value)
	if err != nil || duration <= 0 {
		return fallback
	}
	return duration
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Load reads .env (if any) and the environment, then validates the result.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: reading .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the process environment alone.
func FromEnv() (*Config, error) {
	port := getEnvAsInt("PORT", 8080)
	cfg := &Config{
		Port:        port,
		LogLevel:    strings.ToLower(getEnv("LOG_LEVEL", "info")),
		UsersDBPath: getEnv("USERS_DB_PATH", "data/users.db"),
		Docstore: Docstore{
			Driver:        getEnv("DOCSTORE_DRIVER", DriverSQLite),
			Path:          getEnv("DOCSTORE_PATH", "data/images.db"),
			MongoURI:      getEnv("MONGO_URI", ""),
			MongoDatabase: getEnv("MONGO_DATABASE", "imagedrop"),
		},
		Blobstore: Blobstore{
			Driver:        getEnv("BLOBSTORE_DRIVER", DriverInline),
			Endpoint:      getEnv("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey:     getEnv("MINIO_ACCESS_KEY", "minioadmin"),
			SecretKey:     getEnv("MINIO_SECRET_KEY", "minioadmin"),
			Bucket:        getEnv("MINIO_BUCKET", "images"),
			UseSSL:        getEnvBool("MINIO_USE_SSL", false),
			PublicBaseURL: getEnv("MINIO_PUBLIC_BASE_URL", ""),
			URLExpiry:     parseDuration(getEnv("MINIO_URL_EXPIRY", "7d"), 7*24*time.Hour),
		},
		RedisAddr:          getEnv("REDIS_ADDR", ""),
		DiagnosticsChannel: getEnv("DIAGNOSTICS_CHANNEL", "imagedrop:diagnostics"),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		GitHub: GitHub{
			ClientID:     getEnv("GITHUB_CLIENT_ID", ""),
			ClientSecret: getEnv("GITHUB_CLIENT_SECRET", ""),
			CallbackURL:  getEnv("GITHUB_CALLBACK_URL", fmt.Sprintf("http://localhost:%d/auth/github/callback", port)),
		},
		MaxUploadBytes:     getEnvAsInt64("MAX_UPLOAD_BYTES", 5<<20),
		UploadRatePerMin:   getEnvAsInt("UPLOAD_RATE_PER_MINUTE", 10),
		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}
