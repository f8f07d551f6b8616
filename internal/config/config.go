package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	// Environment
	RunMode string // Set via flag, not env

	// MongoDB
	MongoURI    string
	MongoDbName string

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// JWT
	JwtSecret string
	JwtTTL    time.Duration

	// Server
	ApiPort           string
	ServiceApiPort    string
	CorsAllowedOrigin string

	// AWS S3
	AwsAccessKeyID     string
	AwsSecretAccessKey string
	AwsRegion          string
	AwsS3Bucket        string
	SignedURLTTL       time.Duration
	ImageMaxDimension  int
	ImageMaxSizeMB     int

	// Messaging
	MessageSnippetLength int
	MessageMaxLength     int

	// App defaults
	AppName         string
	DefaultPageSize int
	MaxPageSize     int
	ConsentVersion  string
	PasswordMinLen  int
	AuditEnabled    bool
}

// Load reads configuration from environment variables, after loading .env if present.
// RunMode comes from the command line.
func Load(runMode string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{RunMode: runMode}
	var err error

	getEnv := func(key, defaultValue string) string {
		if value, exists := os.LookupEnv(key); exists {
			return value
		}
		return defaultValue
	}

	getRequiredEnv := func(key string) (string, error) {
		value, exists := os.LookupEnv(key)
		if !exists || value == "" {
			return "", fmt.Errorf("missing required environment variable: %s", key)
		}
		return value, nil
	}

	getSeconds := func(key, defaultValue string) (time.Duration, error) {
		secs, err := strconv.ParseInt(getEnv(key, defaultValue), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", key, err)
		}
		return time.Duration(secs) * time.Second, nil
	}

	getInt := func(key, defaultValue string) (int, error) {
		n, err := strconv.Atoi(getEnv(key, defaultValue))
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", key, err)
		}
		return n, nil
	}

	if cfg.MongoURI, err = getRequiredEnv("MONGO_URI"); err != nil {
		return nil, err
	}
	if cfg.JwtSecret, err = getRequiredEnv("JWT_SECRET"); err != nil {
		return nil, err
	}
	cfg.MongoDbName = getEnv("MONGO_DB_NAME", "breederhub")
	cfg.RedisAddr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	cfg.ApiPort = getEnv("API_PORT", "8080")
	cfg.ServiceApiPort = getEnv("SERVICE_API_PORT", "12345")
	cfg.CorsAllowedOrigin = getEnv("CORS_ALLOWED_ORIGIN", "*")
	cfg.AwsAccessKeyID = getEnv("AWS_ACCESS_KEY_ID", "")
	cfg.AwsSecretAccessKey = getEnv("AWS_SECRET_ACCESS_KEY", "")
	cfg.AwsRegion = getEnv("AWS_REGION", "us-east-1")
	cfg.AwsS3Bucket = getEnv("AWS_S3_BUCKET", "")
	cfg.AppName = getEnv("APP_NAME", "BreederHub")
	cfg.ConsentVersion = getEnv("CONSENT_VERSION", "v1.0")

	if cfg.RedisDB, err = getInt("REDIS_DB", "0"); err != nil {
		return nil, err
	}
	if cfg.JwtTTL, err = getSeconds("JWT_TTL_SECONDS", "86400"); err != nil {
		return nil, err
	}
	if cfg.SignedURLTTL, err = getSeconds("SIGNED_URL_TTL_SECONDS", "3600"); err != nil {
		return nil, err
	}
	if cfg.ImageMaxDimension, err = getInt("IMAGE_MAX_DIMENSION", "2048"); err != nil {
		return nil, err
	}
	if cfg.ImageMaxSizeMB, err = getInt("IMAGE_MAX_SIZE_MB", "10"); err != nil {
		return nil, err
	}
	if cfg.MessageSnippetLength, err = getInt("MESSAGE_SNIPPET_LENGTH", "80"); err != nil {
		return nil, err
	}
	if cfg.MessageMaxLength, err = getInt("MESSAGE_MAX_LENGTH", "5000"); err != nil {
		return nil, err
	}
	if cfg.DefaultPageSize, err = getInt("DEFAULT_PAGE_SIZE", "12"); err != nil {
		return nil, err
	}
	if cfg.MaxPageSize, err = getInt("MAX_PAGE_SIZE", "100"); err != nil {
		return nil, err
	}
	if cfg.PasswordMinLen, err = getInt("PASSWORD_MIN_LENGTH", "8"); err != nil {
		return nil, err
	}
	if cfg.AuditEnabled, err = strconv.ParseBool(getEnv("AUDIT_ENABLED", "true")); err != nil {
		return nil, fmt.Errorf("invalid AUDIT_ENABLED: %w", err)
	}

	return cfg, nil
}
