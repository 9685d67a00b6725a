package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port            string        `json:"port" validate:"required,numeric"`
	Env             string        `json:"env"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" validate:"gt=0"`
	HTTPTimeout     time.Duration `json:"http_timeout" validate:"gt=0"`
	StaticDir       string        `json:"static_dir"`

	// AI Configuration
	AIApiKey         string        `json:"-"`
	AIModel          string        `json:"ai_model" validate:"required"`
	AIBaseURL        string        `json:"ai_base_url" validate:"required,url"`
	AITimeout        time.Duration `json:"ai_timeout" validate:"gt=0"`
	AIMaxRetries     int           `json:"ai_max_retries" validate:"min=1,max=10"`
	AIRetryBaseDelay time.Duration `json:"ai_retry_base_delay" validate:"gte=0"`
	AIRetryJitter    time.Duration `json:"ai_retry_jitter" validate:"gte=0"`

	// Localization defaults
	DefaultLanguage string `json:"default_language" validate:"len=2"`
	DefaultRegion   string `json:"default_region"`

	// Seen-headline cache. An empty RedisURL selects the in-memory store.
	RedisURL    string        `json:"-"`
	RedisPrefix string        `json:"redis_prefix"`
	SeenTTL     time.Duration `json:"seen_ttl" validate:"gt=0"`

	// Project storage
	StoreBackend string `json:"store_backend" validate:"oneof=file bbolt"`
	StorePath    string `json:"store_path" validate:"required"`

	// CloudFlare R2 export archive
	R2Endpoint  string `json:"r2_endpoint"`
	R2AccessKey string `json:"-"`
	R2SecretKey string `json:"-"`
	R2Bucket    string `json:"r2_bucket"`
	R2Region    string `json:"r2_region"`

	// Logging
	LogLevel string `json:"log_level" validate:"oneof=debug info warn error fatal panic disabled"`
	LogFile  string `json:"log_file"`

	// Security
	AdminAPIKey string `json:"-"`
}

// Load loads configuration from environment variables and validates it
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: Error loading .env file: %v", err)
	}

	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		Env:             getEnv("APP_ENV", "development"),
		ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		HTTPTimeout:     getEnvAsDuration("HTTP_TIMEOUT", 120*time.Second),
		StaticDir:       getEnv("STATIC_DIR", "./web/static"),

		AIApiKey:         getEnv("AI_API_KEY", ""),
		AIModel:          getEnv("AI_MODEL", "gemini-2.5-flash"),
		AIBaseURL:        getEnv("AI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta/models"),
		AITimeout:        getEnvAsDuration("AI_TIMEOUT", 90*time.Second),
		AIMaxRetries:     getEnvAsInt("AI_MAX_RETRIES", 3),
		AIRetryBaseDelay: getEnvAsDuration("AI_RETRY_BASE_DELAY", 2*time.Second),
		AIRetryJitter:    getEnvAsDuration("AI_RETRY_JITTER", time.Second),

		DefaultLanguage: getEnv("DEFAULT_LANGUAGE", "en"),
		DefaultRegion:   getEnv("DEFAULT_REGION", "global"),

		RedisURL:    getEnv("REDIS_URL", ""),
		RedisPrefix: getEnv("REDIS_PREFIX", "newskit:seen:"),
		SeenTTL:     getEnvAsDuration("SEEN_TTL", 24*time.Hour),

		StoreBackend: getEnv("STORE_BACKEND", "file"),
		StorePath:    getEnv("STORE_PATH", "./data/projects.json"),

		R2Endpoint:  getEnv("R2_ENDPOINT", ""),
		R2AccessKey: getEnv("R2_ACCESS_KEY", ""),
		R2SecretKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
		R2Bucket:    getEnv("R2_BUCKET", ""),
		R2Region:    getEnv("R2_REGION", "auto"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", ""),

		AdminAPIKey: getEnv("ADMIN_API_KEY", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if c.ArchiveEnabled() && (c.R2AccessKey == "" || c.R2SecretKey == "") {
		return fmt.Errorf("r2 archive requires R2_ACCESS_KEY and R2_SECRET_ACCESS_KEY")
	}
	return nil
}

// ArchiveEnabled reports whether exports can be pushed to R2.
func (c *Config) ArchiveEnabled() bool {
	return c.R2Endpoint != "" && c.R2Bucket != ""
}

// Helper functions for environment variable handling
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(name string, defaultVal int) int {
	valueStr := getEnv(name, "")
	if valueStr == "" {
		return defaultVal
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid %s value: %v, using default: %d", name, err, defaultVal)
		return defaultVal
	}
	return value
}

func getEnvAsDuration(name string, defaultVal time.Duration) time.Duration {
	valueStr := getEnv(name, "")
	if valueStr == "" {
		return defaultVal
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Invalid %s value: %v, using default: %v", name, err, defaultVal)
		return defaultVal
	}
	return value
}
