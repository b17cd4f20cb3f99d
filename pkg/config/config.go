package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

const defaultJWTSecret = "your-secret-key-change-in-production"

// Config holds every setting read from the environment
type Config struct {
	Environment string
	Port        string

	// Storage
	StoreBackend  string // local, postgres or mongo
	DataDir       string
	PostgresDSN   string
	MongoURI      string
	MongoDatabase string

	// Redis takes over invite storage when RedisAddr is set
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	// Invites
	InviteTTL           time.Duration
	InviteSingleUse     bool
	InviteSweepInterval time.Duration

	AllowedOrigins []string

	LogLevel  string
	SentryDSN string
	Debug     bool
}

// LoadConfig reads .env.local or .env.production (never overriding real env vars) and then the environment
func LoadConfig() *Config {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "development"
	}
	switch env {
	case "production":
		loadEnvFile(".env.production")
	default:
		loadEnvFile(".env.local")
	}

	config := &Config{
		Environment:   getEnvWithDefault("ENVIRONMENT", "development"),
		Port:          getEnvWithDefault("PORT", "3000"),
		StoreBackend:  strings.ToLower(getEnvWithDefault("STORE_BACKEND", "local")),
		DataDir:       getEnvWithDefault("DATA_DIR", "./data"),
		MongoDatabase: getEnvWithDefault("MONGO_DATABASE", "formflow"),
		JWTSecret:     getEnvWithDefault("JWT_SECRET", defaultJWTSecret),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		AccessTokenTTL:  getEnvDuration("ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL: getEnvDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour),

		InviteTTL:           getEnvDuration("INVITE_TTL", 48*time.Hour),
		InviteSingleUse:     getEnvBool("INVITE_SINGLE_USE", false),
		InviteSweepInterval: getEnvDuration("INVITE_SWEEP_INTERVAL", 0),

		LogLevel: getEnvWithDefault("LOG_LEVEL", "info"),
		Debug:    getEnvBool("DEBUG", false),
	}

	// Trim whitespace to avoid trailing spaces/newlines from env sources
	config.PostgresDSN = strings.TrimSpace(os.Getenv("POSTGRES_DSN"))
	config.MongoURI = strings.TrimSpace(os.Getenv("MONGO_URI"))
	config.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	config.RedisPassword = os.Getenv("REDIS_PASSWORD")
	config.SentryDSN = strings.TrimSpace(os.Getenv("SENTRY_DSN"))

	allowedOrigins := getEnvWithDefault("ALLOWED_ORIGINS", "*")
	if allowedOrigins == "*" {
		config.AllowedOrigins = []string{"*"}
	} else {
		for _, o := range strings.Split(allowedOrigins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				config.AllowedOrigins = append(config.AllowedOrigins, o)
			}
		}
	}

	if config.IsProduction() {
		config.Debug = false
	}
	return config
}

// Cached config (initialized once per cold start)
var (
	cachedConfig *Config
	configOnce   sync.Once
)

// GetCached returns the process-wide cached Config.
// On serverless (Vercel), it initializes once per cold start and
// reuses it across warm invocations, avoiding per-request parsing.
func GetCached() *Config {
	configOnce.Do(func() {
		cachedConfig = LoadConfig()
	})
	return cachedConfig
}

// Validate reports the first setting that cannot work
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	if c.IsProduction() && (c.JWTSecret == "" || c.JWTSecret == defaultJWTSecret) {
		return fmt.Errorf("JWT_SECRET must be set in production")
	}

	switch c.StoreBackend {
	case "local":
		if c.IsProduction() {
			return fmt.Errorf("STORE_BACKEND=local is not allowed in production; configure postgres or mongo")
		}
	case "postgres":
		if c.PostgresDSN == "" {
			return fmt.Errorf("STORE_BACKEND=postgres requires POSTGRES_DSN")
		}
	case "mongo":
		if c.MongoURI == "" {
			return fmt.Errorf("STORE_BACKEND=mongo requires MONGO_URI")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q (want local, postgres or mongo)", c.StoreBackend)
	}

	if c.InviteTTL <= 0 {
		return fmt.Errorf("INVITE_TTL must be positive")
	}
	if c.InviteSweepInterval < 0 {
		return fmt.Errorf("INVITE_SWEEP_INTERVAL must not be negative")
	}
	return nil
}

// UsesDefaultJWTSecret is true while the placeholder secret is in use
func (c *Config) UsesDefaultJWTSecret() bool {
	return c.JWTSecret == defaultJWTSecret
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("48h", "30m"); a bare number is read as seconds
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

// loadEnvFile loads filename if present; variables already in the environment win
func loadEnvFile(filename string) {
	if _, err := os.Stat(filename); err != nil {
		return
	}
	_ = godotenv.Load(filename)
}
