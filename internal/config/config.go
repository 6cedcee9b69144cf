package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Config holds all configuration for the depicts analyzer server.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Commons   CommonsConfig
	Wikidata  WikidataConfig
	Labels    LabelsConfig
	Admin     AdminConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	URL      string
	PoolSize int
}

type RedisConfig struct {
	URL string
}

type CommonsConfig struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
}

type WikidataConfig struct {
	BaseURL         string
	Timeout         time.Duration
	DefaultLanguage string
}

type LabelsConfig struct {
	TTL      time.Duration
	Capacity int
}

// AdminConfig guards destructive endpoints. TokenHash is a bcrypt hash of
// the admin token; empty disables those endpoints.
type AdminConfig struct {
	TokenHash string
}

type RateLimitConfig struct {
	RequestsPerMinute int
}

const defaultUserAgent = "commons-depicts-analyzer/1.0 (https://github.com/mfscpayload-690/commons-depicts-analyzer)"

// Load reads configuration from environment variables and returns a validated Config.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("DEPICTS_PORT", 8080),
			Env:  envString("DEPICTS_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:      os.Getenv("DATABASE_URL"),
			PoolSize: envInt("DATABASE_POOL_SIZE", 5),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Commons: CommonsConfig{
			BaseURL:   envString("COMMONS_API_URL", "https://commons.wikimedia.org/w/api.php"),
			UserAgent: envString("DEPICTS_USER_AGENT", defaultUserAgent),
			Timeout:   envDuration("COMMONS_TIMEOUT", 30*time.Second),
		},
		Wikidata: WikidataConfig{
			BaseURL:         envString("WIKIDATA_API_URL", "https://www.wikidata.org/w/api.php"),
			Timeout:         envDuration("WIKIDATA_TIMEOUT", 30*time.Second),
			DefaultLanguage: envString("DEPICTS_DEFAULT_LANGUAGE", "en"),
		},
		Labels: LabelsConfig{
			TTL:      envDuration("LABEL_CACHE_TTL", time.Hour),
			Capacity: envInt("LABEL_CACHE_CAPACITY", 5000),
		},
		Admin: AdminConfig{
			TokenHash: os.Getenv("DEPICTS_ADMIN_TOKEN_HASH"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: envInt("DEPICTS_RATE_LIMIT_PER_MINUTE", 60),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if !strings.HasPrefix(c.Commons.BaseURL, "http://") && !strings.HasPrefix(c.Commons.BaseURL, "https://") {
		return fmt.Errorf("COMMONS_API_URL must start with http:// or https://, got %q", c.Commons.BaseURL)
	}
	if !strings.HasPrefix(c.Wikidata.BaseURL, "http://") && !strings.HasPrefix(c.Wikidata.BaseURL, "https://") {
		return fmt.Errorf("WIKIDATA_API_URL must start with http:// or https://, got %q", c.Wikidata.BaseURL)
	}

	if c.Database.PoolSize < 1 {
		return fmt.Errorf("DATABASE_POOL_SIZE must be at least 1, got %d", c.Database.PoolSize)
	}

	if c.Admin.TokenHash != "" {
		if _, err := bcrypt.Cost([]byte(c.Admin.TokenHash)); err != nil {
			return fmt.Errorf("DEPICTS_ADMIN_TOKEN_HASH must be a bcrypt hash: %w", err)
		}
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
