// ABOUTME: Configuration loader for the storefront client
// ABOUTME: Loads settings from an optional .env file and environment variables with defaults

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/markalston/storefront-client/internal/storage"
)

// DefaultAPIURL is the storefront API of a local development server
const DefaultAPIURL = "http://localhost:8000/api/"

type Config struct {
	// Storefront API
	APIURL   string
	Timeout  time.Duration
	AllProxy string // ssh+socks5://user@host:port?private-key=path

	// Device storage
	ConfigDir string
	StoreURL  string // empty for the state file, redis://... for a shared profile

	// Orders
	OrdersCacheTTL time.Duration

	// Logging
	LogLevel  string
	LogFormat string
}

// UsesRedis reports whether device state lives in Redis
func (c *Config) UsesRedis() bool {
	return strings.HasPrefix(c.StoreURL, "redis://") || strings.HasPrefix(c.StoreURL, "rediss://")
}

// Load reads .env from the working directory (if present) and then the environment.
// Variables already set in the environment win over .env entries.
func Load() (*Config, error) {
	return LoadFile(getEnv("STOREFRONT_ENV_FILE", ".env"))
}

// LoadFile is Load with an explicit dotenv path
func LoadFile(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read %s: %w", envFile, err)
		}
	}

	cfg := &Config{
		APIURL:   NormalizeAPIURL(getEnv("STOREFRONT_API_URL", DefaultAPIURL)),
		Timeout:  time.Duration(getEnvInt("STOREFRONT_TIMEOUT", 60)) * time.Second,
		AllProxy: os.Getenv("STOREFRONT_ALL_PROXY"),

		ConfigDir: getEnv("STOREFRONT_CONFIG_DIR", storage.DefaultConfigDir()),
		StoreURL:  os.Getenv("STOREFRONT_STORE_URL"),

		OrdersCacheTTL: time.Duration(getEnvInt("STOREFRONT_ORDERS_CACHE_TTL", 30)) * time.Second,

		LogLevel:  getEnv("STOREFRONT_LOG_LEVEL", "info"),
		LogFormat: getEnv("STOREFRONT_LOG_FORMAT", "text"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that flags may have overridden after Load
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("STOREFRONT_API_URL is not a valid URL: %q", c.APIURL)
	}
	if c.Timeout < time.Second || c.Timeout > 10*time.Minute {
		return fmt.Errorf("STOREFRONT_TIMEOUT must be between 1 and 600 seconds, got %s", c.Timeout)
	}
	if c.OrdersCacheTTL < 0 {
		return fmt.Errorf("STOREFRONT_ORDERS_CACHE_TTL must not be negative, got %s", c.OrdersCacheTTL)
	}
	if c.StoreURL != "" && !c.UsesRedis() {
		return fmt.Errorf("STOREFRONT_STORE_URL must be a redis:// URL, got %q", c.StoreURL)
	}
	if c.AllProxy != "" && !strings.HasPrefix(c.AllProxy, "ssh+socks5://") {
		return fmt.Errorf("STOREFRONT_ALL_PROXY must be an ssh+socks5:// URL")
	}
	if c.ConfigDir == "" && !c.UsesRedis() {
		return fmt.Errorf("no config directory: set STOREFRONT_CONFIG_DIR")
	}
	return nil
}

// NormalizeAPIURL adds a scheme when missing and a trailing slash so
// relative endpoint paths resolve under the API root
func NormalizeAPIURL(raw string) string {
	raw = ensureScheme(strings.TrimSpace(raw))
	if raw != "" && !strings.HasSuffix(raw, "/") {
		raw += "/"
	}
	return raw
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// ensureScheme adds http:// prefix if the URL has no scheme
func ensureScheme(url string) string {
	if url == "" {
		return url
	}
	if !strings.Contains(url, "://") {
		return "http://" + url
	}
	return url
}
