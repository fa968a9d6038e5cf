// Package config loads client layer configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// Config carries every tunable of the client layer. Values come from the
// environment; a .env file is honored when present.
type Config struct {
	APIURL string `env:"FORUM_API_URL,default=http://localhost:3000/"`

	RequestTimeout time.Duration `env:"FORUM_REQUEST_TIMEOUT,default=10s"`
	LogoutTimeout  time.Duration `env:"FORUM_LOGOUT_TIMEOUT,default=5s"`
	HealthTimeout  time.Duration `env:"FORUM_HEALTH_TIMEOUT,default=5s"`

	// Resource store tuning.
	LoadAttempts int           `env:"FORUM_LOAD_ATTEMPTS,default=3"`
	RetryDelay   time.Duration `env:"FORUM_RETRY_DELAY,default=500ms"`
	CoolDown     time.Duration `env:"FORUM_COOL_DOWN,default=5s"`

	// Search tuning.
	SearchThreshold int `env:"FORUM_SEARCH_THRESHOLD,default=3"`
	SearchCacheSize int `env:"FORUM_SEARCH_CACHE_SIZE,default=512"`

	// Wallet provider.
	ChainRPCURL string `env:"FORUM_CHAIN_RPC_URL,default="`
	ChainWSURL  string `env:"FORUM_CHAIN_WS_URL,default="`

	// Session snapshot location. Empty means in-memory only.
	SnapshotPath string `env:"FORUM_SNAPSHOT_PATH,default="`

	LogLevel  string `env:"FORUM_LOG_LEVEL,default=info"`
	LogFormat string `env:"FORUM_LOG_FORMAT,default=console"`
}

// Load reads configuration from the environment, honoring a .env file in the
// working directory when one exists.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default returns the configuration used when nothing is set in the
// environment. It mirrors the envdecode defaults above.
func Default() Config {
	return Config{
		APIURL:          "http://localhost:3000/",
		RequestTimeout:  10 * time.Second,
		LogoutTimeout:   5 * time.Second,
		HealthTimeout:   5 * time.Second,
		LoadAttempts:    3,
		RetryDelay:      500 * time.Millisecond,
		CoolDown:        5 * time.Second,
		SearchThreshold: 3,
		SearchCacheSize: 512,
		LogLevel:        "info",
		LogFormat:       "console",
	}
}

// Validate rejects configurations the client layer cannot run with.
func (c Config) Validate() error {
	if c.APIURL == "" {
		return fmt.Errorf("FORUM_API_URL is required")
	}
	if c.LoadAttempts < 1 {
		return fmt.Errorf("FORUM_LOAD_ATTEMPTS must be at least 1")
	}
	if c.SearchThreshold < 0 {
		return fmt.Errorf("FORUM_SEARCH_THRESHOLD must not be negative")
	}
	if c.SearchCacheSize < 1 {
		return fmt.Errorf("FORUM_SEARCH_CACHE_SIZE must be at least 1")
	}
	return nil
}
