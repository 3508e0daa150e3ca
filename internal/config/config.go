package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	// HTTP Server
	Port string `koanf:"PORT"`

	// Storage
	DataBackend   string `koanf:"DATA_BACKEND"`
	SQLiteDBPath  string `koanf:"SQLITE_DB_PATH"`
	MemorySeedDir string `koanf:"MEMORY_SEED_DIR"`

	// AMQP change notifications, disabled when AMQPURL is empty
	AMQPURL        string `koanf:"AMQP_URL"`
	AMQPExchange   string `koanf:"AMQP_EXCHANGE"`
	AMQPRoutingKey string `koanf:"AMQP_ROUTING_KEY"`

	// Search pattern cache
	SearchCacheSize int           `koanf:"SEARCH_CACHE_SIZE"`
	SearchCacheTTL  time.Duration `koanf:"SEARCH_CACHE_TTL"`

	ImportMaxBytes int64 `koanf:"IMPORT_MAX_BYTES"`

	// Logging
	LogLevel  string `koanf:"LOG_LEVEL"`
	LogFormat string `koanf:"LOG_FORMAT"`
}

// Defaults returns the configuration used when no variable is set.
func Defaults() Config {
	return Config{
		Port:            "8081",
		DataBackend:     "sqlite",
		SQLiteDBPath:    "./data/glowbudget.db",
		AMQPExchange:    "glowbudget",
		AMQPRoutingKey:  "ledger.changes",
		SearchCacheSize: 128,
		SearchCacheTTL:  10 * time.Minute,
		ImportMaxBytes:  5 << 20,
		LogLevel:        "info",
		LogFormat:       "text",
	}
}

// Load reads the configuration from the environment on top of Defaults.
// Only the variables named in Config's tags are considered.
func Load() (*Config, error) {
	known := knownKeys()
	k := koanf.New(".")
	provider := env.Provider("", ".", func(s string) string {
		if !known[s] {
			return ""
		}
		return s
	})
	if err := k.Load(provider, nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := Defaults()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf", FlatPaths: true}); err != nil {
		return nil, fmt.Errorf("parse configuration: %w", err)
	}
	return &cfg, nil
}

func knownKeys() map[string]bool {
	return map[string]bool{
		"PORT": true, "DATA_BACKEND": true, "SQLITE_DB_PATH": true, "MEMORY_SEED_DIR": true,
		"AMQP_URL": true, "AMQP_EXCHANGE": true, "AMQP_ROUTING_KEY": true,
		"SEARCH_CACHE_SIZE": true, "SEARCH_CACHE_TTL": true, "IMPORT_MAX_BYTES": true,
		"LOG_LEVEL": true, "LOG_FORMAT": true,
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	validBackends := []string{"memory", "sqlite"}
	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			// Check if directory exists or can be created
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	if c.DataBackend == "memory" && c.MemorySeedDir != "" {
		if info, err := os.Stat(c.MemorySeedDir); err != nil || !info.IsDir() {
			errors = append(errors, fmt.Sprintf("memory seed directory does not exist: %s", c.MemorySeedDir))
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPRoutingKey == "" {
			errors = append(errors, "AMQP routing key cannot be empty when AMQP URL is provided")
		}
	}

	if c.SearchCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid search cache size %d: must be at least 1", c.SearchCacheSize))
	} else if c.SearchCacheSize > 10000 {
		errors = append(errors, fmt.Sprintf("invalid search cache size %d: must be at most 10000", c.SearchCacheSize))
	}

	if c.SearchCacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid search cache TTL %v: must be at least 1 second", c.SearchCacheTTL))
	} else if c.SearchCacheTTL > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid search cache TTL %v: must be at most 24 hours", c.SearchCacheTTL))
	}

	if c.ImportMaxBytes < 1024 {
		errors = append(errors, fmt.Sprintf("invalid import size limit %d: must be at least 1024 bytes", c.ImportMaxBytes))
	}

	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// JSONLogs reports whether logs should be written as JSON.
func (c *Config) JSONLogs() bool {
	return strings.EqualFold(c.LogFormat, "json")
}
