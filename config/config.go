// Package config loads process configuration from the environment, a local
// .env file and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Backends
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// ConfigFileEnv names the YAML file layered over the environment.
const ConfigFileEnv = "EXPENSE_CONFIG"

type Config struct {
	// HTTP Server
	Port           string   `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`

	// Storage
	Backend    string `yaml:"backend"`
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`

	// AMQP (optional; empty URL disables publishing)
	AMQPURL        string `yaml:"amqp_url"`
	AMQPExchange   string `yaml:"amqp_exchange"`
	AMQPRoutingKey string `yaml:"amqp_routing_key"`

	// Logging
	LogLevel string `yaml:"log_level"`

	// Periodic backups of loaded users; zero disables them
	BackupInterval time.Duration `yaml:"backup_interval"`
}

// Load reads .env (if present) into the environment, builds the config from
// environment variables and then applies the YAML file named by
// EXPENSE_CONFIG, whose keys take precedence.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := FromEnv()
	if path := os.Getenv(ConfigFileEnv); path != "" {
		if err := cfg.ApplyFile(path); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// FromEnv builds a config from environment variables and defaults.
func FromEnv() *Config {
	return &Config{
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: getEnvList("ALLOWED_ORIGINS", []string{"*"}),

		Backend:    getEnv("DATA_BACKEND", BackendFile),
		DataDir:    getEnv("DATA_DIR", "./data"),
		SQLitePath: getEnv("SQLITE_DB_PATH", "./data/expenses.db"),

		AMQPURL:        getEnv("AMQP_URL", ""),
		AMQPExchange:   getEnv("AMQP_EXCHANGE", "expenses"),
		AMQPRoutingKey: getEnv("AMQP_ROUTING_KEY", "expense_changes"),

		LogLevel: getEnv("LOG_LEVEL", "info"),

		BackupInterval: getEnvDuration("BACKUP_INTERVAL", 0),
	}
}

// ApplyFile overlays the keys present in the YAML file at path.
func (c *Config) ApplyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// Validate validates the configuration and returns every problem at once.
func (c *Config) Validate() error {
	var problems []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		problems = append(problems, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		problems = append(problems, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch c.Backend {
	case BackendFile:
		if c.DataDir == "" {
			problems = append(problems, "data directory cannot be empty when using file backend")
		}
	case BackendSQLite:
		if c.SQLitePath == "" {
			problems = append(problems, "SQLite database path cannot be empty when using sqlite backend")
		}
	case BackendMemory:
	default:
		problems = append(problems, fmt.Sprintf("invalid data backend '%s': must be one of %v",
			c.Backend, []string{BackendFile, BackendSQLite, BackendMemory}))
	}

	if c.AMQPURL != "" {
		if parsed, err := url.Parse(c.AMQPURL); err != nil {
			problems = append(problems, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsed.Scheme != "amqp" && parsed.Scheme != "amqps" {
			problems = append(problems, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsed.Scheme))
		}
		if c.AMQPExchange == "" {
			problems = append(problems, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		problems = append(problems, fmt.Sprintf("invalid log level '%s'", c.LogLevel))
	}

	if c.BackupInterval < 0 {
		problems = append(problems, fmt.Sprintf("invalid backup interval %v: must not be negative", c.BackupInterval))
	} else if c.BackupInterval > 0 && c.BackupInterval < time.Minute {
		problems = append(problems, fmt.Sprintf("invalid backup interval %v: must be at least 1 minute", c.BackupInterval))
	}

	if len(problems) > 0 {
		return errors.New("configuration validation failed:\n- " + strings.Join(problems, "\n- "))
	}
	return nil
}

// Addr returns the listen address for Port.
func (c *Config) Addr() string { return ":" + c.Port }

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
