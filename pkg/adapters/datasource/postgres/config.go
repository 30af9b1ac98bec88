package postgres

import (
	"fmt"
	"strconv"
)

// sslModes are the libpq sslmode values pgx accepts.
var sslModes = map[string]bool{
	"disable": true, "allow": true, "prefer": true,
	"require": true, "verify-ca": true, "verify-full": true,
}

// Config holds the connection options of one request. Nothing here is persisted.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// DefaultPort returns the default PostgreSQL port.
func DefaultPort() int { return 5432 }

// DefaultSSLMode returns the default SSL mode.
func DefaultSSLMode() string { return "require" }

// FromMap reads a request's connection map. "username" is accepted for
// "user" and the port may be a JSON number or a numeric string.
func FromMap(m map[string]any) (*Config, error) {
	cfg := &Config{
		Host:     stringOption(m, "host"),
		Port:     DefaultPort(),
		User:     stringOption(m, "user", "username"),
		Password: stringOption(m, "password"),
		Database: stringOption(m, "database"),
		SSLMode:  stringOption(m, "ssl_mode", "sslmode"),
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = DefaultSSLMode()
	}

	switch port := m["port"].(type) {
	case float64:
		cfg.Port = int(port)
	case int:
		cfg.Port = port
	case string:
		if port != "" {
			p, err := strconv.Atoi(port)
			if err != nil {
				return nil, fmt.Errorf("port must be a number, got %q", port)
			}
			cfg.Port = p
		}
	}

	switch {
	case cfg.Host == "":
		return nil, fmt.Errorf("host is required")
	case cfg.User == "":
		return nil, fmt.Errorf("user is required")
	case cfg.Database == "":
		return nil, fmt.Errorf("database is required")
	case cfg.Port <= 0 || cfg.Port > 65535:
		return nil, fmt.Errorf("port %d out of range", cfg.Port)
	case !sslModes[cfg.SSLMode]:
		return nil, fmt.Errorf("unknown ssl_mode %q", cfg.SSLMode)
	}
	return cfg, nil
}

// stringOption returns the first non-empty string stored under any of keys.
func stringOption(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
