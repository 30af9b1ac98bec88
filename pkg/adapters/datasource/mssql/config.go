package mssql

import (
	"errors"
	"fmt"
	"strconv"
)

// Authentication methods.
const (
	AuthSQL              = "sql"
	AuthServicePrincipal = "service_principal"
)

// Config holds the SQL Server connection options of one request.
type Config struct {
	Host     string
	Port     int
	Database string

	// AuthMethod is AuthSQL or AuthServicePrincipal.
	AuthMethod string

	Username string
	Password string

	// Azure AD service principal
	TenantID     string
	ClientID     string
	ClientSecret string

	Encrypt                bool
	TrustServerCertificate bool
	ConnectionTimeout      int // seconds
}

// DefaultPort returns the default SQL Server port.
func DefaultPort() int { return 1433 }

// DefaultConnectionTimeout returns the default connection timeout in seconds.
func DefaultConnectionTimeout() int { return 30 }

// FromMap reads a request's connection map. Without an explicit auth_method,
// a client_id selects service principal auth.
func FromMap(m map[string]any) (*Config, error) {
	cfg := &Config{
		Host:                   stringOption(m, "host"),
		Database:               stringOption(m, "database"),
		AuthMethod:             stringOption(m, "auth_method"),
		Port:                   intOption(m, "port", DefaultPort()),
		ConnectionTimeout:      intOption(m, "connection_timeout", DefaultConnectionTimeout()),
		Encrypt:                boolOption(m, "encrypt", true),
		TrustServerCertificate: boolOption(m, "trust_server_certificate", false),
	}
	if cfg.AuthMethod == "" {
		cfg.AuthMethod = AuthSQL
		if _, ok := m["client_id"].(string); ok {
			cfg.AuthMethod = AuthServicePrincipal
		}
	}

	switch cfg.AuthMethod {
	case AuthSQL:
		cfg.Username = stringOption(m, "username", "user")
		cfg.Password = stringOption(m, "password")
	case AuthServicePrincipal:
		cfg.TenantID = stringOption(m, "tenant_id")
		cfg.ClientID = stringOption(m, "client_id")
		cfg.ClientSecret = stringOption(m, "client_secret")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the fields required by the selected auth method.
func (c *Config) Validate() error {
	switch {
	case c.Host == "":
		return errors.New("host is required")
	case c.Database == "":
		return errors.New("database is required")
	case c.Port <= 0 || c.Port > 65535:
		return fmt.Errorf("invalid port: %d", c.Port)
	}

	var missing string
	switch c.AuthMethod {
	case AuthSQL:
		if c.Username == "" {
			missing = "username"
		}
	case AuthServicePrincipal:
		for field, v := range map[string]string{"tenant_id": c.TenantID, "client_id": c.ClientID, "client_secret": c.ClientSecret} {
			if v == "" && (missing == "" || field < missing) {
				missing = field
			}
		}
	default:
		return fmt.Errorf("invalid auth method: %s (must be %s or %s)", c.AuthMethod, AuthSQL, AuthServicePrincipal)
	}
	if missing != "" {
		return fmt.Errorf("%s is required for %s authentication", missing, c.AuthMethod)
	}
	return nil
}

func stringOption(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// intOption accepts JSON numbers and numeric strings. Anything else yields def.
func intOption(m map[string]any, key string, def int) int {
	switch v := m[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// boolOption accepts booleans and the strings "true", "false" and "strict".
func boolOption(m map[string]any, key string, def bool) bool {
	switch v := m[key].(type) {
	case bool:
		return v
	case string:
		switch v {
		case "true", "strict":
			return true
		case "false":
			return false
		}
	}
	return def
}
