// Package config provides configuration loading and validation for the tracker.
package config

import (
	"fmt"
	"net/netip"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store backends selectable with STORE.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Rate limit defaults for credential endpoints: 5 attempts per 15 minutes.
const (
	DefaultAuthRateLimit  = 5
	DefaultAuthRateWindow = 15 * time.Minute
)

// ServerConfig holds everything the HTTP server needs apart from secrets
// handled by JWTConfig and PasswordConfig.
type ServerConfig struct {
	Env            string
	Port           int
	DatabaseURL    string
	Store          string
	StoreTimeout   time.Duration
	ConnectRetries int
	FrontendURL    string
	CookieSecure   bool
	RedisURL       string

	RateLimitEnabled bool
	AuthRateLimit    int
	AuthRateWindow   time.Duration
	Whitelist        []string
	Blacklist        []string
	// TrustedProxies are the peers whose X-Forwarded-For header names the
	// real client. Requests from anywhere else are keyed on the peer address.
	TrustedProxies []netip.Prefix
}

// IsProduction reports whether env names the production environment.
func IsProduction(env string) bool {
	return strings.EqualFold(strings.TrimSpace(env), "production")
}

// Production reports whether the server runs with ENV=production.
func (c *ServerConfig) Production() bool {
	return IsProduction(c.Env)
}

// NewServerConfig creates a server configuration from environment variables.
// portOverride wins over PORT when positive.
func NewServerConfig(portOverride int) (*ServerConfig, error) {
	c := &ServerConfig{
		Env:              getEnv("ENV", "development"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		Store:            strings.ToLower(getEnv("STORE", StorePostgres)),
		FrontendURL:      getEnv("FRONTEND_URL", "http://localhost:5173"),
		RedisURL:         os.Getenv("REDIS_URL"),
		Whitelist:        splitList(os.Getenv("RATE_LIMIT_WHITELIST")),
		Blacklist:        splitList(os.Getenv("RATE_LIMIT_BLACKLIST")),
		RateLimitEnabled: true,
	}

	var err error
	if c.Port, err = getInt("PORT", 5000); err != nil {
		return nil, err
	}
	if portOverride > 0 {
		c.Port = portOverride
	}
	if c.StoreTimeout, err = getDuration("STORE_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if c.ConnectRetries, err = getInt("DB_CONNECT_RETRIES", 5); err != nil {
		return nil, err
	}
	if c.AuthRateLimit, err = getInt("RATE_LIMIT_AUTH_REQUESTS", DefaultAuthRateLimit); err != nil {
		return nil, err
	}
	if c.AuthRateWindow, err = getDuration("RATE_LIMIT_AUTH_WINDOW", DefaultAuthRateWindow); err != nil {
		return nil, err
	}
	if v := os.Getenv("RATE_LIMIT_ENABLED"); v != "" {
		if c.RateLimitEnabled, err = strconv.ParseBool(v); err != nil {
			return nil, fmt.Errorf("invalid RATE_LIMIT_ENABLED: %v", err)
		}
	}
	if c.TrustedProxies, err = ParsePrefixes(splitList(os.Getenv("TRUSTED_PROXIES"))); err != nil {
		return nil, fmt.Errorf("invalid TRUSTED_PROXIES: %w", err)
	}
	c.CookieSecure = c.Production()
	if v := os.Getenv("COOKIE_SECURE"); v != "" {
		if c.CookieSecure, err = strconv.ParseBool(v); err != nil {
			return nil, fmt.Errorf("invalid COOKIE_SECURE: %v", err)
		}
	}

	if err := c.normalize(); err != nil {
		return nil, err
	}
	return c, nil
}

// normalize validates the configuration.
func (c *ServerConfig) normalize() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("PORT out of range: %d", c.Port)
	}
	switch c.Store {
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE=%s", StorePostgres)
		}
		if err := ValidateDatabaseURL(c.DatabaseURL); err != nil {
			return err
		}
	case StoreMemory:
	default:
		return fmt.Errorf("STORE must be %q or %q, got %q", StorePostgres, StoreMemory, c.Store)
	}
	if c.StoreTimeout <= 0 {
		return fmt.Errorf("STORE_TIMEOUT must be positive, got: %s", c.StoreTimeout)
	}
	if c.ConnectRetries < 0 {
		return fmt.Errorf("DB_CONNECT_RETRIES must be non-negative, got: %d", c.ConnectRetries)
	}
	if c.AuthRateLimit < 1 {
		return fmt.Errorf("RATE_LIMIT_AUTH_REQUESTS must be at least 1, got: %d", c.AuthRateLimit)
	}
	if c.AuthRateWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_AUTH_WINDOW must be positive, got: %s", c.AuthRateWindow)
	}
	return nil
}

// ValidateDatabaseURL checks that u is a postgres:// or postgresql:// URL.
func ValidateDatabaseURL(u string) error {
	parsed, err := url.Parse(u)
	if err != nil {
		return fmt.Errorf("invalid DATABASE_URL: %v", err)
	}
	if parsed.Scheme != "postgres" && parsed.Scheme != "postgresql" {
		return fmt.Errorf("DATABASE_URL must start with postgres:// or postgresql://")
	}
	return nil
}

// ParsePrefixes parses CIDR blocks or bare addresses. A bare address becomes
// a single-host prefix.
func ParsePrefixes(values []string) ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(values))
	for _, v := range values {
		if p, err := netip.ParsePrefix(v); err == nil {
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(v)
		if err != nil {
			return nil, fmt.Errorf("%q is neither an address nor a CIDR block", v)
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %v", key, err)
	}
	return n, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %v", key, err)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
