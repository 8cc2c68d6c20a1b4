package ratelimit

import (
	"net/http"
	"net/netip"
	"time"

	"github.com/jonathan/application-tracker/internal/config"
)

// Rule is a limit applied per client.
type Rule struct {
	Name   string
	Limit  int
	Window time.Duration
}

// EndpointConfig binds a rule to a request path and method.
type EndpointConfig struct {
	Path   string // exact path, or a prefix when it ends with "/"
	Method string
	Rule   Rule
}

// Config holds rate limiting configuration.
type Config struct {
	Enabled         bool
	Default         Rule
	Whitelist       map[string]bool
	Blacklist       map[string]bool
	EndpointConfigs []EndpointConfig
	// TrustedProxies may speak for the client through X-Forwarded-For.
	TrustedProxies []netip.Prefix
}

// Default limit for routes without a specific rule.
const (
	DefaultLimit  = 1000
	DefaultWindow = time.Minute
)

// FromServerConfig derives the limiter configuration from the server settings.
func FromServerConfig(c *config.ServerConfig) *Config {
	return &Config{
		Enabled:         c.RateLimitEnabled,
		Default:         Rule{Name: "default", Limit: DefaultLimit, Window: DefaultWindow},
		Whitelist:       toSet(c.Whitelist),
		Blacklist:       toSet(c.Blacklist),
		EndpointConfigs: AuthEndpointConfigs(c.AuthRateLimit, c.AuthRateWindow),
		TrustedProxies:  c.TrustedProxies,
	}
}

// AuthEndpointConfigs throttles the credential endpoints. All three share one
// budget per client.
func AuthEndpointConfigs(limit int, window time.Duration) []EndpointConfig {
	rule := Rule{Name: "auth", Limit: limit, Window: window}
	return []EndpointConfig{
		{Path: "/api/auth/register", Method: http.MethodPost, Rule: rule},
		{Path: "/api/auth/login", Method: http.MethodPost, Rule: rule},
		{Path: "/api/auth/password", Method: http.MethodPut, Rule: rule},
	}
}

func toSet(values []string) map[string]bool {
	result := make(map[string]bool, len(values))
	for _, v := range values {
		result[v] = true
	}
	return result
}
