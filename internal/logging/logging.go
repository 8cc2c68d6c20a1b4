// Package logging builds the process logger and masks personal data before it
// reaches log output.
package logging

import (
	"regexp"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a JSON logger in production and a colored console logger
// everywhere else.
func New(env string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if !strings.EqualFold(env, "production") {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	return cfg.Build()
}

var emailRegex = regexp.MustCompile(`^([^@]{1,3})[^@]*(@.+)$`)

// MaskEmail shows the first 3 characters and the domain.
// Example: john.doe@example.com -> joh***@example.com
func MaskEmail(email string) string {
	if email == "" {
		return ""
	}
	if m := emailRegex.FindStringSubmatch(email); len(m) == 3 {
		return m[1] + "***" + m[2]
	}
	if _, domain, ok := strings.Cut(email, "@"); ok {
		return "***@" + domain
	}
	return "***"
}

// MaskIP keeps the first 2 octets of an IPv4 address or the first 4 groups of
// an IPv6 address.
func MaskIP(ip string) string {
	if ip == "" {
		return ""
	}
	if parts := strings.Split(ip, "."); len(parts) == 4 {
		return parts[0] + "." + parts[1] + ".*.*"
	}
	if parts := strings.Split(ip, ":"); len(parts) >= 4 {
		return strings.Join(parts[:4], ":") + ":*:*:*:*"
	}
	return "***"
}
