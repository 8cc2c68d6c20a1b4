// Package config provides JWT configuration functionality.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// MinProductionSecretLength is the shortest JWT_SECRET accepted when ENV=production.
const MinProductionSecretLength = 32

// weakSecrets are placeholder values that must never sign production tokens.
var weakSecrets = []string{
	"your_jwt_secret",
	"your-super-secret-jwt-key-change-this-in-production",
	"secret",
	"jwt_secret",
	"12345",
}

// JWTConfig holds configuration for JWT token generation and validation.
type JWTConfig struct {
	Secret          string
	ExpirationHours int
	Production      bool
}

// NewJWTConfig creates a new JWT configuration from environment variables.
// It reads JWT_SECRET (required) and JWT_EXPIRATION_HOURS (default: 168).
// When ENV=production the secret must also be strong.
func NewJWTConfig() (*JWTConfig, error) {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required but not set")
	}

	expirationStr := os.Getenv("JWT_EXPIRATION_HOURS")
	if expirationStr == "" {
		expirationStr = "168" // 7 days
	}

	expirationHours, err := strconv.Atoi(expirationStr)
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_EXPIRATION_HOURS: %v", err)
	}

	config := &JWTConfig{
		Secret:          secret,
		ExpirationHours: expirationHours,
		Production:      IsProduction(os.Getenv("ENV")),
	}

	if err := config.normalize(); err != nil {
		return nil, err
	}

	return config, nil
}

// TokenLifetime is the validity window of issued tokens.
func (c *JWTConfig) TokenLifetime() time.Duration {
	return time.Duration(c.ExpirationHours) * time.Hour
}

// normalize validates the configuration.
func (c *JWTConfig) normalize() error {
	if c.Secret == "" {
		return fmt.Errorf("JWT_SECRET cannot be empty")
	}
	if c.ExpirationHours < 1 {
		return fmt.Errorf("JWT_EXPIRATION_HOURS must be at least 1 hour, got: %d", c.ExpirationHours)
	}
	if !c.Production {
		return nil
	}
	if len(c.Secret) < MinProductionSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters in production", MinProductionSecretLength)
	}
	lower := strings.ToLower(c.Secret)
	for _, weak := range weakSecrets {
		if strings.Contains(lower, weak) {
			return fmt.Errorf("JWT_SECRET appears to be a default/weak value; use a strong random secret in production")
		}
	}
	return nil
}
