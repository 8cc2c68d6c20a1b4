package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// Bcrypt cost bounds accepted from BCRYPT_COST.
const (
	DefaultBcryptCost = 12
	MinBcryptCost     = 10
	MaxBcryptCost     = 14
)

// ErrPasswordTooLong is returned when the peppered password exceeds what
// bcrypt will consume.
var ErrPasswordTooLong = errors.New("password exceeds 72 bytes")

// PasswordConfig holds configuration for password hashing and verification.
type PasswordConfig struct {
	BcryptCost int
	Pepper     string

	dummyOnce sync.Once
	dummyHash []byte
}

// NewPasswordConfig reads BCRYPT_COST (default: 12) and PASSWORD_PEPPER.
func NewPasswordConfig() (*PasswordConfig, error) {
	cost := DefaultBcryptCost
	if v := os.Getenv("BCRYPT_COST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid BCRYPT_COST: %v", err)
		}
		cost = n
	}

	c := &PasswordConfig{
		BcryptCost: cost,
		Pepper:     os.Getenv("PASSWORD_PEPPER"),
	}
	if err := c.normalize(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *PasswordConfig) normalize() error {
	if c.BcryptCost < MinBcryptCost || c.BcryptCost > MaxBcryptCost {
		return fmt.Errorf("bcrypt cost out of range: %d (must be %d-%d)", c.BcryptCost, MinBcryptCost, MaxBcryptCost)
	}
	return nil
}

func (c *PasswordConfig) secret(pw string) []byte {
	return []byte(pw + c.Pepper)
}

// HashPassword hashes pw with bcrypt after appending the pepper.
func (c *PasswordConfig) HashPassword(pw string) (string, error) {
	secret := c.secret(pw)
	if len(secret) > 72 {
		return "", ErrPasswordTooLong
	}
	hash, err := bcrypt.GenerateFromPassword(secret, c.BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword reports whether pw matches storedHash.
func (c *PasswordConfig) VerifyPassword(pw, storedHash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(storedHash), c.secret(pw)) == nil
}

// BurnCompare runs a comparison against a throwaway hash so a lookup miss
// costs as much as a wrong password.
func (c *PasswordConfig) BurnCompare(pw string) {
	c.dummyOnce.Do(func() {
		c.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("burn-compare-placeholder"), c.BcryptCost)
	})
	_ = bcrypt.CompareHashAndPassword(c.dummyHash, c.secret(pw))
}
