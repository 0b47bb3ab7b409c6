// Package config handles configuration for the server component,
// including defaults, JSON overlay, environment variables and command-line
// flags.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Supported password hashing algorithms.
const (
	HashBcrypt   = "bcrypt"
	HashArgon2id = "argon2id"
)

// Config holds runtime settings for the gophauth server.
//
// Fields:
//   - HTTPAddr / GRPCAddr: bind addresses of the JSON API and the gRPC health endpoint.
//   - DatabaseDSN: memory://, postgres://... or mongodb://... (selects the account store).
//   - SecretKey: HMAC secret for signing session tokens (HS256). Required, no default.
//   - TokenTTL: session token lifetime; zero issues tokens without an expiry claim.
//   - HashAlgorithm / BcryptCost: password hashing settings.
//   - RepositoryTimeout: upper bound for a single account store call.
//   - S3*: object storage used for avatars; AvatarURLExpiry bounds presigned URLs.
type Config struct {
	HTTPAddr          string
	GRPCAddr          string
	DatabaseDSN       string
	SecretKey         string
	TokenTTL          time.Duration
	HashAlgorithm     string
	BcryptCost        int
	RepositoryTimeout time.Duration
	LogLevel          string
	S3RootUser        string
	S3RootPassword    string
	S3Bucket          string
	S3Region          string
	S3BaseEndpoint    string
	AvatarURLExpiry   time.Duration
}

// LoadDefaults populates Config with development defaults. SecretKey is left
// empty on purpose: it has to come from the environment or flags.
func (c *Config) LoadDefaults() {
	c.HTTPAddr = ":8080"
	c.GRPCAddr = ":50051"
	c.DatabaseDSN = "memory://"
	c.TokenTTL = 0
	c.HashAlgorithm = HashBcrypt
	c.BcryptCost = 10
	c.RepositoryTimeout = 5 * time.Second
	c.LogLevel = "info"
	c.S3RootUser = "admin"
	c.S3RootPassword = "secretpassword"
	c.S3Bucket = "avatars"
	c.S3Region = "us-east-1"
	c.S3BaseEndpoint = "http://127.0.0.1:9000/"
	c.AvatarURLExpiry = 15 * time.Minute
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file, the environment (including a .env file) and
// finally command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseEnv(cfg)
	parseFlags(cfg)
	return cfg
}

// Validate reports settings the server cannot start with.
func (c *Config) Validate() error {
	var errs []error

	if c.SecretKey == "" {
		errs = append(errs, errors.New("secret key is not set (JWT_SECRET)"))
	}
	if c.HashAlgorithm != HashBcrypt && c.HashAlgorithm != HashArgon2id {
		errs = append(errs, fmt.Errorf("unsupported hash algorithm %q", c.HashAlgorithm))
	}
	if c.TokenTTL < 0 {
		errs = append(errs, errors.New("token ttl must not be negative"))
	}
	if c.RepositoryTimeout <= 0 {
		errs = append(errs, errors.New("repository timeout must be positive"))
	}
	if c.HTTPAddr == "" {
		errs = append(errs, errors.New("http address is empty"))
	}

	return errors.Join(errs...)
}
