package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// loadDotEnv is a seam for tests. godotenv never overrides variables that
// are already set in the process environment.
var loadDotEnv = func() error {
	return godotenv.Load()
}

// parseEnv overlays values from environment variables. A .env file in the
// working directory is loaded first when present. Malformed numbers or
// durations panic, like a broken JSON file does.
func parseEnv(config *Config) {
	if err := loadDotEnv(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		panic(fmt.Errorf("load .env: %w", err))
	}

	envString(&config.HTTPAddr, "HTTP_ADDR")
	envString(&config.GRPCAddr, "GRPC_ADDR")
	envString(&config.DatabaseDSN, "DATABASE_DSN")
	envString(&config.SecretKey, "JWT_SECRET")
	envString(&config.HashAlgorithm, "HASH_ALGORITHM")
	envString(&config.LogLevel, "LOG_LEVEL")
	envString(&config.S3RootUser, "S3_ROOT_USER")
	envString(&config.S3RootPassword, "S3_ROOT_PASSWORD")
	envString(&config.S3Bucket, "S3_BUCKET")
	envString(&config.S3Region, "S3_REGION")
	envString(&config.S3BaseEndpoint, "S3_BASE_ENDPOINT")

	envDuration(&config.TokenTTL, "TOKEN_TTL")
	envDuration(&config.RepositoryTimeout, "REPOSITORY_TIMEOUT")
	envDuration(&config.AvatarURLExpiry, "AVATAR_URL_EXPIRY")

	if v, ok := os.LookupEnv("BCRYPT_COST"); ok {
		cost, err := strconv.Atoi(v)
		if err != nil {
			panic(fmt.Errorf("BCRYPT_COST: %w", err))
		}
		config.BcryptCost = cost
	}
}

func envString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func envDuration(dst *time.Duration, key string) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		panic(fmt.Errorf("%s: %w", key, err))
	}
	*dst = d
}
