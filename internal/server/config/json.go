package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/gophauth/internal/flagx"
	"github.com/dmitrijs2005/gophauth/internal/timex"
)

// JsonConfig mirrors Config for JSON files. Durations use timex.Duration so
// both "15m" and integer nanoseconds are accepted. Absent keys leave the
// current value untouched.
type JsonConfig struct {
	HTTPAddr          *string         `json:"http_addr"`
	GRPCAddr          *string         `json:"grpc_addr"`
	DatabaseDSN       *string         `json:"database_dsn"`
	SecretKey         *string         `json:"secret_key"`
	TokenTTL          *timex.Duration `json:"token_ttl"`
	HashAlgorithm     *string         `json:"hash_algorithm"`
	BcryptCost        *int            `json:"bcrypt_cost"`
	RepositoryTimeout *timex.Duration `json:"repository_timeout"`
	LogLevel          *string         `json:"log_level"`
	S3RootUser        *string         `json:"s3_root_user"`
	S3RootPassword    *string         `json:"s3_root_password"`
	S3Bucket          *string         `json:"s3_bucket"`
	S3Region          *string         `json:"s3_region"`
	S3BaseEndpoint    *string         `json:"s3_base_endpoint"`
	AvatarURLExpiry   *timex.Duration `json:"avatar_url_expiry"`
}

// parseJson loads the file named by -c / -config into config. Nothing
// happens when the flag is absent; an unreadable or invalid file panics.
func parseJson(config *Config) {
	path := flagx.ConfigFileFlag()
	if path == "" {
		return
	}

	file, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	c.apply(config)
}

func (c *JsonConfig) apply(config *Config) {
	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.GRPCAddr, c.GRPCAddr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.HashAlgorithm, c.HashAlgorithm)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)

	if c.BcryptCost != nil {
		config.BcryptCost = *c.BcryptCost
	}
	if c.TokenTTL != nil {
		config.TokenTTL = c.TokenTTL.Duration
	}
	if c.RepositoryTimeout != nil {
		config.RepositoryTimeout = c.RepositoryTimeout.Duration
	}
	if c.AvatarURLExpiry != nil {
		config.AvatarURLExpiry = c.AvatarURLExpiry.Duration
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
