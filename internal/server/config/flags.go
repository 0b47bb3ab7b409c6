package config

import (
	"flag"
	"io"
	"os"

	"github.com/dmitrijs2005/gophauth/internal/flagx"
)

// parseFlags populates Config fields from command-line flags.
//
// Supported flags:
//
//	-a string      HTTP bind address (e.g. ":8080")
//	-grpc string   gRPC health endpoint bind address
//	-d string      account store DSN
//	-s string      token signing secret
//	-t duration    token lifetime, 0 for no expiry
//	-alg string    password hash algorithm (bcrypt, argon2id)
//	-cost int      bcrypt cost
//	-r duration    account store call timeout
//	-l string      log level
//	-u string      S3 access key
//	-p string      S3 secret key
//	-b string      S3 bucket
//	-n string      S3 region
//	-e string      S3 base endpoint
//
// Only the flags above are picked out of os.Args, so flags meant for other
// components (-c) do not break parsing.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{
		"-a", "-grpc", "-d", "-s", "-t", "-alg", "-cost", "-r", "-l",
		"-u", "-p", "-b", "-n", "-e",
	})

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "HTTP address and port")
	fs.StringVar(&config.GRPCAddr, "grpc", config.GRPCAddr, "gRPC health endpoint address")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "account store DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "token signing secret")
	fs.DurationVar(&config.TokenTTL, "t", config.TokenTTL, "token lifetime (0 = no expiry)")
	fs.StringVar(&config.HashAlgorithm, "alg", config.HashAlgorithm, "password hash algorithm")
	fs.IntVar(&config.BcryptCost, "cost", config.BcryptCost, "bcrypt cost")
	fs.DurationVar(&config.RepositoryTimeout, "r", config.RepositoryTimeout, "account store call timeout")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 access key")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 secret key")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "n", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
