// Package config loads runtime configuration for the gophauth CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-s string   base URL of the gophauth HTTP API
//	-i int      online status check interval (seconds)
//	-t duration per-request timeout
//
// # JSON schema
//
//	{
//	  "server_url": "http://localhost:8080",
//	  "online_check_interval": "5s",
//	  "request_timeout": "10s"
//	}
package config
