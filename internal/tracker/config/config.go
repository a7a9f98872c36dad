// Package config handles configuration for the tracker, including defaults,
// JSON overlay, and command-line flags.
package config

import "time"

// Config holds runtime settings for the tracker.
//
// Fields:
//   - ListenAddr: bind address of the tracker's TCP endpoint.
//   - DatabaseDSN: PostgreSQL DSN (pgx). Empty keeps accounts in memory.
//   - SecretKey: HMAC secret for signing session tokens (HS256).
//   - TokenValidityDuration: session token lifetime.
//   - IdleTimeout: how long a connection may sit without a request.
//   - LogLevel: one of debug, info, warn, error.
type Config struct {
	ListenAddr            string
	DatabaseDSN           string
	SecretKey             string
	TokenValidityDuration time.Duration
	IdleTimeout           time.Duration
	LogLevel              string
}

// LoadDefaults populates Config with development defaults.
// NOTE: SecretKey must be overridden outside of local runs.
func (c *Config) LoadDefaults() {
	c.ListenAddr = "127.0.0.1:22236"
	c.DatabaseDSN = ""
	c.SecretKey = "secretKey"
	c.TokenValidityDuration = 24 * time.Hour
	c.IdleTimeout = 30 * time.Second
	c.LogLevel = "info"
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file and finally from command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
