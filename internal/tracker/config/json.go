package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/peerchat/internal/flagx"
	"github.com/dmitrijs2005/peerchat/internal/timex"
)

// JsonConfig is the on-disk shape of the tracker configuration. Duration
// fields accept "30s" style strings or integer nanoseconds. Absent fields
// keep their current value.
type JsonConfig struct {
	ListenAddr            *string         `json:"listen_addr"`
	DatabaseDSN           *string         `json:"database_dsn"`
	SecretKey             *string         `json:"secret_key"`
	TokenValidityDuration *timex.Duration `json:"token_validity_duration"`
	IdleTimeout           *timex.Duration `json:"idle_timeout"`
	LogLevel              *string         `json:"log_level"`
}

// parseJson overlays values from the file named by -c/-config. It panics when
// the file cannot be read or parsed.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	if c.ListenAddr != nil {
		config.ListenAddr = *c.ListenAddr
	}
	if c.DatabaseDSN != nil {
		config.DatabaseDSN = *c.DatabaseDSN
	}
	if c.SecretKey != nil {
		config.SecretKey = *c.SecretKey
	}
	if c.TokenValidityDuration != nil {
		config.TokenValidityDuration = c.TokenValidityDuration.Duration
	}
	if c.IdleTimeout != nil {
		config.IdleTimeout = c.IdleTimeout.Duration
	}
	if c.LogLevel != nil {
		config.LogLevel = *c.LogLevel
	}
}
